package billing

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var gltPattern = regexp.MustCompile(`^G(\d{1,4})L(\d{1,4})T(\d{1,4})$`)

// GLT is a plan code of the form G<group>L<level>T<tier>.
type GLT struct {
	Group int
	Level int
	Tier  int
}

func (g GLT) String() string {
	return fmt.Sprintf("G%dL%dT%d", g.Group, g.Level, g.Tier)
}

// ParseGLT accepts codes such as "G1L2T3", "g01-l02-t03" or "G1 L2 T3".
func ParseGLT(raw string) (GLT, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(cleaned)
	m := gltPattern.FindStringSubmatch(cleaned)
	if m == nil {
		return GLT{}, fmt.Errorf("invalid glt code %q", raw)
	}
	var out GLT
	out.Group, _ = strconv.Atoi(m[1])
	out.Level, _ = strconv.Atoi(m[2])
	out.Tier, _ = strconv.Atoi(m[3])
	if out.Group == 0 || out.Level == 0 || out.Tier == 0 {
		return GLT{}, fmt.Errorf("invalid glt code %q: components must be positive", raw)
	}
	return out, nil
}

// gltFromCustomData reads custom_data.glt from a price payload.
func gltFromCustomData(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var cd map[string]interface{}
	if err := json.Unmarshal(raw, &cd); err != nil {
		return "", false
	}
	switch v := cd["glt"].(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}
