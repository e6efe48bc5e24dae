package billing

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Merge policy for mirror rows:
//   - nullable fields always take the payload value, nil included;
//   - other optional fields only change when the payload carries a value.

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setTime(dst **time.Time, v *string) {
	if t := parseTime(v); t != nil {
		*dst = t
	}
}

func nullableString(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func nullableTime(v *string) *time.Time {
	return parseTime(v)
}

func nullableJSON(raw json.RawMessage) datatypes.JSON {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return datatypes.JSON(trimmed)
}

// parseTime accepts the RFC 3339 forms Paddle sends. Unparseable values
// count as absent.
func parseTime(v *string) *time.Time {
	if v == nil {
		return nil
	}
	raw := strings.TrimSpace(*v)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func valueOr(v *string, def string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return def
	}
	return strings.TrimSpace(*v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func strPtr(s string) *string { return &s }
