package billing

import (
	"context"
	"fmt"
	"time"
)

const maxSyntheticIDAttempts = 20

// newSyntheticID builds "<PREFIX><yyyymmddhhmmss><millis>" and moves the
// timestamp forward one millisecond per collision.
func (s *Service) newSyntheticID(ctx context.Context, repo Repository, kind IDKind) (string, error) {
	base := s.now().UTC()
	for attempt := 0; attempt < maxSyntheticIDAttempts; attempt++ {
		ts := base.Add(time.Duration(attempt) * time.Millisecond)
		id := fmt.Sprintf("%s%s%03d", kind, ts.Format("20060102150405"), ts.Nanosecond()/int(time.Millisecond))
		taken, err := repo.SyntheticIDExists(ctx, kind, id)
		if err != nil {
			return "", fmt.Errorf("check %s id %s: %w", kind, id, err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique %s id after %d attempts", kind, maxSyntheticIDAttempts)
}
