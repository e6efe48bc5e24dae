package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"

	defaultTimeout = 3 * time.Second
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Report is the JSON body of the health endpoint.
type Report struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Checker runs the registered dependency checks in parallel.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Checker{checks: map[string]Check{}, timeout: timeout}
}

// Add registers a named check, replacing any check with the same name.
func (h *Checker) Add(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

func (h *Checker) Run(ctx context.Context) Report {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		h.mu.RLock()
		check := h.checks[name]
		h.mu.RUnlock()

		wg.Add(1)
		go func(i int, name string, check Check) {
			defer wg.Done()
			if err := check(ctx); err != nil {
				log.Warnf("[Health] %s check failed: %v", name, err)
				results[i] = err.Error()
				return
			}
			results[i] = StatusOK
		}(i, name, check)
	}
	wg.Wait()

	report := Report{Status: StatusOK, CheckedAt: time.Now().UTC()}
	if len(names) > 0 {
		report.Components = make(map[string]string, len(names))
	}
	for i, name := range names {
		report.Components[name] = results[i]
		if results[i] != StatusOK {
			report.Status = StatusDegraded
		}
	}
	return report
}

// Handler answers 200 when every check passes and 503 otherwise.
func (h *Checker) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		report := h.Run(c.UserContext())
		if report.Status != StatusOK {
			return c.Status(fiber.StatusServiceUnavailable).JSON(report)
		}
		return c.JSON(report)
	}
}

// DatabaseCheck pings the SQL connection pool behind db.
func DatabaseCheck(db *gorm.DB) Check {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// RedisCheck pings the shared Redis client.
func RedisCheck(client *redis.Client) Check {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
