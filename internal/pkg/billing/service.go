package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Result is the business outcome of processing one resource payload.
// Infrastructure failures are returned as errors instead.
type Result struct {
	OK bool
	// MissingLink marks failures caused by a local record that does not
	// exist yet (plan, product, price). These may succeed on a later retry.
	MissingLink bool
	// Handled is false for event types that are acknowledged without work.
	Handled bool
	Detail  string
}

func success(format string, args ...interface{}) Result {
	return Result{OK: true, Handled: true, Detail: fmt.Sprintf(format, args...)}
}

func failure(format string, args ...interface{}) Result {
	return Result{Handled: true, Detail: fmt.Sprintf(format, args...)}
}

func missingLink(format string, args ...interface{}) Result {
	return Result{Handled: true, MissingLink: true, Detail: fmt.Sprintf(format, args...)}
}

// Dispatcher routes a webhook to the processor for its resource type.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventType string, data json.RawMessage) (Result, error)
}

// Service reconciles Paddle resources into the local mirror tables.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Dispatch selects the processor by event type prefix. Resource types that
// are not mirrored locally are accepted as no-op successes.
func (s *Service) Dispatch(ctx context.Context, eventType string, data json.RawMessage) (Result, error) {
	eventType = strings.TrimSpace(eventType)
	resource, _, _ := strings.Cut(eventType, ".")

	switch resource {
	case "transaction":
		return s.ProcessTransaction(ctx, data)
	case "subscription":
		return s.ProcessSubscription(ctx, data)
	case "product":
		return s.ProcessProduct(ctx, data)
	case "price":
		return s.ProcessPrice(ctx, data)
	case "customer":
		return s.ProcessCustomer(ctx, data)
	case "discount":
		return s.ProcessDiscount(ctx, data)
	}

	log.Infof("[Billing] Event type %q is not mirrored locally, acknowledging", eventType)
	return Result{OK: true, Handled: false, Detail: fmt.Sprintf("Event type %s acknowledged without processing", eventType)}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// inTx runs fn in one database transaction. A failed Result does not roll
// back; only an error does.
func (s *Service) inTx(ctx context.Context, fn func(repo Repository) (Result, error)) (Result, error) {
	var res Result
	err := s.repo.WithTx(ctx, func(repo Repository) error {
		var err error
		res, err = fn(repo)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
