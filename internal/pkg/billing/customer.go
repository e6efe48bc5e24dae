package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mybizz/mybizz/app/models"
)

// ProcessCustomer upserts a Paddle customer and links it to a platform user,
// provisioning a password-less account on first sight of the email.
func (s *Service) ProcessCustomer(ctx context.Context, data json.RawMessage) (Result, error) {
	p, err := decodeData[CustomerPayload](data)
	if err != nil {
		return failure("Invalid customer payload: %v", err), nil
	}

	return s.inTx(ctx, func(repo Repository) (Result, error) {
		return s.upsertCustomer(ctx, repo, p)
	})
}

func (s *Service) upsertCustomer(ctx context.Context, repo Repository, p *CustomerPayload) (Result, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))

	row, err := repo.FindCustomer(ctx, p.ID)
	created := false
	switch {
	case isNotFound(err):
		id, err := s.newSyntheticID(ctx, repo, IDKindCustomer)
		if err != nil {
			return Result{}, err
		}
		row = &models.Customer{CustomerID: id, PaddleID: p.ID, Status: "active"}
		created = true
	case err != nil:
		return Result{}, fmt.Errorf("find customer %s: %w", p.ID, err)
	}

	row.Email = email
	row.FullName = nullableString(p.Name)
	if p.Name != nil {
		row.FirstName, row.LastName = splitFullName(*p.Name)
	}
	setString(&row.Locale, p.Locale)
	setBool(&row.MarketingConsent, p.MarketingConsent)
	setString(&row.Status, p.Status)
	row.CustomData = nullableJSON(p.CustomData)
	setTime(&row.PaddleCreatedAt, p.CreatedAt)
	setTime(&row.PaddleUpdatedAt, p.UpdatedAt)

	note := ""
	if row.UserID == nil {
		user, provisioned, err := ensureUser(ctx, repo, email, row.FirstName, row.LastName)
		if err != nil {
			return Result{}, err
		}
		if user != nil {
			row.UserID = &user.ID
			if provisioned {
				note = fmt.Sprintf("; provisioned user %d", user.ID)
			} else {
				note = fmt.Sprintf("; linked existing user %d", user.ID)
			}
		}
	}

	if err := repo.SaveCustomer(ctx, row); err != nil {
		return Result{}, fmt.Errorf("save customer %s: %w", p.ID, err)
	}
	return success("Customer %s %s (%s)%s", p.ID, createdOrUpdated(created), row.CustomerID, note), nil
}

// ensureUser finds the platform user for email or provisions one.
func ensureUser(ctx context.Context, repo Repository, email, firstName, lastName string) (*models.User, bool, error) {
	if email == "" {
		return nil, false, nil
	}
	user, err := repo.FindUserByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !isNotFound(err) {
		return nil, false, fmt.Errorf("find user by email: %w", err)
	}

	user, err = models.NewProvisionedUser(email, firstName, lastName)
	if err != nil {
		log.Warnf("[Billing] Not provisioning user for customer email %q: %v", email, err)
		return nil, false, nil
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return nil, false, fmt.Errorf("provision user: %w", err)
	}
	log.Infof("[Billing] Provisioned user %d from Paddle customer", user.ID)
	return user, true, nil
}

// splitFullName puts the first word in first name and the rest in last name.
func splitFullName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
