// Package account holds the minimal account model the billing engine needs:
// an identity to key overdue state by and an email address to notify. Full
// account management lives in the surrounding platform.
package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is an overdueable billing entity.
type Account struct {
	ID          uuid.UUID
	ExternalKey string
	Name        string
	Email       string
	Currency    string // ISO 4217
	TimeZone    string // IANA name, e.g. "UTC", "America/New_York"
	CreatedAt   time.Time
}

// Location resolves the account's time zone, falling back to UTC when the
// name is empty or unknown.
func (a *Account) Location() *time.Location {
	if a.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Store defines account persistence.
type Store interface {
	Get(ctx context.Context, accountID uuid.UUID) (*Account, error)
	Save(ctx context.Context, account *Account) error
}
