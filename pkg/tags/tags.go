// Package tags provides control-tag lookups for billing entities.
//
// Control tags flip behavior of the billing engine for a single account,
// e.g. OverdueEnforcementOff suspends the overdue state machine entirely.
// The full tagging subsystem (custom tags, audit, persistence) lives outside
// this kit; components here only need the narrow HasTag check.
package tags

import (
	"context"

	"github.com/google/uuid"
)

// Control tag definition IDs. These are stable identifiers shared with the
// surrounding platform, not per-deployment values.
var (
	// OverdueEnforcementOff disables overdue processing for an account.
	OverdueEnforcementOff = uuid.MustParse("00000000-0000-0000-0000-000000000102")

	// AutoPayOff disables automatic payment collection for an account.
	AutoPayOff = uuid.MustParse("00000000-0000-0000-0000-000000000101")

	// AutoInvoicingOff disables invoice generation for an account.
	AutoInvoicingOff = uuid.MustParse("00000000-0000-0000-0000-000000000103")
)

// Lookup answers whether an account carries a given control tag.
type Lookup interface {
	HasTag(ctx context.Context, accountID, tagDefinitionID uuid.UUID) (bool, error)
}
