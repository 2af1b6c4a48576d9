package subscription

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/billingkit/svc/catalog"
)

// AddonRules decides whether an add-on plan may coexist with a base
// product. The same predicate gates add-on creation and drives trickle-down
// cancellation when a repair rewrites the base timeline.
type AddonRules struct {
	cat catalog.Catalog
}

// NewAddonRules creates AddonRules. Panics on a nil catalog.
func NewAddonRules(cat catalog.Catalog) *AddonRules {
	if cat == nil {
		panic("subscription: catalog is required")
	}
	return &AddonRules{cat: cat}
}

// Allowed reports whether the add-on plan may stay active under the given
// base product. A nil base product (base cancelled or never created) allows
// nothing. An add-on that the base product already includes is superseded,
// not independently billable, so it is not allowed either.
func (r *AddonRules) Allowed(ctx context.Context, baseProduct *catalog.Product, addonPlan catalog.Plan) (bool, error) {
	if baseProduct == nil {
		return false, nil
	}

	included, err := r.cat.IsAddonIncluded(ctx, *baseProduct, addonPlan)
	if err != nil {
		return false, err
	}
	if included {
		return false, nil
	}

	return r.cat.IsAddonAvailable(ctx, *baseProduct, addonPlan)
}

// CheckCreationRights validates that a new add-on may be created under the
// given base product. Returns ErrAddonNotAllowed (wrapped with detail) when
// the combination is rejected.
func (r *AddonRules) CheckCreationRights(ctx context.Context, baseProduct *catalog.Product, addonPlan catalog.Plan) error {
	ok, err := r.Allowed(ctx, baseProduct, addonPlan)
	if err != nil {
		return err
	}
	if !ok {
		base := "<none>"
		if baseProduct != nil {
			base = baseProduct.Name
		}
		return fmt.Errorf("%w: add-on %q under base %q", ErrAddonNotAllowed, addonPlan.Product.Name, base)
	}
	return nil
}
