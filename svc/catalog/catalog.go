// Package catalog exposes plan and product lookups for the billing engine.
//
// The engine consumes the catalog through the Catalog interface only; the
// in-memory and YAML sources here exist so that the kit is usable without
// the platform's full catalog service.
package catalog

import (
	"context"
	"slices"
)

// Catalog resolves plans and answers add-on compatibility questions.
type Catalog interface {
	// FindPlan resolves a plan by product name, billing period and price
	// list. An empty price list means DefaultPriceList. Returns
	// ErrPlanNotFound when no plan matches.
	FindPlan(ctx context.Context, productName string, period BillingPeriod, priceList string) (Plan, error)

	// IsAddonAvailable reports whether the add-on plan may be purchased
	// alongside the given base product.
	IsAddonAvailable(ctx context.Context, baseProduct Product, addonPlan Plan) (bool, error)

	// IsAddonIncluded reports whether the add-on plan is already bundled
	// into the given base product at no extra charge.
	IsAddonIncluded(ctx context.Context, baseProduct Product, addonPlan Plan) (bool, error)
}

// InMemCatalog is a Catalog over a fixed set of plans.
type InMemCatalog struct {
	plans []Plan
}

// NewInMemCatalog creates a catalog from the given plans. Panics when no
// plans are provided so a misconfigured engine fails at startup.
func NewInMemCatalog(plans ...Plan) *InMemCatalog {
	if len(plans) == 0 {
		panic("catalog: at least one plan is required")
	}
	return &InMemCatalog{plans: slices.Clone(plans)}
}

func (c *InMemCatalog) FindPlan(ctx context.Context, productName string, period BillingPeriod, priceList string) (Plan, error) {
	if priceList == "" {
		priceList = DefaultPriceList
	}
	for _, p := range c.plans {
		if p.Product.Name == productName && p.BillingPeriod == period && p.PriceList == priceList {
			return p, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}

func (c *InMemCatalog) IsAddonAvailable(ctx context.Context, baseProduct Product, addonPlan Plan) (bool, error) {
	return slices.Contains(baseProduct.Available, addonPlan.Product.Name), nil
}

func (c *InMemCatalog) IsAddonIncluded(ctx context.Context, baseProduct Product, addonPlan Plan) (bool, error) {
	return slices.Contains(baseProduct.Included, addonPlan.Product.Name), nil
}
