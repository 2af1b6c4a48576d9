package subscription_test

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/svc/catalog"
	"github.com/dmitrymomot/billingkit/svc/subscription"
)

// testCatalog builds the catalog used across the package tests:
// two base products where only "premium" allows the "support" add-on, and
// "premium" already bundles "analytics".
func testCatalog() *catalog.InMemCatalog {
	evergreen := []catalog.PlanPhase{
		{Type: catalog.PhaseEvergreen, Duration: catalog.Duration{Unit: catalog.UnitUnlimited}},
	}
	trialThenEvergreen := []catalog.PlanPhase{
		{Type: catalog.PhaseTrial, Duration: catalog.Duration{Unit: catalog.UnitDays, Number: 30}},
		{Type: catalog.PhaseEvergreen, Duration: catalog.Duration{Unit: catalog.UnitUnlimited}},
	}

	standard := catalog.Product{
		Name:      "standard",
		Category:  catalog.CategoryBase,
		Available: []string{"analytics"},
	}
	premium := catalog.Product{
		Name:      "premium",
		Category:  catalog.CategoryBase,
		Available: []string{"analytics", "support"},
		Included:  []string{"analytics"},
	}
	analytics := catalog.Product{Name: "analytics", Category: catalog.CategoryAddOn}
	support := catalog.Product{Name: "support", Category: catalog.CategoryAddOn}

	return catalog.NewInMemCatalog(
		catalog.Plan{Name: "standard-monthly", Product: standard, BillingPeriod: catalog.PeriodMonthly, PriceList: catalog.DefaultPriceList, Phases: trialThenEvergreen},
		catalog.Plan{Name: "premium-monthly", Product: premium, BillingPeriod: catalog.PeriodMonthly, PriceList: catalog.DefaultPriceList, Phases: evergreen},
		catalog.Plan{Name: "analytics-monthly", Product: analytics, BillingPeriod: catalog.PeriodMonthly, PriceList: catalog.DefaultPriceList, Phases: evergreen},
		catalog.Plan{Name: "support-monthly", Product: support, BillingPeriod: catalog.PeriodMonthly, PriceList: catalog.DefaultPriceList, Phases: evergreen},
	)
}

func monthlySpec(product string) catalog.PlanSpecifier {
	return catalog.PlanSpecifier{
		ProductName:   product,
		BillingPeriod: catalog.PeriodMonthly,
		PriceList:     catalog.DefaultPriceList,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newEvent(subID uuid.UUID, t subscription.EventType, effective time.Time, spec catalog.PlanSpecifier) subscription.Event {
	return subscription.Event{
		ID:             uuid.New(),
		SubscriptionID: subID,
		Type:           t,
		EffectiveDate:  effective,
		RequestedDate:  effective,
		CreatedDate:    effective,
		ActiveVersion:  subscription.InitialVersion,
		Spec:           spec,
		FromDisk:       true,
	}
}
