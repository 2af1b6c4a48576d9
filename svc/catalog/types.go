package catalog

import "time"

// ProductCategory separates stand-alone base products from add-ons that can
// only exist attached to a base subscription.
type ProductCategory string

const (
	CategoryBase  ProductCategory = "BASE"
	CategoryAddOn ProductCategory = "ADD_ON"
)

// BillingPeriod is the recurring billing frequency of a plan.
type BillingPeriod string

const (
	PeriodMonthly   BillingPeriod = "MONTHLY"
	PeriodQuarterly BillingPeriod = "QUARTERLY"
	PeriodAnnual    BillingPeriod = "ANNUAL"
	PeriodNone      BillingPeriod = "NO_BILLING_PERIOD"
)

// Months returns the length of the billing period in months, or 0 when the
// plan has no recurring period.
func (p BillingPeriod) Months() int {
	switch p {
	case PeriodMonthly:
		return 1
	case PeriodQuarterly:
		return 3
	case PeriodAnnual:
		return 12
	default:
		return 0
	}
}

// PhaseType identifies a phase within a plan's lifecycle.
type PhaseType string

const (
	PhaseTrial     PhaseType = "TRIAL"
	PhaseDiscount  PhaseType = "DISCOUNT"
	PhaseEvergreen PhaseType = "EVERGREEN"
	PhaseFixedTerm PhaseType = "FIXEDTERM"
)

// TimeUnit is the unit of a phase duration.
type TimeUnit string

const (
	UnitDays      TimeUnit = "DAYS"
	UnitMonths    TimeUnit = "MONTHS"
	UnitYears     TimeUnit = "YEARS"
	UnitUnlimited TimeUnit = "UNLIMITED"
)

// Duration is the length of a plan phase. Unlimited durations mark the
// terminal phase of a plan.
type Duration struct {
	Unit   TimeUnit `yaml:"unit"`
	Number int      `yaml:"number"`
}

// IsUnlimited reports whether the duration never elapses.
func (d Duration) IsUnlimited() bool {
	return d.Unit == UnitUnlimited
}

// AddTo returns t advanced by the duration. Panics on unlimited durations;
// callers must check IsUnlimited first.
func (d Duration) AddTo(t time.Time) time.Time {
	switch d.Unit {
	case UnitDays:
		return t.AddDate(0, 0, d.Number)
	case UnitMonths:
		return t.AddDate(0, d.Number, 0)
	case UnitYears:
		return t.AddDate(d.Number, 0, 0)
	default:
		panic("catalog: AddTo called on unlimited duration")
	}
}

// PlanPhase is one segment of a plan's lifecycle (e.g. a 30-day trial
// followed by an evergreen phase).
type PlanPhase struct {
	Type     PhaseType `yaml:"type"`
	Duration Duration  `yaml:"duration"`
}

// Product is a sellable product. For base products, Available lists add-on
// product names that may be purchased alongside it and Included lists add-on
// product names already bundled at no extra charge.
type Product struct {
	Name      string          `yaml:"name"`
	Category  ProductCategory `yaml:"category"`
	Available []string        `yaml:"available,omitempty"`
	Included  []string        `yaml:"included,omitempty"`
}

// Plan binds a product to a billing period, price list and ordered phases.
type Plan struct {
	Name          string        `yaml:"name"`
	Product       Product       `yaml:"product"`
	BillingPeriod BillingPeriod `yaml:"billingPeriod"`
	PriceList     string        `yaml:"priceList"`
	Phases        []PlanPhase   `yaml:"phases"`
}

// InitialPhase returns the first phase of the plan.
func (p Plan) InitialPhase() (PlanPhase, bool) {
	if len(p.Phases) == 0 {
		return PlanPhase{}, false
	}
	return p.Phases[0], true
}

// PhaseAfter returns the phase following the named one, or false when the
// named phase is terminal or unknown.
func (p Plan) PhaseAfter(phase PhaseType) (PlanPhase, bool) {
	for i, ph := range p.Phases {
		if ph.Type == phase && i+1 < len(p.Phases) {
			return p.Phases[i+1], true
		}
	}
	return PlanPhase{}, false
}

// PhaseByType returns the phase of the given type.
func (p Plan) PhaseByType(phase PhaseType) (PlanPhase, bool) {
	for _, ph := range p.Phases {
		if ph.Type == phase {
			return ph, true
		}
	}
	return PlanPhase{}, false
}

// PlanSpecifier identifies a plan by its coordinates rather than by name,
// the way subscription events reference catalog entries.
type PlanSpecifier struct {
	ProductName   string
	BillingPeriod BillingPeriod
	PriceList     string
	PhaseType     PhaseType
}

// DefaultPriceList is used when a specifier leaves the price list empty.
const DefaultPriceList = "DEFAULT"
