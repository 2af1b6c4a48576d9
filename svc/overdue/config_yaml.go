package overdue

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type yamlConfig struct {
	States []yamlState `yaml:"states"`
}

type yamlState struct {
	Name      string `yaml:"name"`
	Condition struct {
		TimeSinceEarliestUnpaidInvoiceInDays int    `yaml:"timeSinceEarliestUnpaidInvoiceInDays"`
		TotalUnpaidInvoiceBalance            string `yaml:"totalUnpaidInvoiceBalanceEqualsOrExceeds"`
		NumberOfUnpaidInvoices               int    `yaml:"numberOfUnpaidInvoicesEqualsOrExceeds"`
	} `yaml:"condition"`
	BlockChanges         bool   `yaml:"blockChanges"`
	BlockEntitlement     bool   `yaml:"blockEntitlement"`
	BlockBilling         bool   `yaml:"blockBilling"`
	CancellationPolicy   string `yaml:"cancellationPolicy"`
	ReevaluationInterval string `yaml:"reevaluationInterval"`
	EnterStateEmail      *struct {
		Subject  string `yaml:"subject"`
		Template string `yaml:"template"`
		IsHTML   bool   `yaml:"isHTML"`
	} `yaml:"enterStateEmail"`
}

// LoadYAML reads a ladder configuration. States must be listed most severe
// first; evaluation order is the contract, not the severity values
// themselves.
func LoadYAML(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadConfig, err)
	}

	var doc yamlConfig
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadConfig, err)
	}
	if len(doc.States) == 0 {
		return nil, fmt.Errorf("%w: ladder has no states", ErrInvalidConfiguration)
	}

	cfg := &Config{States: make([]State, 0, len(doc.States))}
	for _, ys := range doc.States {
		if ys.Name == "" {
			return nil, fmt.Errorf("%w: state with empty name", ErrInvalidConfiguration)
		}
		if ys.Name == ClearStateName {
			return nil, fmt.Errorf("%w: state name %q is reserved", ErrInvalidConfiguration, ClearStateName)
		}

		st := State{
			Name:             ys.Name,
			BlockChanges:     ys.BlockChanges,
			BlockEntitlement: ys.BlockEntitlement,
			BlockBilling:     ys.BlockBilling,
		}

		st.Condition.TimeSinceEarliestUnpaidInvoiceInDays = ys.Condition.TimeSinceEarliestUnpaidInvoiceInDays
		st.Condition.NumberOfUnpaidInvoicesEqualsOrExceeds = ys.Condition.NumberOfUnpaidInvoices
		if ys.Condition.TotalUnpaidInvoiceBalance != "" {
			threshold, err := decimal.NewFromString(ys.Condition.TotalUnpaidInvoiceBalance)
			if err != nil {
				return nil, fmt.Errorf("%w: state %q: bad balance threshold %q", ErrInvalidConfiguration, ys.Name, ys.Condition.TotalUnpaidInvoiceBalance)
			}
			st.Condition.TotalUnpaidInvoiceBalanceEqualsOrExceeds = &threshold
		}

		switch ys.CancellationPolicy {
		case "", string(CancellationNone):
			st.CancellationPolicy = CancellationNone
		case string(CancellationEndOfTerm):
			st.CancellationPolicy = CancellationEndOfTerm
		case string(CancellationImmediate):
			st.CancellationPolicy = CancellationImmediate
		default:
			return nil, fmt.Errorf("%w: state %q: unknown cancellation policy %q", ErrInvalidConfiguration, ys.Name, ys.CancellationPolicy)
		}

		if ys.ReevaluationInterval != "" {
			d, err := time.ParseDuration(ys.ReevaluationInterval)
			if err != nil {
				return nil, fmt.Errorf("%w: state %q: bad reevaluation interval %q", ErrInvalidConfiguration, ys.Name, ys.ReevaluationInterval)
			}
			st.ReevaluationInterval = d
		}

		if ys.EnterStateEmail != nil {
			st.EnterStateEmail = &EmailNotification{
				Subject:      ys.EnterStateEmail.Subject,
				TemplateName: ys.EnterStateEmail.Template,
				IsHTML:       ys.EnterStateEmail.IsHTML,
			}
		}

		cfg.States = append(cfg.States, st)
	}

	return cfg, nil
}

// LoadYAMLFile reads a ladder configuration from disk.
func LoadYAMLFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadConfig, err)
	}
	defer f.Close()
	return LoadYAML(f)
}
