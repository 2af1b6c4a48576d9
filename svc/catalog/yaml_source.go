package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlCatalog is the on-disk catalog document.
type yamlCatalog struct {
	Products []Product  `yaml:"products"`
	Plans    []yamlPlan `yaml:"plans"`
}

// yamlPlan references its product by name; products are declared once and
// shared between plans.
type yamlPlan struct {
	Name          string        `yaml:"name"`
	Product       string        `yaml:"product"`
	BillingPeriod BillingPeriod `yaml:"billingPeriod"`
	PriceList     string        `yaml:"priceList"`
	Phases        []PlanPhase   `yaml:"phases"`
}

// LoadYAML reads a catalog document and returns an InMemCatalog.
func LoadYAML(r io.Reader) (*InMemCatalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	var doc yamlCatalog
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	products := make(map[string]Product, len(doc.Products))
	for _, p := range doc.Products {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: product with empty name", ErrInvalidConfiguration)
		}
		products[p.Name] = p
	}

	plans := make([]Plan, 0, len(doc.Plans))
	for _, yp := range doc.Plans {
		product, ok := products[yp.Product]
		if !ok {
			return nil, fmt.Errorf("%w: plan %q references unknown product %q", ErrInvalidConfiguration, yp.Name, yp.Product)
		}
		if len(yp.Phases) == 0 {
			return nil, fmt.Errorf("%w: plan %q has no phases", ErrInvalidConfiguration, yp.Name)
		}
		priceList := yp.PriceList
		if priceList == "" {
			priceList = DefaultPriceList
		}
		plans = append(plans, Plan{
			Name:          yp.Name,
			Product:       product,
			BillingPeriod: yp.BillingPeriod,
			PriceList:     priceList,
			Phases:        yp.Phases,
		})
	}

	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: catalog contains no plans", ErrInvalidConfiguration)
	}
	return NewInMemCatalog(plans...), nil
}

// LoadYAMLFile reads a catalog document from disk.
func LoadYAMLFile(path string) (*InMemCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}
	defer f.Close()
	return LoadYAML(f)
}
