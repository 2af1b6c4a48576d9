package catalog

import "errors"

var (
	ErrPlanNotFound         = errors.New("catalog plan not found")
	ErrProductNotFound      = errors.New("catalog product not found")
	ErrInvalidConfiguration = errors.New("invalid catalog configuration")
	ErrFailedToLoadCatalog  = errors.New("failed to load catalog")
)
