package risk

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidThresholds = errors.New("invalid thresholds")
	ErrEmptyPortfolio    = errors.New("empty portfolio")
)
