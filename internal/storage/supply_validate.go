package storage

import (
	"fmt"
	"math"

	"volatility-radar/internal/domain"
)

// ValidateSupply checks a record before it is written. Errors wrap ErrInvalidInput.
func ValidateSupply(s *domain.CirculatingSupply) error {
	if s == nil {
		return fmt.Errorf("%w: nil supply", ErrInvalidInput)
	}
	if s.Asset == "" {
		return fmt.Errorf("%w: empty asset", ErrInvalidInput)
	}
	if math.IsNaN(s.Supply) || math.IsInf(s.Supply, 0) || s.Supply < 0 {
		return fmt.Errorf("%w: supply %v for %s", ErrInvalidInput, s.Supply, s.Asset)
	}
	return nil
}
