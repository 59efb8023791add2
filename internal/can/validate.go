package can

import (
	"batchtrack-backend/internal/apperr"
)

// Measurement bounds.
const (
	MaxBrix = 100.0
	MaxPH   = 14.0
)

func validateMeasurements(brix, ph, quantity float64) error {
	switch {
	case brix < 0 || brix > MaxBrix:
		return apperr.Validation("brix %.2f is outside [0, %.0f]", brix, MaxBrix)
	case ph < 0 || ph > MaxPH:
		return apperr.Validation("ph %.2f is outside [0, %.0f]", ph, MaxPH)
	case quantity <= 0:
		return apperr.Validation("quantity must be positive, got %.2f", quantity)
	}
	return nil
}
