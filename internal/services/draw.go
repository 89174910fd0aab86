package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sorteio/internal/models"
)

// ErrInvalidDrawValue is returned when a lottery extraction is missing or not numeric.
var ErrInvalidDrawValue = errors.New("invalid draw value")

// Centena returns the last three digits of value, zero padded.
func Centena(value int) string {
	return fmt.Sprintf("%03d", value%1000)
}

// ParseDraw converts the raw extraction published for a prize slot into a
// DrawResult. Thousands separators as printed on lottery results ("34.587")
// are accepted.
func ParseDraw(slot int, raw string) (models.DrawResult, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.NewReplacer(".", "", " ", "").Replace(cleaned)
	if cleaned == "" {
		return models.DrawResult{}, fmt.Errorf("slot %d: %w: empty value", slot, ErrInvalidDrawValue)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return models.DrawResult{}, fmt.Errorf("slot %d: %w: %q is not numeric", slot, ErrInvalidDrawValue, raw)
		}
	}
	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return models.DrawResult{}, fmt.Errorf("slot %d: %w: %v", slot, ErrInvalidDrawValue, err)
	}
	return models.DrawResult{Slot: slot, RawValue: value, Centena: Centena(value)}, nil
}

// ParseDraws parses the three extractions in prize order.
func ParseDraws(raws []string) ([]models.DrawResult, error) {
	if len(raws) != models.PrizeCount {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidDrawValue, models.PrizeCount, len(raws))
	}
	draws := make([]models.DrawResult, 0, len(raws))
	for i, raw := range raws {
		d, err := ParseDraw(i+1, raw)
		if err != nil {
			return nil, err
		}
		draws = append(draws, d)
	}
	return draws, nil
}
