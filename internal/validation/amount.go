// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"strings"
)

// MaxAmountCents ограничивает сумму одного пожертвования.
const MaxAmountCents int64 = 100_000_000

var (
	// ErrInvalidAmount возвращается, если сумма не является положительным десятичным числом
	// с не более чем двумя знаками после запятой.
	ErrInvalidAmount = errors.New("amount must be a positive number with at most 2 decimal places")
	// ErrAmountTooLarge возвращается, если сумма превышает MaxAmountCents.
	ErrAmountTooLarge = errors.New("amount exceeds maximum allowed donation")
)

// ParseAmount разбирает денежную сумму вида "100", "100.5" или "100.50" и возвращает её в центах.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || (hasDot && (frac == "" || len(frac) > 2)) {
		return 0, ErrInvalidAmount
	}

	var cents int64
	for _, ch := range whole {
		if ch < '0' || ch > '9' {
			return 0, ErrInvalidAmount
		}
		cents = cents*10 + int64(ch-'0')
		if cents > MaxAmountCents {
			return 0, ErrAmountTooLarge
		}
	}
	cents *= 100

	scale := int64(10)
	for _, ch := range frac {
		if ch < '0' || ch > '9' {
			return 0, ErrInvalidAmount
		}
		cents += int64(ch-'0') * scale
		scale /= 10
	}

	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	if cents > MaxAmountCents {
		return 0, ErrAmountTooLarge
	}

	return cents, nil
}
