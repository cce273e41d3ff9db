// Package fees вычисляет сумму списания с учётом комиссии платёжного процессора.
package fees

import "math"

// Calculator вычисляет итоговую сумму, при которой организация получает пожертвование целиком.
// Все суммы в центах.
type Calculator struct {
	FixedCents int64
	Percent    float64
}

// Breakdown содержит разбивку суммы списания.
type Breakdown struct {
	Amount int64 `json:"amount"`
	Fees   int64 `json:"fees"`
	Total  int64 `json:"total"`
}

// New создаёт калькулятор с фиксированной частью комиссии в центах и процентной ставкой (0.029 = 2.9%).
func New(fixedCents int64, percent float64) Calculator {
	return Calculator{
		FixedCents: fixedCents,
		Percent:    percent,
	}
}

// Total возвращает сумму к списанию. Для некорректной суммы возвращает 0.
func (c Calculator) Total(amount int64, coverFees bool) int64 {
	if amount <= 0 {
		return 0
	}
	if !coverFees {
		return amount
	}
	if c.Percent < 0 || c.Percent >= 1 {
		return 0
	}

	total := (float64(amount) + float64(c.FixedCents)) / (1 - c.Percent)
	return int64(math.Round(total))
}

// Fees возвращает размер комиссии, которую покрывает жертвователь.
func (c Calculator) Fees(amount int64) int64 {
	total := c.Total(amount, true)
	if total == 0 {
		return 0
	}
	return total - amount
}

// Breakdown возвращает сумму, комиссию и итог для отображения в форме.
func (c Calculator) Breakdown(amount int64, coverFees bool) Breakdown {
	total := c.Total(amount, coverFees)
	if total == 0 {
		return Breakdown{}
	}
	return Breakdown{
		Amount: amount,
		Fees:   total - amount,
		Total:  total,
	}
}
