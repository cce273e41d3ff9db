package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

const (
	// MaxIftarSpanDays ограничивает длину генерируемого календаря ифтаров.
	MaxIftarSpanDays = 60
	maxCalendarDays  = 366
)

// ErrPrayerTimesUnavailable возвращается, если источник расписания намазов не настроен.
var ErrPrayerTimesUnavailable = errors.New("prayer times are not configured")

// ListIftarDates возвращает дни календаря ифтаров в диапазоне [from, to].
func (s *Service) ListIftarDates(ctx context.Context, from, to time.Time) ([]model.IftarDate, error) {
	from, to = truncateDay(from), truncateDay(to)
	if to.Before(from) {
		return nil, &ValidationError{Field: "to", Reason: "must not be before from"}
	}
	if daysBetween(from, to) > maxCalendarDays {
		return nil, &ValidationError{Field: "to", Reason: fmt.Sprintf("range must not exceed %d days", maxCalendarDays)}
	}

	return s.repo.ListIftarDates(ctx, from, to)
}

// GenerateIftarDates добавляет в календарь дни от start до end включительно.
// Существующие дни не изменяются. Возвращает количество добавленных дней.
func (s *Service) GenerateIftarDates(ctx context.Context, start, end time.Time) (int64, error) {
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		return 0, &ValidationError{Field: "end", Reason: "must not be before start"}
	}
	if daysBetween(start, end)+1 > MaxIftarSpanDays {
		return 0, &ValidationError{Field: "end", Reason: fmt.Sprintf("range must not exceed %d days", MaxIftarSpanDays)}
	}

	return s.repo.CreateIftarDates(ctx, start, end)
}

// GetPrayerTimes возвращает расписание намазов на дату.
func (s *Service) GetPrayerTimes(ctx context.Context, date time.Time) (*model.PrayerTimes, error) {
	if s.prayerTimes == nil {
		return nil, ErrPrayerTimesUnavailable
	}

	return s.prayerTimes.GetTimings(ctx, truncateDay(date))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
