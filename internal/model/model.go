// Package model содержит доменные сущности сервиса пожертвований мечети.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DonationStatus описывает статус записи о пожертвовании.
type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"
	DonationStatusCompleted DonationStatus = "completed"
	DonationStatusFailed    DonationStatus = "failed"
	DonationStatusRefunded  DonationStatus = "refunded"
)

// ParseDonationStatus преобразует строку в статус пожертвования.
func ParseDonationStatus(s string) (DonationStatus, error) {
	switch st := DonationStatus(s); st {
	case DonationStatusPending, DonationStatusCompleted, DonationStatusFailed, DonationStatusRefunded:
		return st, nil
	default:
		return "", fmt.Errorf("unknown donation status %q", s)
	}
}

// Terminal сообщает, что из статуса нет автоматических переходов.
func (s DonationStatus) Terminal() bool {
	switch s {
	case DonationStatusCompleted, DonationStatusFailed, DonationStatusRefunded:
		return true
	case DonationStatusPending:
		return false
	default:
		return false
	}
}

// PaymentStatus описывает состояние платежа в терминах сервиса, независимо от платёжного шлюза.
type PaymentStatus string

const (
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// DonationType описывает категорию пожертвования (закят, садака, ифтар и т.д.).
type DonationType struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Donation описывает одну попытку пожертвования от создания платёжного намерения до конечного статуса.
// Суммы хранятся в центах.
type Donation struct {
	ID                uuid.UUID
	DonationTypeID    int64
	DonationTypeName  string
	Amount            int64
	TotalAmount       int64
	Currency          string
	DonorName         string
	DonorEmail        string
	DonorPhone        string
	Anonymous         bool
	CoverFees         bool
	Status            DonationStatus
	PaymentReference  string
	CustomerReference string
	Notes             string
	SponsorshipDate   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// SponsorshipConflict выставляется при завершении, если выбранный день ифтара
	// к этому моменту уже занят другим жертвователем. В базе не хранится.
	SponsorshipConflict bool
}

// DisplayName возвращает имя жертвователя с учётом анонимности.
func (d Donation) DisplayName() string {
	if d.Anonymous || d.DonorName == "" {
		return "Anonymous"
	}
	return d.DonorName
}

// DonationRequest содержит данные формы пожертвования в том виде, в котором их прислал клиент.
type DonationRequest struct {
	DonationTypeID  int64
	Amount          string
	Name            string
	Email           string
	Phone           string
	Anonymous       bool
	CoverFees       bool
	Notes           string
	SponsorshipDate string
	Metadata        map[string]string
}

// PaymentIntent возвращается клиенту после создания платёжного намерения.
type PaymentIntent struct {
	DonationID   uuid.UUID
	Reference    string
	ClientSecret string
	Amount       int64
	Fees         int64
	Total        int64
	Currency     string
}

// PaymentMethod содержит краткие сведения о способе оплаты для отображения.
type PaymentMethod struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

// PaymentStatusResult описывает результат запроса статуса платежа у шлюза.
type PaymentStatusResult struct {
	Reference      string
	Status         PaymentStatus
	AmountReceived int64
	Currency       string
	PaymentMethod  *PaymentMethod
	Metadata       map[string]string
	// Final означает, что шлюз больше не изменит состояние намерения.
	// Отклонённая попытка оплаты не финальна: жертвователь может повторить её с тем же намерением.
	Final bool
}

// GatewayEventKind описывает нормализованный тип уведомления от платёжного шлюза.
type GatewayEventKind string

const (
	GatewayEventSucceeded GatewayEventKind = "succeeded"
	GatewayEventDeclined  GatewayEventKind = "declined"
	GatewayEventFailed    GatewayEventKind = "failed"
	GatewayEventRefunded  GatewayEventKind = "refunded"
)

// GatewayEvent описывает уведомление шлюза, относящееся к платёжному намерению.
type GatewayEvent struct {
	ID        string
	Kind      GatewayEventKind
	Reference string
}

// DonationFilter задаёт условия выборки пожертвований для административного списка.
type DonationFilter struct {
	DonationTypeID *int64
	Status         *DonationStatus
	StartDate      *time.Time
	EndDate        *time.Time
	Query          string
}

// EndOfDay возвращает последний момент дня, чтобы дата конца диапазона включала весь день.
func EndOfDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, day.Location()).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DonationUpdate содержит поля, которые администратор может изменить вручную.
type DonationUpdate struct {
	Status     *DonationStatus
	DonorName  *string
	DonorEmail *string
	DonorPhone *string
	Notes      *string
}

// IftarDate описывает день календаря спонсорства ифтаров.
type IftarDate struct {
	Day         time.Time  `json:"-"`
	Available   bool       `json:"available"`
	SponsorName string     `json:"sponsorName,omitempty"`
	DonationID  *uuid.UUID `json:"donationId,omitempty"`
}

// PrayerTimes содержит расписание намазов на один день.
type PrayerTimes struct {
	Date    string `json:"date"`
	Fajr    string `json:"fajr"`
	Sunrise string `json:"sunrise"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Maghrib string `json:"maghrib"`
	Isha    string `json:"isha"`
}
