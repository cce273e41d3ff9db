package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

var donationRowColumns = []string{
	"id", "donation_type_id", "name", "amount", "total_amount", "currency",
	"donor_name", "donor_email", "donor_phone", "anonymous", "cover_fees", "status",
	"payment_reference", "customer_reference", "notes", "sponsorship_date", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewWithDB(db), mock
}

func donationRow(id uuid.UUID, status model.DonationStatus, sponsorshipDate driver.Value) []driver.Value {
	created := time.Date(2026, 2, 20, 18, 30, 0, 0, time.UTC)
	return []driver.Value{
		id.String(), int64(5), "Iftar Sponsorship", int64(10000), int64(10330), "usd",
		"Aisha", "aisha@example.com", "", false, true, string(status),
		"pi_123", "", "", sponsorshipDate, created, created,
	}
}

func TestTransitionStatus_CompletesAndReservesIftarDate(t *testing.T) {
	repo, mock := newMockRepo(t)

	id := uuid.New()
	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`WITH d AS \(\s*UPDATE donations\s+SET status = \$3`).
		WithArgs("pi_123", "pending", "completed").
		WillReturnRows(sqlmock.NewRows(donationRowColumns).AddRow(donationRow(id, model.DonationStatusCompleted, day)...))
	mock.ExpectExec(`UPDATE iftar_dates SET available = FALSE`).
		WithArgs(day, "Aisha", id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d, changed, err := repo.TransitionStatus(context.Background(), "pi_123", model.DonationStatusPending, model.DonationStatusCompleted)
	require.NoError(t, err)

	assert.True(t, changed)
	assert.Equal(t, id, d.ID)
	assert.Equal(t, model.DonationStatusCompleted, d.Status)
	assert.Equal(t, "Iftar Sponsorship", d.DonationTypeName)
	require.NotNil(t, d.SponsorshipDate)
	assert.True(t, d.SponsorshipDate.Equal(day))
	assert.False(t, d.SponsorshipConflict)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestTransitionStatus_IftarDateAlreadySponsored(t *testing.T) {
	repo, mock := newMockRepo(t)

	id := uuid.New()
	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`WITH d AS \(\s*UPDATE donations\s+SET status = \$3`).
		WithArgs("pi_123", "pending", "completed").
		WillReturnRows(sqlmock.NewRows(donationRowColumns).AddRow(donationRow(id, model.DonationStatusCompleted, day)...))
	mock.ExpectExec(`UPDATE iftar_dates SET available = FALSE`).
		WithArgs(day, "Aisha", id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	d, changed, err := repo.TransitionStatus(context.Background(), "pi_123", model.DonationStatusPending, model.DonationStatusCompleted)
	require.NoError(t, err)

	assert.True(t, changed)
	assert.Equal(t, model.DonationStatusCompleted, d.Status)
	assert.True(t, d.SponsorshipConflict)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestTransitionStatus_AlreadyTransitioned(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`WITH d AS \(\s*UPDATE donations`).
		WithArgs("pi_123", "pending", "completed").
		WillReturnRows(sqlmock.NewRows(donationRowColumns))
	mock.ExpectRollback()

	d, changed, err := repo.TransitionStatus(context.Background(), "pi_123", model.DonationStatusPending, model.DonationStatusCompleted)
	require.NoError(t, err)

	assert.False(t, changed)
	assert.Nil(t, d)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestTransitionStatus_RetriesSerializationFailure(t *testing.T) {
	saved := retryBase
	retryBase = time.Millisecond
	t.Cleanup(func() { retryBase = saved })

	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`WITH d AS \(\s*UPDATE donations`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(`WITH d AS \(\s*UPDATE donations`).
		WithArgs("pi_123", "pending", "failed").
		WillReturnRows(sqlmock.NewRows(donationRowColumns).AddRow(donationRow(id, model.DonationStatusFailed, nil)...))
	mock.ExpectCommit()

	d, changed, err := repo.TransitionStatus(context.Background(), "pi_123", model.DonationStatusPending, model.DonationStatusFailed)
	require.NoError(t, err)

	assert.True(t, changed)
	assert.Equal(t, model.DonationStatusFailed, d.Status)
	assert.Nil(t, d.SponsorshipDate)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestListDonations_BuildsFilter(t *testing.T) {
	repo, mock := newMockRepo(t)

	typeID := int64(2)
	status := model.DonationStatusCompleted
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)

	id := uuid.New()

	mock.ExpectQuery(`WHERE d.donation_type_id = \$1 AND d.status = \$2 AND d.created_at >= \$3 AND d.created_at <= \$4 AND \(d.donor_name ILIKE \$5 OR d.donor_email ILIKE \$5\) ORDER BY d.created_at DESC, d.id`).
		WithArgs(typeID, "completed", start, end, `%50\%%`).
		WillReturnRows(sqlmock.NewRows(donationRowColumns).AddRow(donationRow(id, model.DonationStatusCompleted, nil)...))

	res, err := repo.ListDonations(context.Background(), model.DonationFilter{
		DonationTypeID: &typeID,
		Status:         &status,
		StartDate:      &start,
		EndDate:        &end,
		Query:          "50%",
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, id, res[0].ID)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestListDonations_NoFilter(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`JOIN donation_types t ON t.id = d.donation_type_id ORDER BY d.created_at DESC, d.id`).
		WillReturnRows(sqlmock.NewRows(donationRowColumns))

	res, err := repo.ListDonations(context.Background(), model.DonationFilter{})
	require.NoError(t, err)
	assert.Empty(t, res)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCreateDonation(t *testing.T) {
	repo, mock := newMockRepo(t)

	created := time.Date(2026, 2, 20, 18, 30, 0, 0, time.UTC)
	d := &model.Donation{
		ID:               uuid.New(),
		DonationTypeID:   1,
		Amount:           2500,
		TotalAmount:      2500,
		Currency:         "usd",
		DonorName:        "Omar",
		DonorEmail:       "omar@example.com",
		Status:           model.DonationStatusPending,
		PaymentReference: "pi_456",
	}

	mock.ExpectQuery(`INSERT INTO donations`).
		WithArgs(d.ID, int64(1), int64(2500), int64(2500), "usd", "Omar", "omar@example.com",
			"", false, false, "pending", "pi_456", "", "", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

	require.NoError(t, repo.CreateDonation(context.Background(), d))
	assert.Equal(t, created, d.CreatedAt)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCreateDonation_DuplicateReference(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO donations`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := repo.CreateDonation(context.Background(), &model.Donation{ID: uuid.New(), PaymentReference: "pi_dup"})
	assert.True(t, errors.Is(err, ErrDuplicateReference))
}

func TestGetDonation_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	id := uuid.New()
	mock.ExpectQuery(`WHERE d.id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(donationRowColumns))

	_, err := repo.GetDonation(context.Background(), id)
	assert.ErrorIs(t, err, ErrDonationNotFound)
}

func TestUpdateDonation_OverridesStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	id := uuid.New()
	status := model.DonationStatusRefunded
	notes := "refunded by bank transfer"

	mock.ExpectQuery(`SET status = COALESCE\(\$2, status\)`).
		WithArgs(id, "refunded", nil, nil, nil, notes).
		WillReturnRows(sqlmock.NewRows(donationRowColumns).AddRow(donationRow(id, model.DonationStatusRefunded, nil)...))

	d, err := repo.UpdateDonation(context.Background(), id, model.DonationUpdate{Status: &status, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, model.DonationStatusRefunded, d.Status)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestUpdateDonation_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`UPDATE donations`).
		WillReturnRows(sqlmock.NewRows(donationRowColumns))

	_, err := repo.UpdateDonation(context.Background(), uuid.New(), model.DonationUpdate{})
	assert.ErrorIs(t, err, ErrDonationNotFound)
}
