package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListIftarDates(t *testing.T) {
	repo, mock := newMockRepo(t)

	from := time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	donationID := uuid.New()

	mock.ExpectQuery(`FROM iftar_dates\s+WHERE day BETWEEN \$1 AND \$2`).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"day", "available", "sponsor_name", "donation_id"}).
			AddRow(from, false, "Aisha", donationID.String()).
			AddRow(from.AddDate(0, 0, 1), true, "", nil))

	res, err := repo.ListIftarDates(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.False(t, res[0].Available)
	assert.Equal(t, "Aisha", res[0].SponsorName)
	require.NotNil(t, res[0].DonationID)
	assert.Equal(t, donationID, *res[0].DonationID)

	assert.True(t, res[1].Available)
	assert.Nil(t, res[1].DonationID)
}

func TestGetIftarDate_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM iftar_dates WHERE day = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"day", "available", "sponsor_name", "donation_id"}))

	_, err := repo.GetIftarDate(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrIftarDateNotFound)
}

func TestCreateIftarDates(t *testing.T) {
	repo, mock := newMockRepo(t)

	start := time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 19, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO iftar_dates \(day\)\s+SELECT generate_series`).
		WithArgs(start, end).
		WillReturnResult(sqlmock.NewResult(0, 30))

	n, err := repo.CreateIftarDates(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(30), n)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
