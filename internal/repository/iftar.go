package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

func scanIftarDate(row rowScanner) (*model.IftarDate, error) {
	var (
		d          model.IftarDate
		donationID uuid.NullUUID
	)

	if err := row.Scan(&d.Day, &d.Available, &d.SponsorName, &donationID); err != nil {
		return nil, err
	}
	if donationID.Valid {
		id := donationID.UUID
		d.DonationID = &id
	}

	return &d, nil
}

// ListIftarDates возвращает дни календаря ифтаров в диапазоне [from, to].
func (r *PostgresRepository) ListIftarDates(ctx context.Context, from, to time.Time) ([]model.IftarDate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT day, available, sponsor_name, donation_id
		 FROM iftar_dates
		 WHERE day BETWEEN $1 AND $2
		 ORDER BY day`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select iftar dates: %w", err)
	}
	defer rows.Close()

	var res []model.IftarDate
	for rows.Next() {
		d, err := scanIftarDate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan iftar date: %w", err)
		}
		res = append(res, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetIftarDate возвращает день календаря ифтаров.
func (r *PostgresRepository) GetIftarDate(ctx context.Context, day time.Time) (*model.IftarDate, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT day, available, sponsor_name, donation_id FROM iftar_dates WHERE day = $1`,
		day,
	)

	d, err := scanIftarDate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIftarDateNotFound
		}
		return nil, fmt.Errorf("get iftar date: %w", err)
	}

	return d, nil
}

// CreateIftarDates добавляет в календарь все дни диапазона [start, end]. Существующие дни не изменяются.
func (r *PostgresRepository) CreateIftarDates(ctx context.Context, start, end time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO iftar_dates (day)
		 SELECT generate_series($1::date, $2::date, interval '1 day')::date
		 ON CONFLICT (day) DO NOTHING`,
		start, end,
	)
	if err != nil {
		return 0, fmt.Errorf("insert iftar dates: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return n, nil
}
