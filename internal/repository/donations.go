package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

const donationColumns = `d.id, d.donation_type_id, t.name, d.amount, d.total_amount, d.currency,
	d.donor_name, d.donor_email, d.donor_phone, d.anonymous, d.cover_fees, d.status,
	d.payment_reference, d.customer_reference, d.notes, d.sponsorship_date, d.created_at, d.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(row rowScanner) (*model.Donation, error) {
	var (
		d               model.Donation
		status          string
		sponsorshipDate sql.NullTime
	)

	err := row.Scan(
		&d.ID, &d.DonationTypeID, &d.DonationTypeName, &d.Amount, &d.TotalAmount, &d.Currency,
		&d.DonorName, &d.DonorEmail, &d.DonorPhone, &d.Anonymous, &d.CoverFees, &status,
		&d.PaymentReference, &d.CustomerReference, &d.Notes, &sponsorshipDate, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = model.DonationStatus(status)
	if sponsorshipDate.Valid {
		day := sponsorshipDate.Time
		d.SponsorshipDate = &day
	}

	return &d, nil
}

// ListDonationTypes возвращает категории пожертвований.
func (r *PostgresRepository) ListDonationTypes(ctx context.Context, activeOnly bool) ([]model.DonationType, error) {
	query := `SELECT id, name, active FROM donation_types`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select donation types: %w", err)
	}
	defer rows.Close()

	var res []model.DonationType
	for rows.Next() {
		var dt model.DonationType
		if err := rows.Scan(&dt.ID, &dt.Name, &dt.Active); err != nil {
			return nil, fmt.Errorf("scan donation type: %w", err)
		}
		res = append(res, dt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetDonationType возвращает категорию пожертвования по идентификатору.
func (r *PostgresRepository) GetDonationType(ctx context.Context, id int64) (*model.DonationType, error) {
	var dt model.DonationType
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, active FROM donation_types WHERE id = $1`,
		id,
	).Scan(&dt.ID, &dt.Name, &dt.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDonationTypeNotFound
		}
		return nil, fmt.Errorf("get donation type: %w", err)
	}

	return &dt, nil
}

// CreateDonation сохраняет новую запись о пожертвовании и заполняет время создания.
func (r *PostgresRepository) CreateDonation(ctx context.Context, d *model.Donation) error {
	var sponsorshipDate any
	if d.SponsorshipDate != nil {
		sponsorshipDate = *d.SponsorshipDate
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO donations (id, donation_type_id, amount, total_amount, currency, donor_name, donor_email,
			donor_phone, anonymous, cover_fees, status, payment_reference, customer_reference, notes, sponsorship_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING created_at, updated_at`,
		d.ID, d.DonationTypeID, d.Amount, d.TotalAmount, d.Currency, d.DonorName, d.DonorEmail,
		d.DonorPhone, d.Anonymous, d.CoverFees, string(d.Status), d.PaymentReference, d.CustomerReference,
		d.Notes, sponsorshipDate,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, d.PaymentReference)
		}
		return fmt.Errorf("insert donation: %w", err)
	}

	return nil
}

// GetDonation возвращает пожертвование по идентификатору.
func (r *PostgresRepository) GetDonation(ctx context.Context, id uuid.UUID) (*model.Donation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+donationColumns+`
		 FROM donations d
		 JOIN donation_types t ON t.id = d.donation_type_id
		 WHERE d.id = $1`,
		id,
	)

	d, err := scanDonation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDonationNotFound
		}
		return nil, fmt.Errorf("get donation: %w", err)
	}

	return d, nil
}

// GetDonationByReference возвращает пожертвование по идентификатору платёжного намерения.
func (r *PostgresRepository) GetDonationByReference(ctx context.Context, reference string) (*model.Donation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+donationColumns+`
		 FROM donations d
		 JOIN donation_types t ON t.id = d.donation_type_id
		 WHERE d.payment_reference = $1`,
		reference,
	)

	d, err := scanDonation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDonationNotFound
		}
		return nil, fmt.Errorf("get donation by reference: %w", err)
	}

	return d, nil
}

// ListDonations возвращает пожертвования, удовлетворяющие фильтру, от новых к старым.
func (r *PostgresRepository) ListDonations(ctx context.Context, f model.DonationFilter) ([]model.Donation, error) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.DonationTypeID != nil {
		add("d.donation_type_id = $%d", *f.DonationTypeID)
	}
	if f.Status != nil {
		add("d.status = $%d", string(*f.Status))
	}
	if f.StartDate != nil {
		add("d.created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("d.created_at <= $%d", *f.EndDate)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(d.donor_name ILIKE $%d OR d.donor_email ILIKE $%d)", n, n))
	}

	query := `SELECT ` + donationColumns + `
		 FROM donations d
		 JOIN donation_types t ON t.id = d.donation_type_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY d.created_at DESC, d.id"

	return r.queryDonations(ctx, query, args...)
}

// ListPendingDonations возвращает ожидающие пожертвования, созданные раньше указанного момента.
func (r *PostgresRepository) ListPendingDonations(ctx context.Context, createdBefore time.Time, limit int) ([]model.Donation, error) {
	return r.queryDonations(ctx,
		`SELECT `+donationColumns+`
		 FROM donations d
		 JOIN donation_types t ON t.id = d.donation_type_id
		 WHERE d.status = $1 AND d.created_at < $2
		 ORDER BY d.created_at
		 LIMIT $3`,
		string(model.DonationStatusPending), createdBefore, limit,
	)
}

func (r *PostgresRepository) queryDonations(ctx context.Context, query string, args ...any) ([]model.Donation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select donations: %w", err)
	}
	defer rows.Close()

	var res []model.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		res = append(res, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// TransitionStatus атомарно переводит пожертвование из статуса from в статус to.
// Возвращает false, если текущий статус уже отличается от from: переход выполнил кто-то другой.
// При завершении пожертвования со спонсорством ифтара день в той же транзакции становится занятым.
// Если день уже занят, у результата выставляется SponsorshipConflict.
func (r *PostgresRepository) TransitionStatus(ctx context.Context, reference string, from, to model.DonationStatus) (*model.Donation, bool, error) {
	var (
		updated *model.Donation
		changed bool
	)

	err := r.withRetry(ctx, func() error {
		updated, changed = nil, false

		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		row := tx.QueryRowContext(ctx,
			`WITH d AS (
				UPDATE donations
				SET status = $3, updated_at = now()
				WHERE payment_reference = $1 AND status = $2
				RETURNING *
			)
			SELECT `+donationColumns+`
			FROM d
			JOIN donation_types t ON t.id = d.donation_type_id`,
			reference, string(from), string(to),
		)

		d, err := scanDonation(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("update donation status: %w", err)
		}

		if to == model.DonationStatusCompleted && d.SponsorshipDate != nil {
			res, err := tx.ExecContext(ctx,
				`UPDATE iftar_dates SET available = FALSE, sponsor_name = $2, donation_id = $3
				 WHERE day = $1 AND available`,
				*d.SponsorshipDate, d.DisplayName(), d.ID,
			)
			if err != nil {
				return fmt.Errorf("reserve iftar date: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("reserve iftar date: %w", err)
			}
			// Платёж уже списан, поэтому пожертвование всё равно завершается.
			d.SponsorshipConflict = n == 0
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		updated, changed = d, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return updated, changed, nil
}

// UpdateDonation применяет ручные изменения администратора. Статус перезаписывается без проверок перехода.
func (r *PostgresRepository) UpdateDonation(ctx context.Context, id uuid.UUID, upd model.DonationUpdate) (*model.Donation, error) {
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}

	row := r.db.QueryRowContext(ctx,
		`WITH d AS (
			UPDATE donations
			SET status = COALESCE($2, status),
				donor_name = COALESCE($3, donor_name),
				donor_email = COALESCE($4, donor_email),
				donor_phone = COALESCE($5, donor_phone),
				notes = COALESCE($6, notes),
				updated_at = now()
			WHERE id = $1
			RETURNING *
		)
		SELECT `+donationColumns+`
		FROM d
		JOIN donation_types t ON t.id = d.donation_type_id`,
		id, status, upd.DonorName, upd.DonorEmail, upd.DonorPhone, upd.Notes,
	)

	d, err := scanDonation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDonationNotFound
		}
		return nil, fmt.Errorf("update donation: %w", err)
	}

	return d, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
