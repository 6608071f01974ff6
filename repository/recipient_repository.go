package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"certistage/config"
	"certistage/db"
	"certistage/models"
)

// RecipientRepository handles database operations for recipients
type RecipientRepository struct{}

// NewRecipientRepository creates a new RecipientRepository
func NewRecipientRepository() *RecipientRepository {
	return &RecipientRepository{}
}

const recipientColumns = `id, event_id, type_id, certificate_id, name, email, mobile,
	download_status, download_count, last_downloaded_at, created_at`

func scanRecipient(row rowScanner) (models.Recipient, error) {
	var r models.Recipient
	var status string
	var last sql.NullTime
	err := row.Scan(&r.ID, &r.EventID, &r.TypeID, &r.CertificateID, &r.Name, &r.Email, &r.Mobile,
		&status, &r.DownloadCount, &last, &r.CreatedAt)
	if err != nil {
		return r, err
	}
	r.DownloadStatus = models.DownloadStatus(status)
	if last.Valid {
		t := last.Time
		r.LastDownloadedAt = &t
	}
	return r, nil
}

func (r *RecipientRepository) queryRecipients(ctx context.Context, op, query string, args ...any) ([]models.Recipient, error) {
	rows, err := db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.PersistenceFailure(op, err)
	}
	defer rows.Close()

	var out []models.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, models.PersistenceFailure(op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, models.PersistenceFailure(op, err)
	}
	return out, nil
}

// ListRecipients returns the recipients of a certificate type in insertion order
func (r *RecipientRepository) ListRecipients(ctx context.Context, eventID, typeID string) ([]models.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE event_id = $1 AND type_id = $2 ORDER BY created_at, id`
	return r.queryRecipients(ctx, "list recipients", query, eventID, typeID)
}

// AddRecipients admits recipients under the event's cap. The event row is
// locked so concurrent imports cannot overshoot the cap.
func (r *RecipientRepository) AddRecipients(ctx context.Context, eventID, typeID string, recipients []models.Recipient, limit int) (models.AddResult, error) {
	const op = "add recipients"
	var result models.AddResult
	log := config.Log.WithFields(logrus.Fields{"event_id": eventID, "type_id": typeID})

	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return result, models.PersistenceFailure(op, fmt.Errorf("failed to start transaction: %w", err))
	}
	defer tx.Rollback()

	var lockedID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, models.NotFound(op, "", "event not found")
		}
		return result, models.PersistenceFailure(op, err)
	}

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipients WHERE event_id = $1`, eventID).Scan(&existing); err != nil {
		return result, models.PersistenceFailure(op, err)
	}

	insert := `
		INSERT INTO recipients (id, event_id, type_id, certificate_id, name, email, mobile,
			certificate_norm, name_norm, email_norm, mobile_norm)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (type_id, certificate_norm) DO NOTHING
	`
	for _, rec := range recipients {
		keys := keysOf(rec)

		var dup bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM recipients WHERE type_id = $1 AND certificate_norm = $2)`,
			typeID, keys.certificate).Scan(&dup)
		if err != nil {
			return result, models.PersistenceFailure(op, err)
		}
		if dup {
			result.Duplicates++
			continue
		}
		if limit >= 0 && existing+result.Accepted >= limit {
			result.RejectedForQuota++
			continue
		}

		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, insert, id, eventID, typeID, rec.CertificateID, rec.Name, rec.Email, rec.Mobile,
			keys.certificate, keys.name, keys.email, keys.mobile); err != nil {
			log.WithError(err).Error("❌ AddRecipients: insert failed")
			return models.AddResult{}, models.PersistenceFailure(op, err)
		}
		result.Accepted++
	}

	if err := tx.Commit(); err != nil {
		return models.AddResult{}, models.PersistenceFailure(op, fmt.Errorf("failed to commit transaction: %w", err))
	}

	log.WithFields(logrus.Fields{
		"accepted":           result.Accepted,
		"rejected_for_quota": result.RejectedForQuota,
		"duplicates":         result.Duplicates,
	}).Info("✓ Recipients added")
	return result, nil
}

// DownloadLimitError is returned once a recipient used up the plan's downloads
func DownloadLimitError(op string, limit int) error {
	return models.QuotaExceeded(op, models.CodeDownloadLimit,
		fmt.Sprintf("this certificate can be downloaded %d time(s)", limit))
}

// RecordDownload increments the counter in a single statement so two
// concurrent downloads of the same recipient cannot lose an update
func (r *RecipientRepository) RecordDownload(ctx context.Context, recipientID string, at time.Time, limit int) (models.Recipient, error) {
	const op = "record download"
	query := `
		UPDATE recipients
		SET download_count = download_count + 1,
		    download_status = 'downloaded',
		    last_downloaded_at = $2
		WHERE id = $1 AND ($3 < 0 OR download_count < $3)
		RETURNING ` + recipientColumns

	rec, err := scanRecipient(db.DB.QueryRowContext(ctx, query, recipientID, at, limit))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the row is gone or the guard refused the bump
			if _, getErr := r.GetByID(ctx, recipientID); getErr != nil {
				return rec, getErr
			}
			return rec, DownloadLimitError(op, limit)
		}
		config.Log.WithError(err).WithField("recipient_id", recipientID).Error("❌ RecordDownload: update failed")
		return rec, models.PersistenceFailure(op, err)
	}
	return rec, nil
}

// FindCandidates matches a verification key against every type of the event
func (r *RecipientRepository) FindCandidates(ctx context.Context, eventID string, key models.SearchField, value string) ([]models.Recipient, error) {
	column, ok := keyColumn(key)
	norm := normalizeKey(key, value)
	if !ok || norm == "" {
		return nil, nil
	}
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE event_id = $1 AND ` + column + ` = $2 ORDER BY type_id, created_at, id`
	return r.queryRecipients(ctx, "find candidates", query, eventID, norm)
}

// GetByCertificateID returns the recipient holding a certificate id within a type
func (r *RecipientRepository) GetByCertificateID(ctx context.Context, eventID, typeID, certificateID string) (models.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE event_id = $1 AND type_id = $2 AND certificate_norm = $3`
	rec, err := scanRecipient(db.DB.QueryRowContext(ctx, query, eventID, typeID, normalizeKey(models.SearchRegNo, certificateID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, models.NotFound("get recipient", models.CodeRecipientNotFound, "recipient not found")
		}
		return rec, models.PersistenceFailure("get recipient", err)
	}
	return rec, nil
}

// GetByID returns one recipient
func (r *RecipientRepository) GetByID(ctx context.Context, recipientID string) (models.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE id = $1`
	rec, err := scanRecipient(db.DB.QueryRowContext(ctx, query, recipientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, models.NotFound("get recipient", models.CodeRecipientNotFound, "recipient not found")
		}
		return rec, models.PersistenceFailure("get recipient", err)
	}
	return rec, nil
}

// Delete removes a recipient
func (r *RecipientRepository) Delete(ctx context.Context, recipientID string) error {
	res, err := db.DB.ExecContext(ctx, `DELETE FROM recipients WHERE id = $1`, recipientID)
	if err != nil {
		return models.PersistenceFailure("delete recipient", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.PersistenceFailure("delete recipient", err)
	}
	if n == 0 {
		return models.NotFound("delete recipient", models.CodeRecipientNotFound, "recipient not found")
	}
	return nil
}

// CountByEvent returns how many recipients count against the event's plan
func (r *RecipientRepository) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipients WHERE event_id = $1`, eventID).Scan(&n); err != nil {
		return 0, models.PersistenceFailure("count recipients", err)
	}
	return n, nil
}
