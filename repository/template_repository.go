package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"certistage/config"
	"certistage/db"
	"certistage/models"
)

// TemplateRepository stores templates as JSONB on certificate_types
type TemplateRepository struct{}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository() *TemplateRepository {
	return &TemplateRepository{}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const certificateTypeColumns = `id, event_id, name, enabled, template, template_version, updated_at`

func scanCertificateType(row rowScanner) (models.CertificateType, error) {
	var ct models.CertificateType
	var raw []byte
	var version int64
	var updatedAt time.Time
	if err := row.Scan(&ct.ID, &ct.EventID, &ct.Name, &ct.Enabled, &raw, &version, &updatedAt); err != nil {
		return ct, err
	}
	t, err := decodeTemplate(raw, ct.EventID, ct.ID, ct.Name)
	if err != nil {
		return ct, err
	}
	t.Version = version
	t.UpdatedAt = updatedAt
	ct.Template = t
	return ct, nil
}

// decodeTemplate reads the JSONB column. An empty document yields a fresh template.
func decodeTemplate(raw []byte, eventID, typeID, typeName string) (models.CertificateTemplate, error) {
	t := models.NewTemplate(eventID, typeID, typeName)
	if len(raw) > 0 && string(raw) != "{}" {
		if err := json.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("failed to decode template: %w", err)
		}
	}
	t.ID = typeID
	t.EventID = eventID
	t.TypeID = typeID
	if t.Name == "" {
		t.Name = typeName
	}
	return t, nil
}

// GetTemplate returns the template of a certificate type
func (r *TemplateRepository) GetTemplate(ctx context.Context, eventID, typeID string) (models.CertificateTemplate, error) {
	const op = "get template"
	query := `SELECT ` + certificateTypeColumns + ` FROM certificate_types WHERE event_id = $1 AND id = $2`

	ct, err := scanCertificateType(db.DB.QueryRowContext(ctx, query, eventID, typeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CertificateTemplate{}, models.NotFound(op, models.CodeTemplateNotFound, "template not found")
		}
		config.Log.WithError(err).WithField("type_id", typeID).Error("❌ GetTemplate: query failed")
		return models.CertificateTemplate{}, models.PersistenceFailure(op, err)
	}
	return ct.Template, nil
}

// PatchTemplate merges patch into the stored template and bumps its version
func (r *TemplateRepository) PatchTemplate(ctx context.Context, eventID, typeID string, patch models.TemplatePatch) (models.CertificateTemplate, error) {
	const op = "patch template"
	log := config.Log.WithFields(logrus.Fields{"event_id": eventID, "type_id": typeID})

	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.CertificateTemplate{}, models.PersistenceFailure(op, fmt.Errorf("failed to start transaction: %w", err))
	}
	defer tx.Rollback()

	query := `SELECT ` + certificateTypeColumns + ` FROM certificate_types WHERE event_id = $1 AND id = $2 FOR UPDATE`
	ct, err := scanCertificateType(tx.QueryRowContext(ctx, query, eventID, typeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CertificateTemplate{}, models.NotFound(op, models.CodeTemplateNotFound, "template not found")
		}
		return models.CertificateTemplate{}, models.PersistenceFailure(op, err)
	}

	next := patch.Apply(ct.Template)
	raw, err := json.Marshal(next)
	if err != nil {
		return models.CertificateTemplate{}, models.PersistenceFailure(op, fmt.Errorf("failed to encode template: %w", err))
	}

	update := `
		UPDATE certificate_types
		SET template = $1, template_version = template_version + 1, updated_at = now()
		WHERE event_id = $2 AND id = $3
		RETURNING template_version, updated_at
	`
	if err := tx.QueryRowContext(ctx, update, raw, eventID, typeID).Scan(&next.Version, &next.UpdatedAt); err != nil {
		log.WithError(err).Error("❌ PatchTemplate: update failed")
		return models.CertificateTemplate{}, models.PersistenceFailure(op, err)
	}

	if err := tx.Commit(); err != nil {
		return models.CertificateTemplate{}, models.PersistenceFailure(op, fmt.Errorf("failed to commit transaction: %w", err))
	}

	log.WithField("version", next.Version).Debug("💾 Template saved")
	return next, nil
}

// ListTypes returns every certificate type of an event with its template
func (r *TemplateRepository) ListTypes(ctx context.Context, eventID string) ([]models.CertificateType, error) {
	const op = "list certificate types"
	query := `SELECT ` + certificateTypeColumns + ` FROM certificate_types WHERE event_id = $1 ORDER BY created_at, id`

	rows, err := db.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, models.PersistenceFailure(op, err)
	}
	defer rows.Close()

	var types []models.CertificateType
	for rows.Next() {
		ct, err := scanCertificateType(rows)
		if err != nil {
			return nil, models.PersistenceFailure(op, err)
		}
		types = append(types, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, models.PersistenceFailure(op, err)
	}
	return types, nil
}

// EventRepository reads events
type EventRepository struct{}

// NewEventRepository creates a new EventRepository
func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

// GetEvent returns one event
func (r *EventRepository) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	var e models.Event
	err := db.DB.QueryRowContext(ctx, `SELECT id, name, plan_id FROM events WHERE id = $1`, eventID).
		Scan(&e.ID, &e.Name, &e.PlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, models.NotFound("get event", "", "event not found")
		}
		return e, models.PersistenceFailure("get event", err)
	}
	return e, nil
}
