package service

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"certistage/models"
	"certistage/pricing"
	"certistage/repository"
)

// RecipientService admits, lists and removes recipients under the event's plan
type RecipientService struct {
	recipients repository.RecipientStore
	templates  repository.TemplateStore
	events     repository.EventStore
	plans      pricing.PlanPolicy
}

// Ensure RecipientService implements RecipientServiceInterface
var _ RecipientServiceInterface = (*RecipientService)(nil)

// NewRecipientService creates a new RecipientService
func NewRecipientService(
	recipients repository.RecipientStore,
	templates repository.TemplateStore,
	events repository.EventStore,
	plans pricing.PlanPolicy,
) *RecipientService {
	return &RecipientService{
		recipients: recipients,
		templates:  templates,
		events:     events,
		plans:      plans,
	}
}

// limitFor turns the plan cap into the store's convention (negative = unlimited)
func (s *RecipientService) limitFor(planID string) int {
	limit, unlimited := s.plans.MaxRecipients(planID)
	if unlimited {
		return -1
	}
	return limit
}

func (s *RecipientService) ensureType(ctx context.Context, sess models.Session, typeID string) error {
	if _, err := s.templates.GetTemplate(ctx, sess.EventID, typeID); err != nil {
		return storeError("get certificate type", err)
	}
	return nil
}

// List returns the recipients of one certificate type
func (s *RecipientService) List(ctx context.Context, sess models.Session, typeID string) ([]models.Recipient, error) {
	out, err := s.recipients.ListRecipients(ctx, sess.EventID, typeID)
	if err != nil {
		return nil, storeError("list recipients", err)
	}
	return out, nil
}

// AddRecipient admits a single recipient, failing with QuotaExceeded once the
// event holds as many recipients as the plan allows
func (s *RecipientService) AddRecipient(ctx context.Context, sess models.Session, typeID string, r models.Recipient) (models.Recipient, error) {
	if err := models.ValidateRecipient(r); err != nil {
		return models.Recipient{}, err
	}
	if err := s.ensureType(ctx, sess, typeID); err != nil {
		return models.Recipient{}, err
	}
	planID, err := planFor(ctx, s.events, sess)
	if err != nil {
		return models.Recipient{}, err
	}

	limit := s.limitFor(planID)
	res, err := s.recipients.AddRecipients(ctx, sess.EventID, typeID, []models.Recipient{r}, limit)
	if err != nil {
		return models.Recipient{}, storeError("add recipient", err)
	}
	switch {
	case res.RejectedForQuota > 0:
		return models.Recipient{}, models.QuotaExceeded("add recipient", models.CodeRecipientCap,
			fmt.Sprintf("plan allows %d recipients per event", limit))
	case res.Duplicates > 0:
		return models.Recipient{}, models.Invalid("add recipient",
			fmt.Sprintf("certificate id %q already exists for this type", r.CertificateID))
	}

	saved, err := s.recipients.GetByCertificateID(ctx, sess.EventID, typeID, r.CertificateID)
	if err != nil {
		return models.Recipient{}, storeError("get recipient", err)
	}
	sessionLog(sess).WithFields(logrus.Fields{
		"type_id":      typeID,
		"recipient_id": saved.ID,
	}).Info("✓ Recipient added")
	return saved, nil
}

// ImportRecipients admits a batch up to the remaining quota. Invalid rows are
// counted and reported, never sent to the store.
func (s *RecipientService) ImportRecipients(ctx context.Context, sess models.Session, typeID string, rows []models.Recipient) (models.AddResult, error) {
	parsed := make([]csvRow, len(rows))
	for i, r := range rows {
		parsed[i] = csvRow{Line: i + 1, Recipient: r}
	}
	return s.importRows(ctx, sess, typeID, parsed, "row")
}

// ImportCSV parses a header-mapped CSV and imports its rows
func (s *RecipientService) ImportCSV(ctx context.Context, sess models.Session, typeID string, r io.Reader) (models.AddResult, error) {
	// Plan gate first so a disallowed upload is not parsed at all
	if err := s.checkBulk(ctx, sess); err != nil {
		return models.AddResult{}, err
	}
	rows, err := parseRecipientsCSV(r)
	if err != nil {
		return models.AddResult{}, err
	}
	return s.importRows(ctx, sess, typeID, rows, "line")
}

func (s *RecipientService) checkBulk(ctx context.Context, sess models.Session) error {
	planID, err := planFor(ctx, s.events, sess)
	if err != nil {
		return err
	}
	if !s.plans.CanImportBulk(planID) {
		return models.QuotaExceeded("import recipients", models.CodeBulkImportDisabled, "plan does not allow bulk import")
	}
	return nil
}

func (s *RecipientService) importRows(ctx context.Context, sess models.Session, typeID string, rows []csvRow, unit string) (models.AddResult, error) {
	if err := s.checkBulk(ctx, sess); err != nil {
		return models.AddResult{}, err
	}
	if err := s.ensureType(ctx, sess, typeID); err != nil {
		return models.AddResult{}, err
	}
	planID, err := planFor(ctx, s.events, sess)
	if err != nil {
		return models.AddResult{}, err
	}

	var (
		valid   []models.Recipient
		invalid int
		errs    []string
	)
	for _, row := range rows {
		if err := models.ValidateRecipient(row.Recipient); err != nil {
			invalid++
			errs = append(errs, fmt.Sprintf("%s %d: %v", unit, row.Line, err))
			continue
		}
		valid = append(valid, row.Recipient)
	}

	result := models.AddResult{}
	if len(valid) > 0 {
		result, err = s.recipients.AddRecipients(ctx, sess.EventID, typeID, valid, s.limitFor(planID))
		if err != nil {
			return models.AddResult{}, storeError("import recipients", err)
		}
	}
	result.Invalid = invalid
	result.Errors = append(result.Errors, errs...)

	sessionLog(sess).WithFields(logrus.Fields{
		"type_id":            typeID,
		"accepted":           result.Accepted,
		"rejected_for_quota": result.RejectedForQuota,
		"duplicates":         result.Duplicates,
		"invalid":            result.Invalid,
	}).Info("📦 Recipients imported")
	return result, nil
}

// Usage counts the event's recipients against its plan
func (s *RecipientService) Usage(ctx context.Context, sess models.Session) (models.PlanUsage, error) {
	planID, err := planFor(ctx, s.events, sess)
	if err != nil {
		return models.PlanUsage{}, err
	}
	n, err := s.recipients.CountByEvent(ctx, sess.EventID)
	if err != nil {
		return models.PlanUsage{}, storeError("count recipients", err)
	}
	usage := models.PlanUsage{
		EventID:    sess.EventID,
		PlanID:     planID,
		Recipients: n,
		BulkImport: s.plans.CanImportBulk(planID),
	}
	limit, unlimited := s.plans.MaxRecipients(planID)
	usage.Unlimited = unlimited
	if !unlimited {
		usage.MaxRecipients = limit
		usage.Remaining = max(limit-n, 0)
	}
	return usage, nil
}

// Delete removes a recipient of the session's event
func (s *RecipientService) Delete(ctx context.Context, sess models.Session, recipientID string) error {
	r, err := s.recipients.GetByID(ctx, recipientID)
	if err != nil {
		return storeError("get recipient", err)
	}
	if r.EventID != sess.EventID {
		return models.NotFound("delete recipient", models.CodeRecipientNotFound, "recipient not found")
	}
	if err := s.recipients.Delete(ctx, recipientID); err != nil {
		return storeError("delete recipient", err)
	}
	sessionLog(sess).WithField("recipient_id", recipientID).Info("🧹 Recipient deleted")
	return nil
}
