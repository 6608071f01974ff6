package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"certistage/config"
	"certistage/kvstore"
	"certistage/models"
	"certistage/repository"
	"certistage/utils"
)

// Candidate is one recipient/type pair a contact string resolved to
type Candidate struct {
	Recipient models.Recipient
	Type      models.CertificateType
}

// Request snapshots the candidate into a render request
func (c Candidate) Request() models.RenderRequest {
	return models.NewRenderRequest(c.Type.Template, c.Recipient)
}

// AttemptLimiter counts verification attempts per event and client in a fixed window
type AttemptLimiter struct {
	store  kvstore.Store
	max    int
	window time.Duration
}

// NewAttemptLimiter creates a limiter. maxAttempts <= 0 disables throttling.
func NewAttemptLimiter(store kvstore.Store, maxAttempts int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{store: store, max: maxAttempts, window: window}
}

// Allow records one attempt and fails with RateLimited once the budget is spent.
// Store errors let the attempt through so an outage of the counter store does
// not lock recipients out.
func (l *AttemptLimiter) Allow(ctx context.Context, eventID, clientKey string) error {
	if l == nil || l.store == nil || l.max <= 0 {
		return nil
	}
	if clientKey == "" {
		clientKey = "anonymous"
	}
	n, err := l.store.Incr(ctx, "verify:"+eventID+":"+clientKey, l.window)
	if err != nil {
		config.Log.WithError(err).Warn("⚠️  Attempt counter unavailable, allowing request")
		return nil
	}
	if n > int64(l.max) {
		return models.RateLimited("verify recipient", "too many attempts, try again later")
	}
	return nil
}

// VerificationService resolves contact strings to recipients
type VerificationService struct {
	recipients repository.RecipientStore
	templates  repository.TemplateStore
	limiter    *AttemptLimiter
}

// NewVerificationService creates a new VerificationService. limiter may be nil.
func NewVerificationService(recipients repository.RecipientStore, templates repository.TemplateStore, limiter *AttemptLimiter) *VerificationService {
	return &VerificationService{
		recipients: recipients,
		templates:  templates,
		limiter:    limiter,
	}
}

// searchKeys picks the keys a contact string can match. An email address is
// only ever compared as an email.
func searchKeys(contact string) []models.SearchField {
	if utils.LooksLikeEmail(contact) {
		return []models.SearchField{models.SearchEmail}
	}
	keys := make([]models.SearchField, 0, 3)
	if utils.MobileDigits(contact) != "" {
		keys = append(keys, models.SearchMobile)
	}
	return append(keys, models.SearchRegNo, models.SearchName)
}

// renderableTypes lists the enabled types that have a background, keyed by id,
// plus their display order. typeID narrows the result to one type.
func (s *VerificationService) renderableTypes(ctx context.Context, eventID, typeID string) (map[string]models.CertificateType, map[string]int, error) {
	types, err := s.templates.ListTypes(ctx, eventID)
	if err != nil {
		return nil, nil, storeError("list types", err)
	}
	byID := make(map[string]models.CertificateType, len(types))
	order := make(map[string]int, len(types))
	for i, ct := range types {
		if !ct.Enabled || !ct.Template.HasBackground() {
			continue
		}
		if typeID != "" && ct.ID != typeID {
			continue
		}
		byID[ct.ID] = ct
		order[ct.ID] = i
	}
	return byID, order, nil
}

// Resolve returns every recipient the contact identifies in the session's
// event. typeID is optional and restricts matching to one certificate type.
func (s *VerificationService) Resolve(ctx context.Context, sess models.Session, contact, typeID string) ([]Candidate, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return nil, models.Invalid("verify recipient", "contact is required")
	}
	if err := s.limiter.Allow(ctx, sess.EventID, sess.ClientKey); err != nil {
		return nil, err
	}

	types, order, err := s.renderableTypes(ctx, sess.EventID, typeID)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	seen := make(map[string]bool)
	for _, key := range searchKeys(contact) {
		matches, err := s.recipients.FindCandidates(ctx, sess.EventID, key, contact)
		if err != nil {
			return nil, storeError("find recipients", err)
		}
		for _, r := range matches {
			ct, ok := types[r.TypeID]
			if !ok || !ct.Template.Searchable(key) || seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, Candidate{Recipient: r, Type: ct})
		}
	}

	if len(out) == 0 {
		sessionLog(sess).WithField("contact", utils.MaskContact(contact)).Info("🔍 No certificate matches contact")
		// Same message whatever failed so the response does not leak which records exist
		return nil, models.NotFound("verify recipient", models.CodeRecipientNotFound, "no certificate matches the details provided")
	}
	sort.SliceStable(out, func(i, j int) bool {
		return order[out[i].Type.ID] < order[out[j].Type.ID]
	})

	sessionLog(sess).WithField("contact", utils.MaskContact(contact)).Infof("✓ Contact resolved to %d certificate(s)", len(out))
	return out, nil
}

// FindByCertificateID resolves a direct link. The first renderable type holding
// the certificate id wins.
func (s *VerificationService) FindByCertificateID(ctx context.Context, sess models.Session, certificateID string) (Candidate, error) {
	certificateID = strings.TrimSpace(certificateID)
	if certificateID == "" {
		return Candidate{}, models.Invalid("find certificate", "certificate id is required")
	}
	if err := s.limiter.Allow(ctx, sess.EventID, sess.ClientKey); err != nil {
		return Candidate{}, err
	}

	types, err := s.templates.ListTypes(ctx, sess.EventID)
	if err != nil {
		return Candidate{}, storeError("list types", err)
	}
	for _, ct := range types {
		if !ct.Enabled || !ct.Template.HasBackground() {
			continue
		}
		r, err := s.recipients.GetByCertificateID(ctx, sess.EventID, ct.ID, certificateID)
		if err != nil {
			if models.KindOf(err) == models.KindNotFound {
				continue
			}
			return Candidate{}, storeError("get recipient", err)
		}
		return Candidate{Recipient: r, Type: ct}, nil
	}
	return Candidate{}, models.NotFound("find certificate", models.CodeRecipientNotFound, "certificate not found")
}
