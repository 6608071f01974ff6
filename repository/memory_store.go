package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"certistage/models"
)

// MemoryStore keeps events, types and recipients in process. It backs
// STORAGE=memory, the CLI and tests; a single mutex makes every operation atomic.
type MemoryStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	events     map[string]models.Event
	types      map[string]models.CertificateType
	typeOrder  []string
	recipients map[string]models.Recipient
	order      []string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        time.Now,
		events:     make(map[string]models.Event),
		types:      make(map[string]models.CertificateType),
		recipients: make(map[string]models.Recipient),
	}
}

// PutEvent creates or replaces an event
func (m *MemoryStore) PutEvent(e models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
}

// PutType creates or replaces a certificate type. The template is normalised
// to carry the type's ids.
func (m *MemoryStore) PutType(ct models.CertificateType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := ct.Template.Clone()
	if t.EventID == "" && t.TypeID == "" && t.NameField == nil && len(t.SearchFields) == 0 {
		bg, ref := t.BackgroundImage, t.ReferenceWidth
		t = models.NewTemplate(ct.EventID, ct.ID, ct.Name)
		t.BackgroundImage, t.ReferenceWidth = bg, ref
	}
	t.ID, t.EventID, t.TypeID = ct.ID, ct.EventID, ct.ID
	if t.Name == "" {
		t.Name = ct.Name
	}
	ct.Template = t
	if _, ok := m.types[ct.ID]; !ok {
		m.typeOrder = append(m.typeOrder, ct.ID)
	}
	m.types[ct.ID] = ct
}

// GetEvent implements EventStore
func (m *MemoryStore) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[eventID]
	if !ok {
		return e, models.NotFound("get event", "", "event not found")
	}
	return e, nil
}

func (m *MemoryStore) typeOf(eventID, typeID string) (models.CertificateType, bool) {
	ct, ok := m.types[typeID]
	if !ok || ct.EventID != eventID {
		return models.CertificateType{}, false
	}
	return ct, true
}

// GetTemplate implements TemplateStore
func (m *MemoryStore) GetTemplate(ctx context.Context, eventID, typeID string) (models.CertificateTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ct, ok := m.typeOf(eventID, typeID)
	if !ok {
		return models.CertificateTemplate{}, models.NotFound("get template", models.CodeTemplateNotFound, "template not found")
	}
	return ct.Template.Clone(), nil
}

// PatchTemplate implements TemplateStore
func (m *MemoryStore) PatchTemplate(ctx context.Context, eventID, typeID string, patch models.TemplatePatch) (models.CertificateTemplate, error) {
	if err := ctx.Err(); err != nil {
		return models.CertificateTemplate{}, models.PersistenceFailure("patch template", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ct, ok := m.typeOf(eventID, typeID)
	if !ok {
		return models.CertificateTemplate{}, models.NotFound("patch template", models.CodeTemplateNotFound, "template not found")
	}
	next := patch.Apply(ct.Template)
	next.Version++
	next.UpdatedAt = m.now()
	ct.Template = next
	m.types[typeID] = ct
	return next.Clone(), nil
}

// ListTypes implements TemplateStore
func (m *MemoryStore) ListTypes(ctx context.Context, eventID string) ([]models.CertificateType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.CertificateType
	for _, id := range m.typeOrder {
		ct := m.types[id]
		if ct.EventID == eventID {
			ct.Template = ct.Template.Clone()
			out = append(out, ct)
		}
	}
	return out, nil
}

// ListRecipients implements RecipientStore
func (m *MemoryStore) ListRecipients(ctx context.Context, eventID, typeID string) ([]models.Recipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Recipient
	for _, id := range m.order {
		r := m.recipients[id]
		if r.EventID == eventID && r.TypeID == typeID {
			out = append(out, copyRecipient(r))
		}
	}
	return out, nil
}

// AddRecipients implements RecipientStore
func (m *MemoryStore) AddRecipients(ctx context.Context, eventID, typeID string, recipients []models.Recipient, limit int) (models.AddResult, error) {
	var result models.AddResult
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return result, models.NotFound("add recipients", "", "event not found")
	}

	existing := 0
	taken := make(map[string]bool)
	for _, r := range m.recipients {
		if r.EventID == eventID {
			existing++
		}
		if r.TypeID == typeID {
			taken[keysOf(r).certificate] = true
		}
	}

	for _, rec := range recipients {
		cert := keysOf(rec).certificate
		if taken[cert] {
			result.Duplicates++
			continue
		}
		if limit >= 0 && existing+result.Accepted >= limit {
			result.RejectedForQuota++
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.EventID = eventID
		rec.TypeID = typeID
		rec.DownloadStatus = models.DownloadPending
		rec.DownloadCount = 0
		rec.LastDownloadedAt = nil
		rec.CreatedAt = m.now()
		m.recipients[rec.ID] = rec
		m.order = append(m.order, rec.ID)
		taken[cert] = true
		result.Accepted++
	}
	return result, nil
}

// RecordDownload implements RecipientStore
func (m *MemoryStore) RecordDownload(ctx context.Context, recipientID string, at time.Time, limit int) (models.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[recipientID]
	if !ok {
		return r, models.NotFound("record download", models.CodeRecipientNotFound, "recipient not found")
	}
	if limit >= 0 && r.DownloadCount >= limit {
		return copyRecipient(r), DownloadLimitError("record download", limit)
	}
	r.MarkDownloaded(at)
	m.recipients[recipientID] = r
	return copyRecipient(r), nil
}

// FindCandidates implements RecipientStore
func (m *MemoryStore) FindCandidates(ctx context.Context, eventID string, key models.SearchField, value string) ([]models.Recipient, error) {
	norm := normalizeKey(key, value)
	if norm == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Recipient
	for _, id := range m.order {
		r := m.recipients[id]
		if r.EventID == eventID && keysOf(r).get(key) == norm {
			out = append(out, copyRecipient(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out, nil
}

// GetByCertificateID implements RecipientStore
func (m *MemoryStore) GetByCertificateID(ctx context.Context, eventID, typeID, certificateID string) (models.Recipient, error) {
	norm := normalizeKey(models.SearchRegNo, certificateID)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		r := m.recipients[id]
		if r.EventID == eventID && r.TypeID == typeID && keysOf(r).certificate == norm {
			return copyRecipient(r), nil
		}
	}
	return models.Recipient{}, models.NotFound("get recipient", models.CodeRecipientNotFound, "recipient not found")
}

// GetByID implements RecipientStore
func (m *MemoryStore) GetByID(ctx context.Context, recipientID string) (models.Recipient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recipients[recipientID]
	if !ok {
		return r, models.NotFound("get recipient", models.CodeRecipientNotFound, "recipient not found")
	}
	return copyRecipient(r), nil
}

// Delete implements RecipientStore
func (m *MemoryStore) Delete(ctx context.Context, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recipients[recipientID]; !ok {
		return models.NotFound("delete recipient", models.CodeRecipientNotFound, "recipient not found")
	}
	delete(m.recipients, recipientID)
	for i, id := range m.order {
		if id == recipientID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// CountByEvent implements RecipientStore
func (m *MemoryStore) CountByEvent(ctx context.Context, eventID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.recipients {
		if r.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func copyRecipient(r models.Recipient) models.Recipient {
	if r.LastDownloadedAt != nil {
		t := *r.LastDownloadedAt
		r.LastDownloadedAt = &t
	}
	return r
}
