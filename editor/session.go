package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"certistage/models"
)

// TemplateStore is the persistence side of an editor session
type TemplateStore interface {
	GetTemplate(ctx context.Context, eventID, typeID string) (models.CertificateTemplate, error)
	PatchTemplate(ctx context.Context, eventID, typeID string, patch models.TemplatePatch) (models.CertificateTemplate, error)
}

// Previewer renders a working copy for the editor preview toggle
type Previewer interface {
	RenderPreview(ctx context.Context, req models.RenderRequest) ([]byte, error)
}

// Options tunes the sync protocol
type Options struct {
	// Debounce is the idle period before buffered edits are written
	Debounce time.Duration
	// EchoWindow is how long after a local write remote refreshes are ignored
	EchoWindow time.Duration
	// MaxRetries bounds background retries of a failed debounced write
	MaxRetries   int
	RetryBackoff time.Duration
	WriteTimeout time.Duration

	Scheduler Scheduler
	Clock     Clock
	Logger    logrus.FieldLogger
	// OnWarning is called, with the session lock held, for every failed background write
	OnWarning func(Warning)
}

// DefaultOptions returns production defaults
func DefaultOptions() Options {
	return Options{
		Debounce:     400 * time.Millisecond,
		EchoWindow:   2 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Second,
		WriteTimeout: 10 * time.Second,
		Scheduler:    ClockScheduler{},
		Clock:        ClockScheduler{},
		Logger:       logrus.StandardLogger(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Debounce <= 0 {
		o.Debounce = d.Debounce
	}
	if o.EchoWindow < 0 {
		o.EchoWindow = 0
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = d.RetryBackoff
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.Scheduler == nil {
		o.Scheduler = d.Scheduler
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// Warning reports a debounced write that did not reach the store. The local
// working copy still holds the edit.
type Warning struct {
	SessionID string    `json:"sessionId"`
	Attempt   int       `json:"attempt"`
	Final     bool      `json:"final"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// FieldStyle is a partial text style update; nil members are left alone
type FieldStyle struct {
	FontFamily *models.FontFamily `json:"fontFamily,omitempty"`
	Bold       *bool              `json:"bold,omitempty"`
	Italic     *bool              `json:"italic,omitempty"`
	TextCase   *models.TextCase   `json:"textCase,omitempty"`
	Color      *string            `json:"color,omitempty"`
}

// Session is one open template editor. The local copy is authoritative for
// rendering the editor; edits reach the store either immediately (structural
// changes) or through a debounced, merged buffer (continuous values).
// All methods and timer callbacks serialise on mu.
type Session struct {
	mu sync.Mutex

	id       string
	ctx      models.Session
	typeID   string
	store    TemplateStore
	preview  Previewer
	opts     Options
	log      logrus.FieldLogger
	local    models.CertificateTemplate
	pending  models.TemplatePatch
	timer    Timer
	timerGen int
	attempts int
	gesture  bool
	closed   bool
	warnings []Warning

	lastLocalWrite time.Time
	lastActivity   time.Time
}

// Open loads the template and starts an editor session for it
func Open(ctx context.Context, sess models.Session, typeID string, store TemplateStore, preview Previewer, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	t, err := store.GetTemplate(ctx, sess.EventID, typeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	id := uuid.NewString()
	s := &Session{
		id:      id,
		ctx:     sess,
		typeID:  typeID,
		store:   store,
		preview: preview,
		opts:    opts,
		log: opts.Logger.WithFields(logrus.Fields{
			"editor_session": id,
			"event_id":       sess.EventID,
			"type_id":        typeID,
			"operator_id":    sess.OperatorID,
		}),
		local:        t.Clone(),
		lastActivity: opts.Clock.Now(),
	}
	return s, nil
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// EventID returns the event the template belongs to
func (s *Session) EventID() string { return s.ctx.EventID }

// TypeID returns the certificate type being edited
func (s *Session) TypeID() string { return s.typeID }

// Template returns a copy of the working template
func (s *Session) Template() models.CertificateTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local.Clone()
}

// Pending returns the buffered, not yet persisted patch
func (s *Session) Pending() models.TemplatePatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Warnings drains the accumulated background write warnings
func (s *Session) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.warnings
	s.warnings = nil
	return w
}

// LastActivity is when the session was last touched by an operation
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Closed reports whether Close completed
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// TextField returns the style and position of a selected text field
func (s *Session) TextField(sel Selection) (models.TextField, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := textFieldOf(&s.local, sel)
	if err != nil {
		return models.TextField{}, err
	}
	return *f, nil
}

// ---- immediate operations ----

// AddCustomField adds a text field bound to variable. A template holds at most
// one field per variable.
func (s *Session) AddCustomField(ctx context.Context, variable models.Variable) (models.TextField, error) {
	var added models.TextField
	err := s.immediate(ctx, "add custom field", func(t *models.CertificateTemplate) error {
		for _, f := range t.CustomFields {
			if f.Variable == variable {
				return models.Invalid("add custom field", fmt.Sprintf("a field for %s already exists", variable))
			}
		}
		added = models.TextField{
			ID:         "field-" + uuid.NewString()[:8],
			Variable:   variable,
			Enabled:    true,
			Position:   models.Position{X: 50, Y: 70},
			FontFamily: models.FontHelvetica,
			FontSize:   16,
			TextCase:   models.TextCaseNone,
			Color:      models.DefaultTextColor,
		}
		t.CustomFields = append(t.CustomFields, added)
		return nil
	}, "customFields")
	return added, err
}

// RemoveCustomField deletes a custom field
func (s *Session) RemoveCustomField(ctx context.Context, id string) error {
	return s.immediate(ctx, "remove custom field", func(t *models.CertificateTemplate) error {
		for i, f := range t.CustomFields {
			if f.ID == id {
				t.CustomFields = append(t.CustomFields[:i], t.CustomFields[i+1:]...)
				return nil
			}
		}
		return models.NotFound("remove custom field", "", fmt.Sprintf("custom field %q not found", id))
	}, "customFields")
}

// SetNameFieldEnabled hides or shows the name field, keeping its layout
func (s *Session) SetNameFieldEnabled(ctx context.Context, enabled bool) error {
	return s.immediate(ctx, "toggle name field", func(t *models.CertificateTemplate) error {
		if t.NameField == nil {
			if !enabled {
				return nil
			}
			t.NameField = models.DefaultNameField()
		}
		t.NameField.Enabled = enabled
		return nil
	}, "nameField")
}

// SetSearchFields replaces the verification keys; at least one must remain
func (s *Session) SetSearchFields(ctx context.Context, fields []models.SearchField) error {
	return s.immediate(ctx, "set search fields", func(t *models.CertificateTemplate) error {
		t.SearchFields = append([]models.SearchField{}, fields...)
		return nil
	}, "searchFields")
}

// AddSignature places a signature image
func (s *Session) AddSignature(ctx context.Context, image string, pos models.Position, width float64) (models.ImageField, error) {
	var added models.ImageField
	err := s.immediate(ctx, "add signature", func(t *models.CertificateTemplate) error {
		added = models.ImageField{
			ID:       "sig-" + uuid.NewString()[:8],
			Image:    image,
			Position: pos.Clamp(),
			Width:    width,
		}
		t.Signatures = append(t.Signatures, added)
		return nil
	}, "signatures")
	return added, err
}

// RemoveSignature deletes a signature
func (s *Session) RemoveSignature(ctx context.Context, id string) error {
	return s.immediate(ctx, "remove signature", func(t *models.CertificateTemplate) error {
		for i, sig := range t.Signatures {
			if sig.ID == id {
				t.Signatures = append(t.Signatures[:i], t.Signatures[i+1:]...)
				return nil
			}
		}
		return models.NotFound("remove signature", "", fmt.Sprintf("signature %q not found", id))
	}, "signatures")
}

// SetAlignment sets the name line alignment
func (s *Session) SetAlignment(ctx context.Context, a models.Alignment) error {
	return s.immediate(ctx, "set alignment", func(t *models.CertificateTemplate) error {
		t.Alignment = a
		return nil
	}, "alignment")
}

// SetBackground swaps the background and records the width the operator designs against
func (s *Session) SetBackground(ctx context.Context, ref string, referenceWidth float64) error {
	return s.immediate(ctx, "set background", func(t *models.CertificateTemplate) error {
		t.BackgroundImage = ref
		t.ReferenceWidth = referenceWidth
		return nil
	}, "backgroundImage", "referenceWidth")
}

// SetFieldStyle changes family, weight, slant, case or colour of a text field
func (s *Session) SetFieldStyle(ctx context.Context, sel Selection, style FieldStyle) error {
	return s.immediate(ctx, "set field style", func(t *models.CertificateTemplate) error {
		f, err := textFieldOf(t, sel)
		if err != nil {
			return err
		}
		if style.FontFamily != nil {
			f.FontFamily = *style.FontFamily
		}
		if style.Bold != nil {
			f.Bold = *style.Bold
		}
		if style.Italic != nil {
			f.Italic = *style.Italic
		}
		if style.TextCase != nil {
			f.TextCase = *style.TextCase
		}
		if style.Color != nil {
			f.Color = *style.Color
		}
		return nil
	}, patchField(sel))
}

// immediate applies mutate optimistically and writes it, together with any
// buffered edits, in one store call. A rejected write restores the previous
// working copy and leaves the buffer as it was.
func (s *Session) immediate(ctx context.Context, op string, mutate func(t *models.CertificateTemplate) error, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return models.Invalid(op, "editor session is closed")
	}
	s.lastActivity = s.opts.Clock.Now()

	prev := s.local
	next := s.local.Clone()
	if err := mutate(&next); err != nil {
		return err
	}
	if err := models.ValidateTemplate(next); err != nil {
		return err
	}

	s.local = next
	patch := s.pending.Merge(models.PatchFrom(next, fields...))
	saved, err := s.store.PatchTemplate(ctx, s.ctx.EventID, s.typeID, patch)
	if err != nil {
		s.local = prev
		s.log.WithError(err).WithField("op", op).Warn("❌ Template write rejected, local change rolled back")
		return persistenceError(op, err)
	}

	s.stopTimerLocked()
	s.pending = models.TemplatePatch{}
	s.attempts = 0
	s.markSavedLocked(saved)
	return nil
}

// ---- debounced operations ----

// MoveField moves a field. The position is clamped on every move.
func (s *Session) MoveField(sel Selection, pos models.Position) error {
	pos = pos.Clamp()
	return s.debounced("move field", func(t *models.CertificateTemplate) error {
		if sig, ok := sel.(SignatureSelection); ok {
			img, err := signatureOf(t, sig.ID)
			if err != nil {
				return err
			}
			img.Position = pos
			return nil
		}
		f, err := textFieldOf(t, sel)
		if err != nil {
			return err
		}
		f.Position = pos
		return nil
	}, patchField(sel))
}

// SetFontSize changes a text field's size in design pixels
func (s *Session) SetFontSize(sel Selection, size float64) error {
	if math.IsNaN(size) || size <= 0 || size > 1000 {
		return models.Invalid("set font size", "font size must be in (0,1000]")
	}
	return s.debounced("set font size", func(t *models.CertificateTemplate) error {
		f, err := textFieldOf(t, sel)
		if err != nil {
			return err
		}
		f.FontSize = size
		return nil
	}, patchField(sel))
}

// SetSignatureWidth changes a signature's width as a percent of the template width
func (s *Session) SetSignatureWidth(id string, width float64) error {
	if math.IsNaN(width) || width <= 0 || width > 100 {
		return models.Invalid("set signature width", "width must be in (0,100]")
	}
	return s.debounced("set signature width", func(t *models.CertificateTemplate) error {
		img, err := signatureOf(t, id)
		if err != nil {
			return err
		}
		img.Width = width
		return nil
	}, "signatures")
}

// debounced applies mutate locally, merges it into the buffer and restarts
// the idle timer
func (s *Session) debounced(op string, mutate func(t *models.CertificateTemplate) error, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return models.Invalid(op, "editor session is closed")
	}
	s.lastActivity = s.opts.Clock.Now()

	next := s.local.Clone()
	if err := mutate(&next); err != nil {
		return err
	}
	s.local = next
	s.pending = s.pending.Merge(models.PatchFrom(next, fields...))
	s.attempts = 0
	s.scheduleLocked(s.opts.Debounce)
	return nil
}

// ---- flushing ----

// Flush writes the buffer now
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	return s.flushLocked(ctx)
}

// Close flushes any buffered edits and ends the session. When the flush
// fails the session stays open so the edit is not lost.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.stopTimerLocked()
	if err := s.flushLocked(ctx); err != nil {
		return err
	}
	s.closed = true
	s.log.Info("✓ Editor session closed")
	return nil
}

func (s *Session) flushLocked(ctx context.Context) error {
	if s.pending.IsEmpty() {
		return nil
	}

	saved, err := s.store.PatchTemplate(ctx, s.ctx.EventID, s.typeID, s.pending)
	if err != nil {
		s.attempts++
		final := s.closed || s.attempts > s.opts.MaxRetries
		s.warnLocked(Warning{
			SessionID: s.id,
			Attempt:   s.attempts,
			Final:     final,
			Message:   fmt.Sprintf("changes not saved yet: %v", err),
			At:        s.opts.Clock.Now(),
		})
		if !final {
			s.scheduleLocked(time.Duration(s.attempts) * s.opts.RetryBackoff)
		}
		return persistenceError("flush template edits", err)
	}

	s.pending = models.TemplatePatch{}
	s.attempts = 0
	s.markSavedLocked(saved)
	s.log.Debug("💾 Template edits flushed")
	return nil
}

func (s *Session) markSavedLocked(saved models.CertificateTemplate) {
	s.local.Version = saved.Version
	s.local.UpdatedAt = saved.UpdatedAt
	s.lastLocalWrite = s.opts.Clock.Now()
}

func (s *Session) warnLocked(w Warning) {
	s.warnings = append(s.warnings, w)
	s.log.WithFields(logrus.Fields{"attempt": w.Attempt, "final": w.Final}).Warn("⚠️  " + w.Message)
	if s.opts.OnWarning != nil {
		s.opts.OnWarning(w)
	}
}

// scheduleLocked (re)starts the single session timer
func (s *Session) scheduleLocked(d time.Duration) {
	s.stopTimerLocked()
	s.timerGen++
	gen := s.timerGen
	s.timer = s.opts.Scheduler.Schedule(d, func() { s.onTimer(gen) })
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) onTimer(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A stale callback can still run after Stop lost the race.
	if s.closed || gen != s.timerGen {
		return
	}
	s.timer = nil

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()
	_ = s.flushLocked(ctx)
}

// ---- polling and gestures ----

// BeginGesture marks the start of a drag or slider interaction
func (s *Session) BeginGesture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gesture = true
	s.lastActivity = s.opts.Clock.Now()
}

// EndGesture ends the interaction; buffered edits wait one more debounce period
func (s *Session) EndGesture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gesture = false
	s.lastActivity = s.opts.Clock.Now()
	if !s.pending.IsEmpty() && !s.closed {
		s.scheduleLocked(s.opts.Debounce)
	}
}

// ShouldPoll reports whether a background refresh may run now
func (s *Session) ShouldPoll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldPollLocked()
}

func (s *Session) shouldPollLocked() bool {
	return !s.closed && !s.gesture && s.pending.IsEmpty()
}

// ApplyRemote replaces the working copy with a template read from the store.
// It is ignored while local edits are in flight, within the echo window after
// a local write, or when the remote copy is older than the local one.
func (s *Session) ApplyRemote(t models.CertificateTemplate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.shouldPollLocked() {
		return false
	}
	if !s.lastLocalWrite.IsZero() && s.opts.Clock.Now().Sub(s.lastLocalWrite) < s.opts.EchoWindow {
		return false
	}
	if t.Version < s.local.Version {
		return false
	}
	s.local = t.Clone()
	return true
}

// Refresh polls the store and applies the result through ApplyRemote
func (s *Session) Refresh(ctx context.Context) (bool, error) {
	if !s.ShouldPoll() {
		return false, nil
	}
	t, err := s.store.GetTemplate(ctx, s.ctx.EventID, s.typeID)
	if err != nil {
		return false, fmt.Errorf("failed to refresh template: %w", err)
	}
	return s.ApplyRemote(t), nil
}

// Preview renders the working copy for recipient, or for a sample recipient
// when none is given
func (s *Session) Preview(ctx context.Context, recipient *models.Recipient) ([]byte, error) {
	if s.preview == nil {
		return nil, models.Invalid("preview template", "preview is not available")
	}
	r := models.SampleRecipient()
	if recipient != nil {
		r = *recipient
	}

	s.mu.Lock()
	req := models.NewRenderRequest(s.local, r)
	s.lastActivity = s.opts.Clock.Now()
	s.mu.Unlock()

	return s.preview.RenderPreview(ctx, req)
}

func persistenceError(op string, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.PersistenceFailure(op, err)
}
