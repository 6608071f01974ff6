package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"certistage/models"
	"certistage/pricing"
	"certistage/render"
	"certistage/repository"
)

// FlowState is a step of the recipient delivery flow
type FlowState string

const (
	StateVerify       FlowState = "verify"
	StateDisambiguate FlowState = "disambiguate"
	StatePreview      FlowState = "preview"
	StateDownloading  FlowState = "downloading"
	StateDownloaded   FlowState = "downloaded"
)

// Resolver maps a contact string to candidates
type Resolver interface {
	Resolve(ctx context.Context, sess models.Session, contact, typeID string) ([]Candidate, error)
}

// Ensure VerificationService implements Resolver
var _ Resolver = (*VerificationService)(nil)

// FlowDeps are the collaborators of a DeliveryFlow
type FlowDeps struct {
	Resolver   Resolver
	Renderer   Renderer
	Recipients repository.RecipientStore
	Plans      pricing.PlanPolicy
	Now        func() time.Time
}

// DeliveryFlow walks one recipient from verification to a recorded download.
// All transitions take the flow mutex; rendering runs outside it so Back and
// Close stay responsive.
type DeliveryFlow struct {
	mu     sync.Mutex
	sess   models.Session
	typeID string
	deps   FlowDeps
	log    *logrus.Entry

	state      FlowState
	candidates []Candidate
	selected   *Candidate
	request    *models.RenderRequest
	closed     bool
}

// NewDeliveryFlow starts a flow in Verify. typeID optionally narrows
// verification to one certificate type. sess.PlanID must be resolved.
func NewDeliveryFlow(sess models.Session, typeID string, deps FlowDeps) *DeliveryFlow {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &DeliveryFlow{
		sess:   sess,
		typeID: typeID,
		deps:   deps,
		log:    sessionLog(sess),
		state:  StateVerify,
	}
}

func invalidState(op string, state FlowState) error {
	return &models.AppError{
		Kind:    models.KindInvalid,
		Code:    models.CodeInvalidState,
		Op:      op,
		Message: fmt.Sprintf("not allowed in state %s", state),
	}
}

func errFlowClosed(op string) error {
	return &models.AppError{Kind: models.KindInvalid, Code: models.CodeInvalidState, Op: op, Message: "flow is closed"}
}

// State returns the current step
func (f *DeliveryFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Candidates returns the matches of the last verification
func (f *DeliveryFlow) Candidates() []Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Candidate(nil), f.candidates...)
}

// Selected returns the candidate being previewed or downloaded
func (f *DeliveryFlow) Selected() (Candidate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selected == nil {
		return Candidate{}, false
	}
	return *f.selected, true
}

// Verify resolves the contact. One match moves to Preview, several to
// Disambiguate; no match leaves the flow in Verify.
func (f *DeliveryFlow) Verify(ctx context.Context, contact string) (FlowState, error) {
	f.mu.Lock()
	if f.closed || f.state != StateVerify {
		defer f.mu.Unlock()
		return f.state, invalidState("verify", f.state)
	}
	f.mu.Unlock()

	found, err := f.deps.Resolver.Resolve(ctx, f.sess, contact, f.typeID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		return f.state, err
	}
	if f.closed || f.state != StateVerify {
		return f.state, invalidState("verify", f.state)
	}
	f.candidates = found
	switch len(found) {
	case 0:
		return f.state, models.NotFound("verify recipient", models.CodeRecipientNotFound, "no certificate matches the details provided")
	case 1:
		f.selectLocked(found[0])
	default:
		f.state = StateDisambiguate
	}
	return f.state, nil
}

// Select picks one of several candidates
func (f *DeliveryFlow) Select(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.state != StateDisambiguate {
		return invalidState("select candidate", f.state)
	}
	if index < 0 || index >= len(f.candidates) {
		return models.Invalid("select candidate", fmt.Sprintf("candidate %d does not exist", index))
	}
	f.selectLocked(f.candidates[index])
	return nil
}

// StartAt enters Preview directly, as a direct link or signed token does
func (f *DeliveryFlow) StartAt(c Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.state != StateVerify {
		return invalidState("start flow", f.state)
	}
	f.candidates = []Candidate{c}
	f.selectLocked(c)
	return nil
}

func (f *DeliveryFlow) selectLocked(c Candidate) {
	req := c.Request()
	f.selected = &c
	f.request = &req
	f.state = StatePreview
}

// Preview renders the selected certificate as PNG without recording anything
func (f *DeliveryFlow) Preview(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	if f.closed || (f.state != StatePreview && f.state != StateDownloaded) {
		defer f.mu.Unlock()
		return nil, invalidState("preview", f.state)
	}
	req := *f.request
	f.mu.Unlock()

	return f.deps.Renderer.RenderPreview(ctx, req)
}

// Download renders the selected certificate and records the download. A
// render failure returns to Preview without touching the recipient. When the
// flow is closed or ctx is cancelled while rendering, nothing is recorded.
func (f *DeliveryFlow) Download(ctx context.Context) (*render.Document, models.Recipient, error) {
	f.mu.Lock()
	if f.closed || (f.state != StatePreview && f.state != StateDownloaded) {
		defer f.mu.Unlock()
		return nil, models.Recipient{}, invalidState("download", f.state)
	}
	selected := *f.selected
	req := *f.request
	f.mu.Unlock()

	limit := f.downloadLimit()
	if err := f.checkDownloadLimit(ctx, selected.Recipient.ID, limit); err != nil {
		return nil, models.Recipient{}, err
	}

	f.mu.Lock()
	if f.closed || (f.state != StatePreview && f.state != StateDownloaded) {
		defer f.mu.Unlock()
		return nil, models.Recipient{}, invalidState("download", f.state)
	}
	f.state = StateDownloading
	f.mu.Unlock()

	doc, renderErr := f.deps.Renderer.RenderPDF(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || ctx.Err() != nil {
		f.log.WithField("recipient_id", selected.Recipient.ID).Info("⚠️  Download abandoned, not recorded")
		if f.state == StateDownloading {
			f.state = StatePreview
		}
		if err := ctx.Err(); err != nil {
			return nil, models.Recipient{}, err
		}
		return nil, models.Recipient{}, errFlowClosed("download")
	}
	if f.state != StateDownloading {
		// Back() ran while rendering
		return nil, models.Recipient{}, invalidState("download", f.state)
	}
	if renderErr != nil {
		f.state = StatePreview
		if models.KindOf(renderErr) != models.KindRenderFailure {
			renderErr = models.RenderFailure("download", "", renderErr)
		}
		f.log.WithError(renderErr).WithField("recipient_id", selected.Recipient.ID).Error("❌ Certificate render failed")
		return nil, models.Recipient{}, renderErr
	}

	// The store re-checks the limit so concurrent downloads cannot overshoot it
	updated, err := f.deps.Recipients.RecordDownload(ctx, selected.Recipient.ID, f.deps.Now(), limit)
	if err != nil {
		f.state = StatePreview
		return nil, models.Recipient{}, storeError("record download", err)
	}

	selected.Recipient = updated
	f.selected = &selected
	f.state = StateDownloaded
	f.log.WithFields(logrus.Fields{
		"recipient_id":   updated.ID,
		"type_id":        selected.Type.ID,
		"download_count": updated.DownloadCount,
	}).Info("✓ Certificate downloaded")
	return doc, updated, nil
}

// downloadLimit is the plan's per-recipient cap, -1 when unlimited
func (f *DeliveryFlow) downloadLimit() int {
	if f.deps.Plans == nil {
		return -1
	}
	limit, unlimited := f.deps.Plans.MaxDownloadsPerRecipient(f.sess.PlanID)
	if unlimited {
		return -1
	}
	return limit
}

// checkDownloadLimit skips the render when the stored counter already
// reached the cap
func (f *DeliveryFlow) checkDownloadLimit(ctx context.Context, recipientID string, limit int) error {
	if limit < 0 {
		return nil
	}
	current, err := f.deps.Recipients.GetByID(ctx, recipientID)
	if err != nil {
		return storeError("get recipient", err)
	}
	if current.DownloadCount >= limit {
		return repository.DownloadLimitError("download", limit)
	}
	return nil
}

// Back returns to Verify from any state
func (f *DeliveryFlow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateVerify
	f.candidates = nil
	f.selected = nil
	f.request = nil
}

// Close ends the flow. An in-flight download finishes rendering but is not recorded.
func (f *DeliveryFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
