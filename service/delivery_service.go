package service

import (
	"context"
	"time"

	"certistage/models"
	"certistage/pricing"
	"certistage/render"
	"certistage/repository"
	"certistage/utils"
)

// CandidateView is what the public page shows for one match. The token
// carries the selection into preview and download.
type CandidateView struct {
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expiresAt"`
	TypeID        string    `json:"typeId"`
	TypeName      string    `json:"typeName"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	CertificateID string    `json:"certificateId"`
	DownloadCount int       `json:"downloadCount"`
}

// VerifyResult is the outcome of verification or a direct link
type VerifyResult struct {
	State      FlowState       `json:"state"`
	Candidates []CandidateView `json:"candidates"`
}

// DeliveryService runs the delivery flow over stateless HTTP requests. After
// selection the flow position lives in a signed token.
type DeliveryService struct {
	verifier   *VerificationService
	renderer   Renderer
	recipients repository.RecipientStore
	templates  repository.TemplateStore
	events     repository.EventStore
	plans      pricing.PlanPolicy
	tokens     *DeliveryTokens
	now        func() time.Time
}

// Ensure DeliveryService implements DeliveryServiceInterface
var _ DeliveryServiceInterface = (*DeliveryService)(nil)

// NewDeliveryService creates a new DeliveryService
func NewDeliveryService(
	verifier *VerificationService,
	renderer Renderer,
	recipients repository.RecipientStore,
	templates repository.TemplateStore,
	events repository.EventStore,
	plans pricing.PlanPolicy,
	tokens *DeliveryTokens,
) *DeliveryService {
	return &DeliveryService{
		verifier:   verifier,
		renderer:   renderer,
		recipients: recipients,
		templates:  templates,
		events:     events,
		plans:      plans,
		tokens:     tokens,
		now:        time.Now,
	}
}

// NewFlow starts a delivery flow for the session's event
func (s *DeliveryService) NewFlow(ctx context.Context, sess models.Session, typeID string) (*DeliveryFlow, error) {
	planID, err := planFor(ctx, s.events, sess)
	if err != nil {
		return nil, err
	}
	sess.PlanID = planID
	return NewDeliveryFlow(sess, typeID, FlowDeps{
		Resolver:   s.verifier,
		Renderer:   s.renderer,
		Recipients: s.recipients,
		Plans:      s.plans,
		Now:        s.now,
	}), nil
}

// Verify resolves a contact string and issues one token per candidate
func (s *DeliveryService) Verify(ctx context.Context, sess models.Session, contact, typeID string) (*VerifyResult, error) {
	flow, err := s.NewFlow(ctx, sess, typeID)
	if err != nil {
		return nil, err
	}
	defer flow.Close()

	state, err := flow.Verify(ctx, contact)
	if err != nil {
		return nil, err
	}
	return s.result(state, flow.Candidates())
}

// DirectLink resolves a certificate id and starts at Preview
func (s *DeliveryService) DirectLink(ctx context.Context, sess models.Session, certificateID string) (*VerifyResult, error) {
	c, err := s.verifier.FindByCertificateID(ctx, sess, certificateID)
	if err != nil {
		return nil, err
	}
	return s.result(StatePreview, []Candidate{c})
}

func (s *DeliveryService) result(state FlowState, candidates []Candidate) (*VerifyResult, error) {
	views := make([]CandidateView, 0, len(candidates))
	for _, c := range candidates {
		token, exp, err := s.tokens.Issue(c)
		if err != nil {
			return nil, err
		}
		views = append(views, CandidateView{
			Token:         token,
			ExpiresAt:     exp,
			TypeID:        c.Type.ID,
			TypeName:      c.Type.Name,
			Name:          c.Recipient.Name,
			Email:         utils.MaskEmail(c.Recipient.Email),
			CertificateID: c.Recipient.CertificateID,
			DownloadCount: c.Recipient.DownloadCount,
		})
	}
	return &VerifyResult{State: state, Candidates: views}, nil
}

// flowFromToken rebuilds a flow positioned at Preview for the token's recipient,
// reading the current template and counters from the stores
func (s *DeliveryService) flowFromToken(ctx context.Context, sess models.Session, token string) (*DeliveryFlow, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	sess.EventID = claims.EventID

	r, err := s.recipients.GetByID(ctx, claims.RecipientID)
	if err != nil {
		return nil, storeError("get recipient", err)
	}
	if r.EventID != claims.EventID || r.TypeID != claims.TypeID {
		return nil, models.NotFound("open delivery", models.CodeRecipientNotFound, "certificate not found")
	}

	var ct *models.CertificateType
	types, err := s.templates.ListTypes(ctx, claims.EventID)
	if err != nil {
		return nil, storeError("list types", err)
	}
	for i := range types {
		if types[i].ID == claims.TypeID {
			ct = &types[i]
			break
		}
	}
	if ct == nil || !ct.Enabled || !ct.Template.HasBackground() {
		return nil, models.NotFound("open delivery", models.CodeTemplateUnavailable, "certificate not found")
	}

	flow, err := s.NewFlow(ctx, sess, claims.TypeID)
	if err != nil {
		return nil, err
	}
	if err := flow.StartAt(Candidate{Recipient: r, Type: *ct}); err != nil {
		return nil, err
	}
	return flow, nil
}

// Preview renders the token's certificate as PNG
func (s *DeliveryService) Preview(ctx context.Context, sess models.Session, token string) ([]byte, error) {
	flow, err := s.flowFromToken(ctx, sess, token)
	if err != nil {
		return nil, err
	}
	defer flow.Close()
	return flow.Preview(ctx)
}

// Download renders the token's certificate and records the download
func (s *DeliveryService) Download(ctx context.Context, sess models.Session, token string) (*render.Document, error) {
	flow, err := s.flowFromToken(ctx, sess, token)
	if err != nil {
		return nil, err
	}
	doc, _, err := flow.Download(ctx)
	flow.Close()
	return doc, err
}
