package models

// Event owns certificate types and is billed against one plan
type Event struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	PlanID string `json:"planId"`
}

// PlanUsage reports how much of the event's recipient cap is taken.
// MaxRecipients and Remaining are meaningful only when Unlimited is false.
type PlanUsage struct {
	EventID       string `json:"eventId"`
	PlanID        string `json:"planId"`
	Recipients    int    `json:"recipients"`
	MaxRecipients int    `json:"maxRecipients"`
	Remaining     int    `json:"remaining"`
	Unlimited     bool   `json:"unlimited"`
	BulkImport    bool   `json:"bulkImport"`
}

// CertificateType groups recipients that share one template
type CertificateType struct {
	ID       string              `json:"id"`
	EventID  string              `json:"eventId"`
	Name     string              `json:"name"`
	Enabled  bool                `json:"enabled"`
	Template CertificateTemplate `json:"template"`
}

// Session is the explicit caller context threaded into core entry points
// instead of ambient globals. OperatorID is empty on public routes.
type Session struct {
	EventID    string
	PlanID     string
	OperatorID string
	RequestID  string
	// ClientKey identifies the caller for attempt throttling, usually the remote IP
	ClientKey string
}

// RenderRequest is the only input the rendering pipeline reads
type RenderRequest struct {
	Template  CertificateTemplate
	Recipient Recipient
}

// NewRenderRequest snapshots both inputs so later edits cannot leak into a render
func NewRenderRequest(t CertificateTemplate, r Recipient) RenderRequest {
	rc := r
	if r.LastDownloadedAt != nil {
		ts := *r.LastDownloadedAt
		rc.LastDownloadedAt = &ts
	}
	return RenderRequest{Template: t.Clone(), Recipient: rc}
}
