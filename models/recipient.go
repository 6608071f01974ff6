package models

import "time"

// DownloadStatus tracks whether a recipient fetched their certificate at least once
type DownloadStatus string

const (
	DownloadPending    DownloadStatus = "pending"
	DownloadDownloaded DownloadStatus = "downloaded"
)

// Recipient is one certificate holder
type Recipient struct {
	ID               string         `json:"id"`
	EventID          string         `json:"eventId"`
	TypeID           string         `json:"typeId"`
	CertificateID    string         `json:"certificateId" validate:"required,max=64"`
	Name             string         `json:"name" validate:"required,max=200"`
	Email            string         `json:"email" validate:"omitempty,email,max=254"`
	Mobile           string         `json:"mobile" validate:"omitempty,max=32"`
	DownloadStatus   DownloadStatus `json:"downloadStatus"`
	DownloadCount    int            `json:"downloadCount"`
	LastDownloadedAt *time.Time     `json:"lastDownloadedAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// MarkDownloaded applies one successful download. Status and count move together.
func (r *Recipient) MarkDownloaded(at time.Time) {
	r.DownloadCount++
	r.DownloadStatus = DownloadDownloaded
	t := at
	r.LastDownloadedAt = &t
}

// AddResult reports the outcome of a recipient admission
type AddResult struct {
	Accepted         int      `json:"accepted"`
	RejectedForQuota int      `json:"rejectedForQuota"`
	Duplicates       int      `json:"duplicates"`
	Invalid          int      `json:"invalid"`
	Errors           []string `json:"errors,omitempty"`
}

// SampleRecipient fills previews when no real recipient is chosen
func SampleRecipient() Recipient {
	return Recipient{
		ID:             "sample",
		CertificateID:  "CERT-0001",
		Name:           "Jane Doe",
		Email:          "jane.doe@example.com",
		Mobile:         "+1 555 0100",
		DownloadStatus: DownloadPending,
	}
}
