package models

// Asset is an image an operator can use as a background or signature
type Asset struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	// Ref is the reference stored in templates, e.g. "drive:<fileId>"
	Ref string `json:"ref"`
}
