package controller

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"certistage/config"
	"certistage/service"
)

// DeliveryController handles the public verification and download pages
type DeliveryController struct {
	delivery service.DeliveryServiceInterface
}

// NewDeliveryController creates a new DeliveryController
func NewDeliveryController(delivery service.DeliveryServiceInterface) *DeliveryController {
	return &DeliveryController{delivery: delivery}
}

// verifyRequest is the body of a verification attempt. TypeID narrows the
// search to one certificate type.
type verifyRequest struct {
	Contact string `json:"contact" validate:"required,max=254"`
	TypeID  string `json:"typeId" validate:"omitempty,max=64"`
}

// Verify handles POST /public/events/{eventId}/verify
func (c *DeliveryController) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	res, err := c.delivery.Verify(r.Context(), sessionFrom(r, r.PathValue("eventId")), req.Contact, req.TypeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// DirectLink handles GET /public/events/{eventId}/certificates/{certificateId}
func (c *DeliveryController) DirectLink(w http.ResponseWriter, r *http.Request) {
	res, err := c.delivery.DirectLink(r.Context(), sessionFrom(r, r.PathValue("eventId")), r.PathValue("certificateId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// Preview handles GET /public/preview?token=
func (c *DeliveryController) Preview(w http.ResponseWriter, r *http.Request) {
	png, err := c.delivery.Preview(r.Context(), sessionFrom(r, ""), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, "image/png", "", png, false)
}

// Download handles GET /public/download?token=. Every successful response
// counts as one download.
func (c *DeliveryController) Download(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r, "")
	doc, err := c.delivery.Download(r.Context(), sess, r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	config.Log.WithFields(logrus.Fields{
		"request_id": sess.RequestID,
		"file":       doc.Filename,
		"bytes":      len(doc.Bytes),
	}).Info("✅ Certificate delivered")
	writeFile(w, "application/pdf", doc.Filename, doc.Bytes, true)
}
