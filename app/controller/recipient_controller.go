package controller

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"certistage/config"
	"certistage/models"
	"certistage/service"
)

// maxImportBody bounds uploaded recipient files
const maxImportBody = 10 << 20

// RecipientController handles admin recipient requests
type RecipientController struct {
	recipients service.RecipientServiceInterface
	exports    service.ExportServiceInterface
}

// NewRecipientController creates a new RecipientController
func NewRecipientController(recipients service.RecipientServiceInterface, exports service.ExportServiceInterface) *RecipientController {
	return &RecipientController{recipients: recipients, exports: exports}
}

// recipientRequest is the body of a single recipient add
type recipientRequest struct {
	CertificateID string `json:"certificateId" validate:"required,max=64"`
	Name          string `json:"name" validate:"required,max=200"`
	Email         string `json:"email" validate:"omitempty,email,max=254"`
	Mobile        string `json:"mobile" validate:"omitempty,max=32"`
}

func (req recipientRequest) recipient() models.Recipient {
	return models.Recipient{
		CertificateID: strings.TrimSpace(req.CertificateID),
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(req.Email),
		Mobile:        strings.TrimSpace(req.Mobile),
	}
}

// List handles GET /admin/events/{eventId}/types/{typeId}/recipients
func (c *RecipientController) List(w http.ResponseWriter, r *http.Request) {
	list, err := c.recipients.List(r.Context(), sessionFrom(r, r.PathValue("eventId")), r.PathValue("typeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"recipients": list, "total": len(list)})
}

// Add handles POST /admin/events/{eventId}/types/{typeId}/recipients
func (c *RecipientController) Add(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	saved, err := c.recipients.AddRecipient(r.Context(), sessionFrom(r, r.PathValue("eventId")), r.PathValue("typeId"), req.recipient())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, saved)
}

// Import handles POST /admin/events/{eventId}/types/{typeId}/recipients/import.
// The body is either a CSV file (raw or as multipart field "file") or a JSON
// array of recipients.
func (c *RecipientController) Import(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r, r.PathValue("eventId"))
	typeID := r.PathValue("typeId")
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		result models.AddResult
		err    error
	)
	switch mediaType {
	case "application/json":
		var rows []recipientRequest
		if !decodeJSON(w, r, &rows, false) {
			return
		}
		recipients := make([]models.Recipient, len(rows))
		for i, row := range rows {
			recipients[i] = row.recipient()
		}
		result, err = c.recipients.ImportRecipients(r.Context(), sess, typeID, recipients)
	case "multipart/form-data":
		file, _, ferr := r.FormFile("file")
		if ferr != nil {
			writeBadRequest(w, r, fmt.Sprintf("Missing CSV upload: %v", ferr))
			return
		}
		defer file.Close()
		result, err = c.recipients.ImportCSV(r.Context(), sess, typeID, file)
	default:
		body, rerr := io.ReadAll(r.Body)
		if rerr != nil {
			var tooBig *http.MaxBytesError
			if errors.As(rerr, &tooBig) {
				writeJSON(w, r, http.StatusRequestEntityTooLarge, ErrorResponse{Type: string(models.KindInvalid), Message: "upload is too large"})
				return
			}
			writeBadRequest(w, r, fmt.Sprintf("Failed to read body: %v", rerr))
			return
		}
		result, err = c.recipients.ImportCSV(r.Context(), sess, typeID, bytes.NewReader(body))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// Delete handles DELETE /admin/events/{eventId}/recipients/{recipientId}
func (c *RecipientController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.recipients.Delete(r.Context(), sessionFrom(r, r.PathValue("eventId")), r.PathValue("recipientId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Usage handles GET /admin/events/{eventId}/usage
func (c *RecipientController) Usage(w http.ResponseWriter, r *http.Request) {
	usage, err := c.recipients.Usage(r.Context(), sessionFrom(r, r.PathValue("eventId")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, usage)
}

// Export handles GET /admin/events/{eventId}/types/{typeId}/export.
// The archive is assembled in memory so a render failure still gets a JSON error.
func (c *RecipientController) Export(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r, r.PathValue("eventId"))
	var buf bytes.Buffer
	res, err := c.exports.Export(r.Context(), sess, r.PathValue("typeId"), &buf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	config.Log.WithFields(logrus.Fields{
		"request_id": sess.RequestID,
		"event_id":   sess.EventID,
		"files":      res.Files,
	}).Info("✓ Export archive sent")
	writeFile(w, "application/zip", res.Filename, buf.Bytes(), true)
}
