package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"certistage/app/middleware"
	"certistage/config"
	"certistage/models"
	"certistage/utils"
)

// maxJSONBody bounds request bodies decoded as JSON
const maxJSONBody = 1 << 20

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Type      string   `json:"type"`
	Code      string   `json:"code,omitempty"`
	Message   string   `json:"message"`
	Retryable bool     `json:"retryable"`
	Details   []string `json:"details,omitempty"`
}

// statusFor maps an error kind onto an HTTP status
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindQuotaExceeded:
		return http.StatusPaymentRequired
	case models.KindInvalid:
		return http.StatusBadRequest
	case models.KindRenderFailure:
		return http.StatusServiceUnavailable
	case models.KindPersistenceFailure:
		return http.StatusBadGateway
	case models.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		config.Log.WithError(err).WithField("request_id", middleware.RequestID(r.Context())).Error("❌ Failed to encode response")
	}
}

// writeError renders err as an ErrorResponse. Unclassified errors never
// leak their message to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := models.KindOf(err)
	status := statusFor(kind)
	body := ErrorResponse{
		Type:      string(kind),
		Code:      models.CodeOf(err),
		Retryable: models.IsRetryable(err),
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		body.Message = appErr.Message
	} else {
		body.Message = http.StatusText(status)
	}

	entry := config.Log.WithFields(logrus.Fields{
		"request_id":  middleware.RequestID(r.Context()),
		"status_code": status,
		"error_kind":  kind,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("❌ Request failed")
	} else {
		entry.Warn("⚠️  Request rejected")
	}

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, r, status, body)
}

// writeBadRequest answers a malformed request body
func writeBadRequest(w http.ResponseWriter, r *http.Request, message string, details ...string) {
	writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
		Type:    string(models.KindInvalid),
		Message: message,
		Details: details,
	})
}

// writeFile sends a binary artifact. attachment forces a download dialog,
// otherwise the browser may display it inline.
func writeFile(w http.ResponseWriter, contentType, filename string, data []byte, attachment bool) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if filename != "" {
		disposition := "inline"
		if attachment {
			disposition = "attachment"
		}
		w.Header().Set("Content-Disposition", contentDisposition(disposition, filename))
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// contentDisposition sends an ASCII filename and, for names in other
// scripts, the UTF-8 original as an RFC 5987 filename*
func contentDisposition(disposition, filename string) string {
	header := fmt.Sprintf("%s; filename=%q", disposition, utils.ASCIIFilename(filename))
	if utils.IsASCII(filename) {
		return header
	}
	encoded := mime.FormatMediaType(disposition, map[string]string{"filename": filename})
	return header + strings.TrimPrefix(encoded, disposition)
}

// decodeJSON reads a JSON body into dst and validates it when validate is set
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, validate bool) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, r, fmt.Sprintf("Invalid JSON: %v", err))
		return false
	}
	if validate {
		if err := models.Validator().Struct(dst); err != nil {
			writeBadRequest(w, r, "Validation failed", models.FormatValidationErrors(err)...)
			return false
		}
	}
	return true
}

// sessionFrom builds the per-request context object handed to services
func sessionFrom(r *http.Request, eventID string) models.Session {
	return models.Session{
		EventID:    eventID,
		OperatorID: r.Header.Get(middleware.OperatorHeader),
		RequestID:  middleware.RequestID(r.Context()),
		ClientKey:  middleware.ClientIP(r),
	}
}
