package controller_test

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"certistage/models"
	"certistage/service"
)

func TestVerifyThenDownload(t *testing.T) {
	t.Parallel()

	h := newHarness(t, unlimited(), 0)
	h.doJSON(t, http.MethodPost, "/admin/events/evt-1/types/attendee/recipients",
		map[string]string{"certificateId": "ATT-1", "name": "Jane Doe", "email": "jane@example.org"})

	rec := h.doJSON(t, http.MethodPost, "/public/events/evt-1/verify", map[string]string{"contact": "JANE@example.org"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[service.VerifyResult](t, rec)
	if res.State != service.StatePreview || len(res.Candidates) != 1 {
		t.Fatalf("Expected one candidate in preview, got %+v", res)
	}
	token := url.QueryEscape(res.Candidates[0].Token)

	rec = h.do(t, http.MethodGet, "/public/preview?token="+token, "", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Expected a PNG preview, got %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = h.do(t, http.MethodGet, "/public/download?token="+token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("Expected PDF bytes")
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="Summit-ATT-1.pdf"`) {
		t.Errorf("Expected the certificate file name, got %s", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a request id header")
	}

	r, err := h.store.GetByCertificateID(t.Context(), testEvent, "attendee", "ATT-1")
	if err != nil {
		t.Fatalf("GetByCertificateID() error = %v", err)
	}
	if r.DownloadCount != 1 || r.DownloadStatus != models.DownloadDownloaded {
		t.Errorf("Expected one recorded download, got %d / %s", r.DownloadCount, r.DownloadStatus)
	}
}

func TestVerifyErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, unlimited(), 2)

	rec := h.doJSON(t, http.MethodPost, "/public/events/evt-1/verify", map[string]string{"contact": "ghost@example.org"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for no match, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["code"] != models.CodeRecipientNotFound {
		t.Errorf("Expected %s, got %v", models.CodeRecipientNotFound, body["code"])
	}

	rec = h.doJSON(t, http.MethodPost, "/public/events/evt-1/verify", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a missing contact, got %d", rec.Code)
	}

	h.doJSON(t, http.MethodPost, "/public/events/evt-1/verify", map[string]string{"contact": "ghost2@example.org"})
	rec = h.doJSON(t, http.MethodPost, "/public/events/evt-1/verify", map[string]string{"contact": "ghost3@example.org"})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 once the attempt budget is spent, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected a Retry-After header")
	}

	rec = h.do(t, http.MethodGet, "/public/download?token=garbage", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad token, got %d", rec.Code)
	}
}

func TestDirectLink(t *testing.T) {
	t.Parallel()

	h := newHarness(t, unlimited(), 0)
	h.doJSON(t, http.MethodPost, "/admin/events/evt-1/types/attendee/recipients",
		map[string]string{"certificateId": "ATT-9", "name": "Ada"})

	rec := h.do(t, http.MethodGet, "/public/events/evt-1/certificates/ATT-9", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[service.VerifyResult](t, rec)
	if len(res.Candidates) != 1 || res.Candidates[0].CertificateID != "ATT-9" {
		t.Errorf("Expected ATT-9, got %+v", res)
	}

	if rec := h.do(t, http.MethodGet, "/public/events/evt-1/certificates/NOPE", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}
