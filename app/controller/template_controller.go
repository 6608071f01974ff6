package controller

import (
	"net/http"

	"certistage/models"
	"certistage/service"
)

// TemplateController handles admin template requests
type TemplateController struct {
	templates service.TemplateServiceInterface
}

// NewTemplateController creates a new TemplateController
func NewTemplateController(templates service.TemplateServiceInterface) *TemplateController {
	return &TemplateController{templates: templates}
}

// ListTypes handles GET /admin/events/{eventId}/types
func (c *TemplateController) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := c.templates.ListTypes(r.Context(), sessionFrom(r, r.PathValue("eventId")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"types": types})
}

// GetTemplate handles GET /admin/events/{eventId}/types/{typeId}/template
func (c *TemplateController) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := c.templates.Get(r.Context(), sessionFrom(r, r.PathValue("eventId")), r.PathValue("typeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

// PatchTemplate handles PATCH /admin/events/{eventId}/types/{typeId}/template.
// Every field present in the body replaces the whole top-level value.
func (c *TemplateController) PatchTemplate(w http.ResponseWriter, r *http.Request) {
	var patch models.TemplatePatch
	if !decodeJSON(w, r, &patch, false) {
		return
	}
	saved, err := c.templates.Patch(r.Context(), sessionFrom(r, r.PathValue("eventId")), r.PathValue("typeId"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, saved)
}

// Preview handles GET /admin/events/{eventId}/types/{typeId}/template/preview?recipientId=
func (c *TemplateController) Preview(w http.ResponseWriter, r *http.Request) {
	png, err := c.templates.Preview(r.Context(), sessionFrom(r, r.PathValue("eventId")), r.PathValue("typeId"), r.URL.Query().Get("recipientId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, "image/png", "", png, false)
}
