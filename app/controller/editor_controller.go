package controller

import (
	"context"
	"fmt"
	"net/http"

	"certistage/editor"
	"certistage/models"
	"certistage/repository"
)

// EditorSessions is the part of editor.Manager the controller drives
type EditorSessions interface {
	Open(ctx context.Context, sess models.Session, typeID string) (*editor.Session, error)
	Get(id string) (*editor.Session, error)
	Close(ctx context.Context, id string) error
}

var _ EditorSessions = (*editor.Manager)(nil)

// EditorController handles the admin template editor
type EditorController struct {
	sessions   EditorSessions
	recipients repository.RecipientStore
}

// NewEditorController creates a new EditorController
func NewEditorController(sessions EditorSessions, recipients repository.RecipientStore) *EditorController {
	return &EditorController{sessions: sessions, recipients: recipients}
}

type openEditorRequest struct {
	EventID string `json:"eventId" validate:"required,max=64"`
	TypeID  string `json:"typeId" validate:"required,max=64"`
}

type selectionRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// editorOpRequest is one editor operation. Op picks which of the other
// members are read.
type editorOpRequest struct {
	Op             string               `json:"op" validate:"required"`
	Selection      *selectionRequest    `json:"selection,omitempty"`
	ID             string               `json:"id,omitempty"`
	Variable       models.Variable      `json:"variable,omitempty"`
	Enabled        *bool                `json:"enabled,omitempty"`
	SearchFields   []models.SearchField `json:"searchFields,omitempty"`
	Image          string               `json:"image,omitempty"`
	Position       *models.Position     `json:"position,omitempty"`
	Width          float64              `json:"width,omitempty"`
	Alignment      models.Alignment     `json:"alignment,omitempty"`
	Background     *string              `json:"background,omitempty"`
	ReferenceWidth float64              `json:"referenceWidth,omitempty"`
	Style          *editor.FieldStyle   `json:"style,omitempty"`
	FontSize       float64              `json:"fontSize,omitempty"`
}

type editorSessionView struct {
	ID         string                     `json:"id"`
	EventID    string                     `json:"eventId"`
	TypeID     string                     `json:"typeId"`
	Template   models.CertificateTemplate `json:"template"`
	Dirty      bool                       `json:"dirty"`
	ShouldPoll bool                       `json:"shouldPoll"`
	Warnings   []editor.Warning           `json:"warnings"`
	Created    any                        `json:"created,omitempty"`
	Refreshed  *bool                      `json:"refreshed,omitempty"`
}

func viewOf(s *editor.Session) editorSessionView {
	warnings := s.Warnings()
	if warnings == nil {
		warnings = []editor.Warning{}
	}
	return editorSessionView{
		ID:         s.ID(),
		EventID:    s.EventID(),
		TypeID:     s.TypeID(),
		Template:   s.Template(),
		Dirty:      !s.Pending().IsEmpty(),
		ShouldPoll: s.ShouldPoll(),
		Warnings:   warnings,
	}
}

// Open handles POST /admin/editor/sessions
func (c *EditorController) Open(w http.ResponseWriter, r *http.Request) {
	var req openEditorRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	s, err := c.sessions.Open(r.Context(), sessionFrom(r, req.EventID), req.TypeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, viewOf(s))
}

// Get handles GET /admin/editor/sessions/{id}
func (c *EditorController) Get(w http.ResponseWriter, r *http.Request) {
	s, err := c.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, viewOf(s))
}

// Apply handles PATCH /admin/editor/sessions/{id}
func (c *EditorController) Apply(w http.ResponseWriter, r *http.Request) {
	s, err := c.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req editorOpRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	created, refreshed, err := applyOp(r.Context(), s, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := viewOf(s)
	view.Created = created
	view.Refreshed = refreshed
	writeJSON(w, r, http.StatusOK, view)
}

// applyOp dispatches one operation. Structural ops write through at once,
// continuous ops (move, fontSize, signatureWidth) go through the debounce buffer.
func applyOp(ctx context.Context, s *editor.Session, req editorOpRequest) (any, *bool, error) {
	const op = "apply editor op"
	switch req.Op {
	case "addCustomField":
		f, err := s.AddCustomField(ctx, req.Variable)
		return f, nil, err
	case "removeCustomField":
		return nil, nil, s.RemoveCustomField(ctx, req.ID)
	case "setNameFieldEnabled":
		if req.Enabled == nil {
			return nil, nil, models.Invalid(op, "enabled is required")
		}
		return nil, nil, s.SetNameFieldEnabled(ctx, *req.Enabled)
	case "setSearchFields":
		return nil, nil, s.SetSearchFields(ctx, req.SearchFields)
	case "addSignature":
		pos := models.Position{X: 50, Y: 80}
		if req.Position != nil {
			pos = *req.Position
		}
		sig, err := s.AddSignature(ctx, req.Image, pos, req.Width)
		return sig, nil, err
	case "removeSignature":
		return nil, nil, s.RemoveSignature(ctx, req.ID)
	case "setAlignment":
		return nil, nil, s.SetAlignment(ctx, req.Alignment)
	case "setBackground":
		if req.Background == nil {
			return nil, nil, models.Invalid(op, "background is required")
		}
		return nil, nil, s.SetBackground(ctx, *req.Background, req.ReferenceWidth)
	case "setFieldStyle":
		sel, err := selectionOf(req)
		if err != nil {
			return nil, nil, err
		}
		if req.Style == nil {
			return nil, nil, models.Invalid(op, "style is required")
		}
		return nil, nil, s.SetFieldStyle(ctx, sel, *req.Style)
	case "move":
		sel, err := selectionOf(req)
		if err != nil {
			return nil, nil, err
		}
		if req.Position == nil {
			return nil, nil, models.Invalid(op, "position is required")
		}
		return nil, nil, s.MoveField(sel, *req.Position)
	case "setFontSize":
		sel, err := selectionOf(req)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, s.SetFontSize(sel, req.FontSize)
	case "setSignatureWidth":
		return nil, nil, s.SetSignatureWidth(req.ID, req.Width)
	case "beginGesture":
		s.BeginGesture()
		return nil, nil, nil
	case "endGesture":
		s.EndGesture()
		return nil, nil, nil
	case "flush":
		return nil, nil, s.Flush(ctx)
	case "refresh":
		applied, err := s.Refresh(ctx)
		return nil, &applied, err
	default:
		return nil, nil, models.Invalid(op, fmt.Sprintf("unknown op %q", req.Op))
	}
}

func selectionOf(req editorOpRequest) (editor.Selection, error) {
	if req.Selection == nil {
		return nil, models.Invalid("apply editor op", "selection is required")
	}
	return editor.ParseSelection(req.Selection.Kind, req.Selection.ID)
}

// Preview handles GET /admin/editor/sessions/{id}/preview?recipientId=.
// It renders the working copy, including edits not yet saved.
func (c *EditorController) Preview(w http.ResponseWriter, r *http.Request) {
	s, err := c.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var recipient *models.Recipient
	if id := r.URL.Query().Get("recipientId"); id != "" {
		found, err := c.recipients.GetByID(r.Context(), id)
		if err != nil || found.EventID != s.EventID() {
			writeError(w, r, models.NotFound("editor preview", models.CodeRecipientNotFound, "recipient not found"))
			return
		}
		recipient = &found
	}

	png, err := s.Preview(r.Context(), recipient)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, "image/png", "", png, false)
}

// Close handles DELETE /admin/editor/sessions/{id}. Pending edits are flushed
// first; a session whose flush fails stays open and the error is returned.
func (c *EditorController) Close(w http.ResponseWriter, r *http.Request) {
	if err := c.sessions.Close(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
