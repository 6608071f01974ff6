package editor

import (
	"fmt"

	"certistage/models"
)

// Selection identifies the field an editor operation targets. It is a closed
// set: NameFieldSelection, CustomFieldSelection or SignatureSelection.
type Selection interface {
	isSelection()
	String() string
}

// NameFieldSelection targets the recipient name field
type NameFieldSelection struct{}

// CustomFieldSelection targets one variable-bound text field
type CustomFieldSelection struct {
	ID string
}

// SignatureSelection targets one signature image
type SignatureSelection struct {
	ID string
}

func (NameFieldSelection) isSelection()   {}
func (CustomFieldSelection) isSelection() {}
func (SignatureSelection) isSelection()   {}

func (NameFieldSelection) String() string     { return "name" }
func (s CustomFieldSelection) String() string { return "custom:" + s.ID }
func (s SignatureSelection) String() string   { return "signature:" + s.ID }

// ParseSelection builds a Selection from its wire form (kind plus id)
func ParseSelection(kind, id string) (Selection, error) {
	switch kind {
	case "name":
		return NameFieldSelection{}, nil
	case "custom":
		if id == "" {
			return nil, models.Invalid("parse selection", "custom field id is required")
		}
		return CustomFieldSelection{ID: id}, nil
	case "signature":
		if id == "" {
			return nil, models.Invalid("parse selection", "signature id is required")
		}
		return SignatureSelection{ID: id}, nil
	default:
		return nil, models.Invalid("parse selection", fmt.Sprintf("unknown selection kind %q", kind))
	}
}

// patchField is the top-level template field a selection lives in
func patchField(sel Selection) string {
	switch sel.(type) {
	case NameFieldSelection:
		return "nameField"
	case CustomFieldSelection:
		return "customFields"
	case SignatureSelection:
		return "signatures"
	}
	panic(fmt.Sprintf("unhandled selection %T", sel))
}

// textFieldOf returns the text field a selection points at
func textFieldOf(t *models.CertificateTemplate, sel Selection) (*models.TextField, error) {
	const op = "select text field"
	switch s := sel.(type) {
	case NameFieldSelection:
		if t.NameField == nil {
			return nil, models.NotFound(op, "", "template has no name field")
		}
		return t.NameField, nil
	case CustomFieldSelection:
		for i := range t.CustomFields {
			if t.CustomFields[i].ID == s.ID {
				return &t.CustomFields[i], nil
			}
		}
		return nil, models.NotFound(op, "", fmt.Sprintf("custom field %q not found", s.ID))
	case SignatureSelection:
		return nil, models.Invalid(op, "signatures have no text style")
	}
	return nil, models.Invalid(op, fmt.Sprintf("unhandled selection %T", sel))
}

// signatureOf returns the signature a selection points at
func signatureOf(t *models.CertificateTemplate, id string) (*models.ImageField, error) {
	for i := range t.Signatures {
		if t.Signatures[i].ID == id {
			return &t.Signatures[i], nil
		}
	}
	return nil, models.NotFound("select signature", "", fmt.Sprintf("signature %q not found", id))
}
