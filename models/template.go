package models

import "time"

// FontFamily is restricted to the PDF base-14 families so a template never
// depends on a web font
type FontFamily string

const (
	FontHelvetica FontFamily = "Helvetica"
	FontTimes     FontFamily = "Times"
	FontCourier   FontFamily = "Courier"
)

// FontFamilies lists the palette in display order
var FontFamilies = []FontFamily{FontHelvetica, FontTimes, FontCourier}

// TextCase transforms the recipient name before drawing
type TextCase string

const (
	TextCaseNone       TextCase = "none"
	TextCaseUppercase  TextCase = "uppercase"
	TextCaseLowercase  TextCase = "lowercase"
	TextCaseCapitalize TextCase = "capitalize"
)

// Alignment anchors the name line horizontally at its x position
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Variable binds a custom field to a recipient attribute
type Variable string

const (
	VariableEmail  Variable = "EMAIL"
	VariableMobile Variable = "MOBILE"
	VariableRegNo  Variable = "REG_NO"
)

// Variables lists the bindable recipient attributes
var Variables = []Variable{VariableEmail, VariableMobile, VariableRegNo}

// SearchField is a recipient attribute usable as a verification key
type SearchField string

const (
	SearchName   SearchField = "name"
	SearchEmail  SearchField = "email"
	SearchMobile SearchField = "mobile"
	SearchRegNo  SearchField = "regNo"
)

// DefaultSearchFields is used when a template has none configured
var DefaultSearchFields = []SearchField{SearchName}

const DefaultTextColor = "#000000"

// TextField is a positioned, styled run of text
type TextField struct {
	ID         string     `json:"id" validate:"max=64"`
	Variable   Variable   `json:"variable,omitempty" validate:"omitempty,variable"`
	Enabled    bool       `json:"enabled"`
	Position   Position   `json:"position"`
	FontFamily FontFamily `json:"fontFamily" validate:"required,fontfamily"`
	FontSize   float64    `json:"fontSize" validate:"gt=0,lte=1000"`
	Bold       bool       `json:"bold"`
	Italic     bool       `json:"italic"`
	TextCase   TextCase   `json:"textCase,omitempty" validate:"omitempty,textcase"`
	Color      string     `json:"color,omitempty" validate:"omitempty,rgbhex"`
}

// ImageField is a positioned overlay image such as a signature
type ImageField struct {
	ID       string   `json:"id" validate:"required,max=64"`
	Image    string   `json:"image" validate:"required"`
	Position Position `json:"position"`
	Width    float64  `json:"width" validate:"gt=0,lte=100"`
}

// CertificateTemplate is the visual design of one certificate type
type CertificateTemplate struct {
	ID              string        `json:"id"`
	EventID         string        `json:"eventId" validate:"required"`
	TypeID          string        `json:"typeId" validate:"required"`
	Name            string        `json:"name" validate:"max=120"`
	BackgroundImage string        `json:"backgroundImage"`
	ReferenceWidth  float64       `json:"referenceWidth" validate:"gte=0"`
	NameField       *TextField    `json:"nameField,omitempty"`
	Alignment       Alignment     `json:"alignment,omitempty" validate:"omitempty,oneof=left center right"`
	CustomFields    []TextField   `json:"customFields" validate:"unique=Variable,dive"`
	Signatures      []ImageField  `json:"signatures" validate:"unique=ID,dive"`
	SearchFields    []SearchField `json:"searchFields" validate:"min=1,unique,dive,searchfield"`
	Version         int64         `json:"version"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// HasBackground reports whether the template can be rendered at all
func (t CertificateTemplate) HasBackground() bool {
	return t.BackgroundImage != ""
}

// EffectiveAlignment defaults to center
func (t CertificateTemplate) EffectiveAlignment() Alignment {
	if t.Alignment == "" {
		return AlignCenter
	}
	return t.Alignment
}

// EffectiveSearchFields defaults to name-only matching
func (t CertificateTemplate) EffectiveSearchFields() []SearchField {
	if len(t.SearchFields) == 0 {
		return DefaultSearchFields
	}
	return t.SearchFields
}

// Searchable reports whether key is an enabled verification key
func (t CertificateTemplate) Searchable(key SearchField) bool {
	for _, f := range t.EffectiveSearchFields() {
		if f == key {
			return true
		}
	}
	return false
}

// CustomField returns the custom field with the given id
func (t CertificateTemplate) CustomField(id string) (TextField, bool) {
	for _, f := range t.CustomFields {
		if f.ID == id {
			return f, true
		}
	}
	return TextField{}, false
}

// Signature returns the signature with the given id
func (t CertificateTemplate) Signature(id string) (ImageField, bool) {
	for _, s := range t.Signatures {
		if s.ID == id {
			return s, true
		}
	}
	return ImageField{}, false
}

// Clone returns a deep copy so a snapshot never aliases the working copy
func (t CertificateTemplate) Clone() CertificateTemplate {
	c := t
	if t.NameField != nil {
		nf := *t.NameField
		c.NameField = &nf
	}
	if t.CustomFields != nil {
		c.CustomFields = append([]TextField(nil), t.CustomFields...)
	}
	if t.Signatures != nil {
		c.Signatures = append([]ImageField(nil), t.Signatures...)
	}
	if t.SearchFields != nil {
		c.SearchFields = append([]SearchField(nil), t.SearchFields...)
	}
	return c
}

// DefaultNameField is the name field a new template starts with
func DefaultNameField() *TextField {
	return &TextField{
		ID:         "name",
		Enabled:    true,
		Position:   Position{X: 50, Y: 50},
		FontFamily: FontHelvetica,
		FontSize:   32,
		Bold:       true,
		TextCase:   TextCaseNone,
		Color:      DefaultTextColor,
	}
}

// NewTemplate returns an empty template for a certificate type
func NewTemplate(eventID, typeID, name string) CertificateTemplate {
	return CertificateTemplate{
		ID:           typeID,
		EventID:      eventID,
		TypeID:       typeID,
		Name:         name,
		NameField:    DefaultNameField(),
		Alignment:    AlignCenter,
		CustomFields: []TextField{},
		Signatures:   []ImageField{},
		SearchFields: append([]SearchField(nil), DefaultSearchFields...),
	}
}

// RecipientValue resolves a variable to the recipient attribute it is bound to
func (v Variable) RecipientValue(r Recipient) string {
	switch v {
	case VariableEmail:
		return r.Email
	case VariableMobile:
		return r.Mobile
	case VariableRegNo:
		return r.CertificateID
	default:
		return ""
	}
}
