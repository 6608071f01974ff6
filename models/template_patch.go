package models

// TemplatePatch is a partial template update. Every non-nil field replaces the
// whole top-level value, so setting CustomFields replaces the entire list.
type TemplatePatch struct {
	Name            *string        `json:"name,omitempty"`
	BackgroundImage *string        `json:"backgroundImage,omitempty"`
	ReferenceWidth  *float64       `json:"referenceWidth,omitempty"`
	NameField       *TextField     `json:"nameField,omitempty"`
	Alignment       *Alignment     `json:"alignment,omitempty"`
	CustomFields    *[]TextField   `json:"customFields,omitempty"`
	Signatures      *[]ImageField  `json:"signatures,omitempty"`
	SearchFields    *[]SearchField `json:"searchFields,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p TemplatePatch) IsEmpty() bool {
	return p.Name == nil && p.BackgroundImage == nil && p.ReferenceWidth == nil &&
		p.NameField == nil && p.Alignment == nil && p.CustomFields == nil &&
		p.Signatures == nil && p.SearchFields == nil
}

// Merge folds next into p; next wins on every field it sets
func (p TemplatePatch) Merge(next TemplatePatch) TemplatePatch {
	out := p
	if next.Name != nil {
		out.Name = next.Name
	}
	if next.BackgroundImage != nil {
		out.BackgroundImage = next.BackgroundImage
	}
	if next.ReferenceWidth != nil {
		out.ReferenceWidth = next.ReferenceWidth
	}
	if next.NameField != nil {
		out.NameField = next.NameField
	}
	if next.Alignment != nil {
		out.Alignment = next.Alignment
	}
	if next.CustomFields != nil {
		out.CustomFields = next.CustomFields
	}
	if next.Signatures != nil {
		out.Signatures = next.Signatures
	}
	if next.SearchFields != nil {
		out.SearchFields = next.SearchFields
	}
	return out
}

// Apply returns a copy of t with the patch shallow-merged in
func (p TemplatePatch) Apply(t CertificateTemplate) CertificateTemplate {
	out := t.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.BackgroundImage != nil {
		out.BackgroundImage = *p.BackgroundImage
	}
	if p.ReferenceWidth != nil {
		out.ReferenceWidth = *p.ReferenceWidth
	}
	if p.NameField != nil {
		nf := *p.NameField
		out.NameField = &nf
	}
	if p.Alignment != nil {
		out.Alignment = *p.Alignment
	}
	if p.CustomFields != nil {
		out.CustomFields = append([]TextField{}, (*p.CustomFields)...)
	}
	if p.Signatures != nil {
		out.Signatures = append([]ImageField{}, (*p.Signatures)...)
	}
	if p.SearchFields != nil {
		out.SearchFields = append([]SearchField{}, (*p.SearchFields)...)
	}
	return out
}

// PatchFrom builds a patch that carries the listed top-level values of t
func PatchFrom(t CertificateTemplate, fields ...string) TemplatePatch {
	var p TemplatePatch
	c := t.Clone()
	for _, f := range fields {
		switch f {
		case "name":
			p.Name = &c.Name
		case "backgroundImage":
			p.BackgroundImage = &c.BackgroundImage
		case "referenceWidth":
			p.ReferenceWidth = &c.ReferenceWidth
		case "nameField":
			if c.NameField != nil {
				p.NameField = c.NameField
			}
		case "alignment":
			p.Alignment = &c.Alignment
		case "customFields":
			p.CustomFields = &c.CustomFields
		case "signatures":
			p.Signatures = &c.Signatures
		case "searchFields":
			p.SearchFields = &c.SearchFields
		}
	}
	return p
}
