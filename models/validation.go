package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the domain tags registered
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		mustRegister(v, "fontfamily", func(fl validator.FieldLevel) bool {
			for _, f := range FontFamilies {
				if FontFamily(fl.Field().String()) == f {
					return true
				}
			}
			return false
		})
		mustRegister(v, "textcase", func(fl validator.FieldLevel) bool {
			switch TextCase(fl.Field().String()) {
			case TextCaseNone, TextCaseUppercase, TextCaseLowercase, TextCaseCapitalize:
				return true
			}
			return false
		})
		mustRegister(v, "variable", func(fl validator.FieldLevel) bool {
			for _, known := range Variables {
				if Variable(fl.Field().String()) == known {
					return true
				}
			}
			return false
		})
		mustRegister(v, "searchfield", func(fl validator.FieldLevel) bool {
			switch SearchField(fl.Field().String()) {
			case SearchName, SearchEmail, SearchMobile, SearchRegNo:
				return true
			}
			return false
		})
		mustRegister(v, "rgbhex", func(fl validator.FieldLevel) bool {
			return IsRGBHex(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// IsRGBHex reports whether s is an opaque #RGB or #RRGGBB colour
func IsRGBHex(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	digits := s[1:]
	if len(digits) != 3 && len(digits) != 6 {
		return false
	}
	for _, c := range digits {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// FormatValidationErrors flattens validator errors into readable messages
func FormatValidationErrors(err error) []string {
	var out []string
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			out = append(out, err.Error())
		}
		return out
	}
	for _, fe := range verrs {
		element := fmt.Sprintf("Field '%s' failed on the '%s' tag", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			element = fmt.Sprintf("%s (value: %s)", element, fe.Param())
		}
		out = append(out, element)
	}
	return out
}

// ValidateStruct runs the shared validator and converts failures to an Invalid error
func ValidateStruct(op string, v interface{}) error {
	if err := Validator().Struct(v); err != nil {
		return Invalid(op, strings.Join(FormatValidationErrors(err), ", "))
	}
	return nil
}

// ValidateTemplate checks field ranges and the cross-field invariants
func ValidateTemplate(t CertificateTemplate) error {
	if err := ValidateStruct("validate template", t); err != nil {
		return err
	}
	ids := make(map[string]bool, len(t.CustomFields))
	for _, f := range t.CustomFields {
		if f.Variable == "" {
			return Invalid("validate template", fmt.Sprintf("custom field %q is not bound to a variable", f.ID))
		}
		if f.ID == "" {
			return Invalid("validate template", "custom field id is required")
		}
		if ids[f.ID] {
			return Invalid("validate template", fmt.Sprintf("duplicate custom field id %q", f.ID))
		}
		ids[f.ID] = true
	}
	if t.NameField != nil && t.NameField.Variable != "" {
		return Invalid("validate template", "name field cannot be bound to a variable")
	}
	return nil
}

// ValidateRecipient checks a single recipient row
func ValidateRecipient(r Recipient) error {
	return ValidateStruct("validate recipient", r)
}
