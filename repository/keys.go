package repository

import (
	"certistage/models"
	"certistage/utils"
)

// normalizeKey maps a verification value onto its stored comparison form.
// Email, certificate id and name compare case-insensitively; mobile compares digits only.
func normalizeKey(key models.SearchField, value string) string {
	switch key {
	case models.SearchEmail:
		return utils.NormalizeEmail(value)
	case models.SearchMobile:
		return utils.MobileDigits(value)
	case models.SearchRegNo:
		return utils.NormalizeCertificateID(value)
	case models.SearchName:
		return utils.NormalizeName(value)
	default:
		return ""
	}
}

// recipientKeys returns the normalised columns of a recipient
type recipientKeys struct {
	certificate string
	name        string
	email       string
	mobile      string
}

func keysOf(r models.Recipient) recipientKeys {
	return recipientKeys{
		certificate: normalizeKey(models.SearchRegNo, r.CertificateID),
		name:        normalizeKey(models.SearchName, r.Name),
		email:       normalizeKey(models.SearchEmail, r.Email),
		mobile:      normalizeKey(models.SearchMobile, r.Mobile),
	}
}

func (k recipientKeys) get(key models.SearchField) string {
	switch key {
	case models.SearchEmail:
		return k.email
	case models.SearchMobile:
		return k.mobile
	case models.SearchRegNo:
		return k.certificate
	case models.SearchName:
		return k.name
	default:
		return ""
	}
}

// keyColumn is the indexed column holding a normalised key
func keyColumn(key models.SearchField) (string, bool) {
	switch key {
	case models.SearchEmail:
		return "email_norm", true
	case models.SearchMobile:
		return "mobile_norm", true
	case models.SearchRegNo:
		return "certificate_norm", true
	case models.SearchName:
		return "name_norm", true
	default:
		return "", false
	}
}
