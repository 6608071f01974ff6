package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"certistage/models"
)

// csvColumns maps accepted header spellings to recipient attributes
var csvColumns = map[string]string{
	"name":           "name",
	"fullname":       "name",
	"email":          "email",
	"mail":           "email",
	"mobile":         "mobile",
	"phone":          "mobile",
	"certificateid":  "certificateId",
	"certificate_id": "certificateId",
	"regno":          "certificateId",
	"reg_no":         "certificateId",
}

// csvRow is one parsed data line
type csvRow struct {
	Line      int
	Recipient models.Recipient
}

// parseRecipientsCSV reads a header-mapped recipient sheet. Unknown columns are
// ignored; name and certificateId columns are required.
func parseRecipientsCSV(r io.Reader) ([]csvRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, models.Invalid("import csv", "file is empty")
	}
	if err != nil {
		return nil, models.Invalid("import csv", fmt.Sprintf("failed to read header: %v", err))
	}

	index := make(map[string]int)
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "")
		if attr, ok := csvColumns[key]; ok {
			if _, dup := index[attr]; !dup {
				index[attr] = i
			}
		}
	}
	for _, required := range []string{"name", "certificateId"} {
		if _, ok := index[required]; !ok {
			return nil, models.Invalid("import csv", fmt.Sprintf("missing %s column", required))
		}
	}

	cell := func(record []string, attr string) string {
		i, ok := index[attr]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []csvRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, models.Invalid("import csv", err.Error())
		}
		if isBlankRecord(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, csvRow{
			Line: line,
			Recipient: models.Recipient{
				Name:          cell(record, "name"),
				Email:         cell(record, "email"),
				Mobile:        cell(record, "mobile"),
				CertificateID: cell(record, "certificateId"),
			},
		})
	}
	return rows, nil
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
