package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"certistage/models"
)

func numbered(n, offset int) []models.Recipient {
	out := make([]models.Recipient, n)
	for i := range out {
		out[i] = person(fmt.Sprintf("REG-%03d", offset+i), fmt.Sprintf("Person %d", offset+i), "", "")
	}
	return out
}

func TestAddRecipientRejectsAtCap(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "free")
	f.add(t, "attendee", numbered(10, 0)...)
	svc := NewRecipientService(f.store, f.store, f.store, f.plans)

	_, err := svc.AddRecipient(context.Background(), f.sess, "attendee", person("REG-999", "Late Comer", "", ""))
	if models.KindOf(err) != models.KindQuotaExceeded {
		t.Fatalf("Expected QuotaExceeded, got %v", err)
	}
	if models.CodeOf(err) != models.CodeRecipientCap {
		t.Errorf("Expected code %s, got %s", models.CodeRecipientCap, models.CodeOf(err))
	}
	if n, _ := f.store.CountByEvent(context.Background(), testEvent); n != 10 {
		t.Errorf("Expected 10 recipients, got %d", n)
	}
}

func TestAddRecipientCountsQuotaAcrossTypes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "free")
	f.add(t, "attendee", numbered(9, 0)...)
	svc := NewRecipientService(f.store, f.store, f.store, f.plans)
	ctx := context.Background()

	saved, err := svc.AddRecipient(ctx, f.sess, "speaker", person("SPK-1", "Ada Speaker", "ada@example.org", ""))
	if err != nil {
		t.Fatalf("AddRecipient() error = %v", err)
	}
	if saved.ID == "" || saved.DownloadStatus != models.DownloadPending || saved.DownloadCount != 0 {
		t.Errorf("Expected a fresh pending recipient, got %+v", saved)
	}

	_, err = svc.AddRecipient(ctx, f.sess, "speaker", person("SPK-2", "Bob Speaker", "", ""))
	if models.KindOf(err) != models.KindQuotaExceeded {
		t.Errorf("Expected the 11th recipient to be rejected, got %v", err)
	}
}

func TestAddRecipientRejectsDuplicateAndInvalid(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "pro")
	f.add(t, "attendee", person("REG-001", "Jane Doe", "", ""))
	svc := NewRecipientService(f.store, f.store, f.store, f.plans)
	ctx := context.Background()

	if _, err := svc.AddRecipient(ctx, f.sess, "attendee", person("reg-001", "Other", "", "")); models.KindOf(err) != models.KindInvalid {
		t.Errorf("Expected Invalid for a duplicate certificate id, got %v", err)
	}
	if _, err := svc.AddRecipient(ctx, f.sess, "attendee", person("REG-002", "", "", "")); models.KindOf(err) != models.KindInvalid {
		t.Errorf("Expected Invalid for a missing name, got %v", err)
	}
	if _, err := svc.AddRecipient(ctx, f.sess, "missing", person("REG-003", "Jane", "", "")); models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound for an unknown type, got %v", err)
	}
}

func TestImportRecipientsQuotaBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		existing     int
		batch        int
		wantAccepted int
		wantRejected int
	}{
		{"full event", 10, 1, 0, 1},
		{"partial room", 8, 5, 2, 3},
		{"fits exactly", 5, 5, 5, 0},
		{"empty event", 0, 3, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, "pro")
			if tt.existing > 0 {
				f.add(t, "attendee", numbered(tt.existing, 0)...)
			}
			svc := NewRecipientService(f.store, f.store, f.store, f.plans)

			res, err := svc.ImportRecipients(context.Background(), f.sess, "speaker", numbered(tt.batch, 100))
			if err != nil {
				t.Fatalf("ImportRecipients() error = %v", err)
			}
			if res.Accepted != tt.wantAccepted || res.RejectedForQuota != tt.wantRejected {
				t.Errorf("Expected %d accepted / %d rejected, got %+v", tt.wantAccepted, tt.wantRejected, res)
			}
		})
	}
}

func TestImportRecipientsRequiresBulkPlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "free")
	svc := NewRecipientService(f.store, f.store, f.store, f.plans)

	_, err := svc.ImportRecipients(context.Background(), f.sess, "attendee", numbered(2, 0))
	if models.CodeOf(err) != models.CodeBulkImportDisabled {
		t.Errorf("Expected %s, got %v", models.CodeBulkImportDisabled, err)
	}
	_, err = svc.ImportCSV(context.Background(), f.sess, "attendee", strings.NewReader("name,certificateId\nA,1\n"))
	if models.KindOf(err) != models.KindQuotaExceeded {
		t.Errorf("Expected QuotaExceeded for CSV import, got %v", err)
	}
}

func TestImportRecipientsUsesSessionPlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "free")
	svc := NewRecipientService(f.store, f.store, f.store, f.plans)
	sess := f.sess
	sess.PlanID = "pro"

	res, err := svc.ImportRecipients(context.Background(), sess, "attendee", numbered(2, 0))
	if err != nil {
		t.Fatalf("ImportRecipients() error = %v", err)
	}
	if res.Accepted != 2 {
		t.Errorf("Expected 2 accepted, got %+v", res)
	}
}

func TestImportCSV(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "pro")
	f.add(t, "attendee", person("REG-001", "Existing", "", ""))
	svc := NewRecipientService(f.store, f.store, f.store, f.plans)

	csv := "\ufeffFull Name, Email ,Phone,Reg No,Ignored\n" +
		"Jane Doe,jane@example.org,+1 555 0100,REG-002,x\n" +
		"\n" +
		"John Roe,not-an-email,,REG-003,x\n" +
		"Old Timer,old@example.org,,reg-001,x\n" +
		"Mary Major,,,REG-004\n"

	res, err := svc.ImportCSV(context.Background(), f.sess, "attendee", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if res.Accepted != 2 || res.Duplicates != 1 || res.Invalid != 1 {
		t.Errorf("Expected 2 accepted, 1 duplicate, 1 invalid, got %+v", res)
	}
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "line 4:") {
		t.Errorf("Expected one error on line 4, got %v", res.Errors)
	}

	jane := f.recipient(t, "attendee", "REG-002")
	if jane.Email != "jane@example.org" || jane.Mobile != "+1 555 0100" || jane.Name != "Jane Doe" {
		t.Errorf("Expected mapped columns, got %+v", jane)
	}
}

func TestImportCSVRequiresColumns(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "pro")
	svc := NewRecipientService(f.store, f.store, f.store, f.plans)

	_, err := svc.ImportCSV(context.Background(), f.sess, "attendee", strings.NewReader("name,email\nJane,jane@example.org\n"))
	if models.KindOf(err) != models.KindInvalid || !strings.Contains(err.Error(), "certificateId") {
		t.Errorf("Expected a missing certificateId column error, got %v", err)
	}
	_, err = svc.ImportCSV(context.Background(), f.sess, "attendee", strings.NewReader(""))
	if models.KindOf(err) != models.KindInvalid {
		t.Errorf("Expected Invalid for an empty file, got %v", err)
	}
}

func TestDeleteRecipientScopedToEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "pro")
	f.add(t, "attendee", person("REG-001", "Jane Doe", "", ""))
	r := f.recipient(t, "attendee", "REG-001")
	svc := NewRecipientService(f.store, f.store, f.store, f.plans)
	ctx := context.Background()

	other := f.sess
	other.EventID = "evt-2"
	if err := svc.Delete(ctx, other, r.ID); models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound from another event, got %v", err)
	}
	if err := svc.Delete(ctx, f.sess, r.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	list, _ := svc.List(ctx, f.sess, "attendee")
	if len(list) != 0 {
		t.Errorf("Expected no recipients, got %d", len(list))
	}
}

func TestUsageReportsPlanConsumption(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "free")
	f.add(t, "attendee", numbered(4, 0)...)
	f.add(t, "speaker", numbered(3, 100)...)
	svc := NewRecipientService(f.store, f.store, f.store, f.plans)
	ctx := context.Background()

	usage, err := svc.Usage(ctx, f.sess)
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if usage.Recipients != 7 || usage.MaxRecipients != 10 || usage.Remaining != 3 || usage.Unlimited || usage.BulkImport {
		t.Errorf("Expected 7 of 10 with 3 remaining and no bulk import, got %+v", usage)
	}

	if _, err := svc.Usage(ctx, models.Session{EventID: "nope"}); models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound for an unknown event, got %v", err)
	}
}
