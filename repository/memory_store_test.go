package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"certistage/models"
)

func newSeededStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	store.PutEvent(models.Event{ID: "evt-1", Name: "Summit", PlanID: "free"})
	store.PutType(models.CertificateType{ID: "attendee", EventID: "evt-1", Name: "Attendee", Enabled: true})
	store.PutType(models.CertificateType{ID: "speaker", EventID: "evt-1", Name: "Speaker", Enabled: true})
	return store
}

func recipients(n int, prefix string) []models.Recipient {
	out := make([]models.Recipient, n)
	for i := range out {
		out[i] = models.Recipient{
			CertificateID: fmt.Sprintf("%s-%03d", prefix, i+1),
			Name:          fmt.Sprintf("Person %d", i+1),
		}
	}
	return out
}

func TestAddRecipientsQuotaBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		existing     int
		submitted    int
		limit        int
		wantAccepted int
		wantRejected int
	}{
		{"cap reached", 10, 1, 10, 0, 1},
		{"partial import", 8, 5, 10, 2, 3},
		{"unlimited", 8, 5, -1, 5, 0},
		{"room to spare", 0, 3, 10, 3, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newSeededStore(t)
			ctx := context.Background()

			if _, err := store.AddRecipients(ctx, "evt-1", "attendee", recipients(tt.existing, "OLD"), -1); err != nil {
				t.Fatalf("seed error = %v", err)
			}
			got, err := store.AddRecipients(ctx, "evt-1", "speaker", recipients(tt.submitted, "NEW"), tt.limit)
			if err != nil {
				t.Fatalf("AddRecipients() error = %v", err)
			}
			if got.Accepted != tt.wantAccepted || got.RejectedForQuota != tt.wantRejected {
				t.Errorf("Expected accepted=%d rejected=%d, got %+v", tt.wantAccepted, tt.wantRejected, got)
			}
			n, _ := store.CountByEvent(ctx, "evt-1")
			if n != tt.existing+tt.wantAccepted {
				t.Errorf("Expected %d recipients in the event, got %d", tt.existing+tt.wantAccepted, n)
			}
		})
	}
}

func TestAddRecipientsCountsDuplicates(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	ctx := context.Background()

	first := []models.Recipient{{CertificateID: "reg-1", Name: "A"}, {CertificateID: "REG-1", Name: "A again"}}
	got, err := store.AddRecipients(ctx, "evt-1", "attendee", first, 10)
	if err != nil {
		t.Fatalf("AddRecipients() error = %v", err)
	}
	if got.Accepted != 1 || got.Duplicates != 1 {
		t.Errorf("Expected 1 accepted and 1 duplicate, got %+v", got)
	}

	// The same certificate id is fine in another type.
	got, err = store.AddRecipients(ctx, "evt-1", "speaker", []models.Recipient{{CertificateID: "REG-1", Name: "A"}}, 10)
	if err != nil {
		t.Fatalf("AddRecipients() error = %v", err)
	}
	if got.Accepted != 1 {
		t.Errorf("Expected the id to be accepted in another type, got %+v", got)
	}
}

func TestRecordDownloadCounters(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	ctx := context.Background()
	if _, err := store.AddRecipients(ctx, "evt-1", "attendee", recipients(1, "R"), -1); err != nil {
		t.Fatalf("AddRecipients() error = %v", err)
	}
	list, _ := store.ListRecipients(ctx, "evt-1", "attendee")
	id := list[0].ID
	if list[0].DownloadStatus != models.DownloadPending || list[0].DownloadCount != 0 {
		t.Fatalf("Expected a pending recipient, got %+v", list[0])
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var last models.Recipient
	for i := 0; i < 3; i++ {
		var err error
		last, err = store.RecordDownload(ctx, id, base.Add(time.Duration(i)*time.Hour), -1)
		if err != nil {
			t.Fatalf("RecordDownload() error = %v", err)
		}
	}
	if last.DownloadCount != 3 || last.DownloadStatus != models.DownloadDownloaded {
		t.Errorf("Expected count 3 and downloaded, got %+v", last)
	}
	if want := base.Add(2 * time.Hour); !last.LastDownloadedAt.Equal(want) {
		t.Errorf("Expected last download at %v, got %v", want, last.LastDownloadedAt)
	}

	if _, err := store.RecordDownload(ctx, "missing", base, -1); models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestRecordDownloadHonoursLimitUnderContention(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	ctx := context.Background()
	if _, err := store.AddRecipients(ctx, "evt-1", "attendee", recipients(1, "R"), -1); err != nil {
		t.Fatalf("AddRecipients() error = %v", err)
	}
	list, _ := store.ListRecipients(ctx, "evt-1", "attendee")

	var ok, refused atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.RecordDownload(ctx, list[0].ID, time.Now(), 1)
			switch {
			case err == nil:
				ok.Add(1)
			case models.CodeOf(err) == models.CodeDownloadLimit:
				refused.Add(1)
			default:
				t.Errorf("RecordDownload() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || refused.Load() != 19 {
		t.Errorf("Expected 1 recorded and 19 refused downloads, got %d and %d", ok.Load(), refused.Load())
	}
	if got, _ := store.GetByID(ctx, list[0].ID); got.DownloadCount != 1 {
		t.Errorf("Expected the counter to stop at 1, got %d", got.DownloadCount)
	}
	if _, err := store.RecordDownload(ctx, list[0].ID, time.Now(), 0); models.KindOf(err) != models.KindQuotaExceeded {
		t.Errorf("Expected QuotaExceeded for a zero limit, got %v", err)
	}
}

func TestRecordDownloadIsAtomic(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	ctx := context.Background()
	if _, err := store.AddRecipients(ctx, "evt-1", "attendee", recipients(1, "R"), -1); err != nil {
		t.Fatalf("AddRecipients() error = %v", err)
	}
	list, _ := store.ListRecipients(ctx, "evt-1", "attendee")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.RecordDownload(ctx, list[0].ID, time.Now(), -1); err != nil {
				t.Errorf("RecordDownload() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := store.GetByID(ctx, list[0].ID)
	if got.DownloadCount != 50 {
		t.Errorf("Expected 50 downloads, got %d", got.DownloadCount)
	}
}

func TestFindCandidatesNormalisesKeys(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	ctx := context.Background()
	_, _ = store.AddRecipients(ctx, "evt-1", "attendee", []models.Recipient{
		{CertificateID: "A-1", Name: "Jane  Doe", Email: "Jane@Example.org", Mobile: "+1 (555) 010-2030"},
		{CertificateID: "A-2", Name: "John Roe"},
	}, -1)
	_, _ = store.AddRecipients(ctx, "evt-1", "speaker", []models.Recipient{
		{CertificateID: "S-1", Name: "Jane Doe", Email: "jane@example.org"},
	}, -1)

	tests := []struct {
		key   models.SearchField
		value string
		want  int
	}{
		{models.SearchEmail, " JANE@example.ORG ", 2},
		{models.SearchMobile, "15550102030", 1},
		{models.SearchRegNo, "a-1", 1},
		{models.SearchName, "jane doe", 2},
		{models.SearchMobile, "", 0},
		{models.SearchEmail, "nobody@example.org", 0},
	}
	for _, tt := range tests {
		got, err := store.FindCandidates(ctx, "evt-1", tt.key, tt.value)
		if err != nil {
			t.Fatalf("FindCandidates() error = %v", err)
		}
		if len(got) != tt.want {
			t.Errorf("FindCandidates(%s, %q) returned %d, want %d", tt.key, tt.value, len(got), tt.want)
		}
	}

	if _, err := store.GetByCertificateID(ctx, "evt-1", "speaker", "s-1"); err != nil {
		t.Errorf("GetByCertificateID() error = %v", err)
	}
}

func TestPatchTemplateMergesTopLevelFields(t *testing.T) {
	t.Parallel()

	store := newSeededStore(t)
	ctx := context.Background()

	before, err := store.GetTemplate(ctx, "evt-1", "attendee")
	if err != nil {
		t.Fatalf("GetTemplate() error = %v", err)
	}

	fields := []models.TextField{{ID: "f1", Variable: models.VariableEmail, FontFamily: models.FontTimes, FontSize: 12}}
	bg := "drive:abc"
	after, err := store.PatchTemplate(ctx, "evt-1", "attendee", models.TemplatePatch{CustomFields: &fields, BackgroundImage: &bg})
	if err != nil {
		t.Fatalf("PatchTemplate() error = %v", err)
	}
	if after.Version != before.Version+1 {
		t.Errorf("Expected version %d, got %d", before.Version+1, after.Version)
	}
	if after.BackgroundImage != bg || len(after.CustomFields) != 1 {
		t.Errorf("Expected patched fields, got %+v", after)
	}
	if after.NameField == nil || after.NameField.Position != before.NameField.Position {
		t.Error("Expected untouched fields to survive the patch")
	}

	replaced := []models.TextField{}
	after, _ = store.PatchTemplate(ctx, "evt-1", "attendee", models.TemplatePatch{CustomFields: &replaced})
	if len(after.CustomFields) != 0 {
		t.Errorf("Expected the list to be replaced wholesale, got %d fields", len(after.CustomFields))
	}

	if _, err := store.GetTemplate(ctx, "other", "attendee"); models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound for a type of another event, got %v", err)
	}
}

func TestReadSeedYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `events:
  - id: evt-1
    name: Summit
    planId: pro
    types:
      - id: attendee
        name: Attendee
        template:
          name: Summit Attendee
          backgroundImage: "file:bg.png"
          referenceWidth: 1200
          searchFields: [email, mobile]
        recipients:
          - certificateId: A-1
            name: Jane Doe
            email: jane@example.org
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write seed: %v", err)
	}

	seed, err := ReadSeed(path)
	if err != nil {
		t.Fatalf("ReadSeed() error = %v", err)
	}
	store := NewMemoryStore()
	if err := seed.Apply(context.Background(), store); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	ctx := context.Background()
	ev, err := store.GetEvent(ctx, "evt-1")
	if err != nil || ev.PlanID != "pro" {
		t.Fatalf("Expected the pro event, got %+v err=%v", ev, err)
	}
	tmpl, err := store.GetTemplate(ctx, "evt-1", "attendee")
	if err != nil {
		t.Fatalf("GetTemplate() error = %v", err)
	}
	if tmpl.Name != "Summit Attendee" || tmpl.ReferenceWidth != 1200 || !tmpl.Searchable(models.SearchMobile) {
		t.Errorf("Expected the seeded template, got %+v", tmpl)
	}
	if tmpl.TypeID != "attendee" || tmpl.EventID != "evt-1" {
		t.Errorf("Expected ids to be filled in, got event=%q type=%q", tmpl.EventID, tmpl.TypeID)
	}
	list, _ := store.ListRecipients(ctx, "evt-1", "attendee")
	if len(list) != 1 || list[0].Email != "jane@example.org" {
		t.Errorf("Expected the seeded recipient, got %+v", list)
	}
}

func TestExampleSeedIsValid(t *testing.T) {
	t.Parallel()

	seed, err := ReadSeed(filepath.Join("..", "config", "seed.example.yaml"))
	if err != nil {
		t.Fatalf("ReadSeed() error = %v", err)
	}
	store := NewMemoryStore()
	if err := seed.Apply(context.Background(), store); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	ctx := context.Background()
	tmpl, err := store.GetTemplate(ctx, "summit-2026", "attendee")
	if err != nil {
		t.Fatalf("GetTemplate() error = %v", err)
	}
	if err := models.ValidateTemplate(tmpl); err != nil {
		t.Errorf("Expected the example template to validate, got %v", err)
	}
	if n, _ := store.CountByEvent(ctx, "summit-2026"); n != 2 {
		t.Errorf("Expected 2 seeded recipients, got %d", n)
	}
}
