package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"certistage/config"
	"certistage/models"
)

var errStoreDown = errors.New("store unavailable")

type fakeStore struct {
	mu       sync.Mutex
	tmpl     models.CertificateTemplate
	patches  []models.TemplatePatch
	failNext int
}

func newFakeStore() *fakeStore {
	t := models.NewTemplate("evt-1", "type-1", "Summit")
	t.BackgroundImage = "bg"
	return &fakeStore{tmpl: t}
}

func (f *fakeStore) GetTemplate(ctx context.Context, eventID, typeID string) (models.CertificateTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tmpl.Clone(), nil
}

func (f *fakeStore) PatchTemplate(ctx context.Context, eventID, typeID string, patch models.TemplatePatch) (models.CertificateTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)
	if f.failNext > 0 {
		f.failNext--
		return models.CertificateTemplate{}, errStoreDown
	}
	f.tmpl = patch.Apply(f.tmpl)
	f.tmpl.Version++
	return f.tmpl.Clone(), nil
}

func (f *fakeStore) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

func (f *fakeStore) stored() models.CertificateTemplate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tmpl.Clone()
}

func (f *fakeStore) lastPatch() models.TemplatePatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches[len(f.patches)-1]
}

type fakePreviewer struct {
	req models.RenderRequest
}

func (p *fakePreviewer) RenderPreview(ctx context.Context, req models.RenderRequest) ([]byte, error) {
	p.req = req
	return []byte("png"), nil
}

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func testOptions(sched *ManualScheduler) Options {
	return Options{
		Debounce:     400 * time.Millisecond,
		EchoWindow:   2 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Second,
		Scheduler:    sched,
		Clock:        sched,
		Logger:       config.DiscardLogger(),
	}
}

func openTestSession(t *testing.T, store *fakeStore, opts Options) *Session {
	t.Helper()
	s, err := Open(context.Background(), models.Session{EventID: "evt-1", OperatorID: "op-1"}, "type-1", store, &fakePreviewer{}, opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestDebouncedMovesCoalesceIntoOneWrite(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	s := openTestSession(t, store, testOptions(sched))

	for i := 1; i <= 5; i++ {
		if err := s.MoveField(NameFieldSelection{}, models.Position{X: float64(10 * i), Y: 40}); err != nil {
			t.Fatalf("MoveField() error = %v", err)
		}
		sched.Advance(100 * time.Millisecond)
	}
	if store.writes() != 0 {
		t.Fatalf("Expected no writes while edits keep arriving, got %d", store.writes())
	}

	sched.Advance(400 * time.Millisecond)
	if store.writes() != 1 {
		t.Fatalf("Expected exactly 1 write after the idle period, got %d", store.writes())
	}
	if got := store.stored().NameField.Position; got != (models.Position{X: 50, Y: 40}) {
		t.Errorf("Expected stored position {50 40}, got %v", got)
	}
	if !s.Pending().IsEmpty() {
		t.Error("Expected the buffer to be empty after the flush")
	}
}

func TestCloseFlushesPendingExactlyOnce(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	s := openTestSession(t, store, testOptions(sched))

	s.BeginGesture()
	for _, x := range []float64{20, 35, 61.5} {
		if err := s.MoveField(NameFieldSelection{}, models.Position{X: x, Y: 75}); err != nil {
			t.Fatalf("MoveField() error = %v", err)
		}
	}

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if store.writes() != 1 {
		t.Fatalf("Expected exactly 1 write on close, got %d", store.writes())
	}
	if got := store.stored().NameField.Position; got != (models.Position{X: 61.5, Y: 75}) {
		t.Errorf("Expected the final dragged position, got %v", got)
	}

	sched.Advance(time.Minute)
	if store.writes() != 1 {
		t.Errorf("Expected no writes after close, got %d", store.writes())
	}
	if sched.Pending() != 0 {
		t.Errorf("Expected no pending timers after close, got %d", sched.Pending())
	}

	if err := s.MoveField(NameFieldSelection{}, models.Position{X: 1, Y: 1}); models.KindOf(err) != models.KindInvalid {
		t.Errorf("Expected edits on a closed session to be rejected, got %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Errorf("Expected a second Close to be a no-op, got %v", err)
	}
}

func TestCloseKeepsSessionOpenWhenFlushFails(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	s := openTestSession(t, store, testOptions(sched))

	if err := s.MoveField(NameFieldSelection{}, models.Position{X: 12, Y: 34}); err != nil {
		t.Fatalf("MoveField() error = %v", err)
	}
	store.failNext = 1

	err := s.Close(context.Background())
	if models.KindOf(err) != models.KindPersistenceFailure {
		t.Fatalf("Expected PersistenceFailure, got %v", err)
	}
	if s.Closed() {
		t.Fatal("Expected the session to stay open after a failed flush")
	}
	if s.Pending().IsEmpty() {
		t.Fatal("Expected the edit to remain buffered")
	}

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := store.stored().NameField.Position; got != (models.Position{X: 12, Y: 34}) {
		t.Errorf("Expected the buffered position to be stored, got %v", got)
	}
}

func TestImmediateEditRollsBackOnRejectedWrite(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	s := openTestSession(t, store, testOptions(sched))
	store.failNext = 1

	_, err := s.AddCustomField(context.Background(), models.VariableEmail)
	if models.KindOf(err) != models.KindPersistenceFailure {
		t.Fatalf("Expected PersistenceFailure, got %v", err)
	}
	if n := len(s.Template().CustomFields); n != 0 {
		t.Errorf("Expected the optimistic field to be rolled back, got %d fields", n)
	}
	if n := len(store.stored().CustomFields); n != 0 {
		t.Errorf("Expected the store to be unchanged, got %d fields", n)
	}

	field, err := s.AddCustomField(context.Background(), models.VariableEmail)
	if err != nil {
		t.Fatalf("AddCustomField() error = %v", err)
	}
	if got, ok := store.stored().CustomField(field.ID); !ok || got.Variable != models.VariableEmail {
		t.Errorf("Expected the field to be stored, got %+v", got)
	}
}

func TestImmediateEditCarriesBufferedChanges(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	s := openTestSession(t, store, testOptions(sched))

	if err := s.MoveField(NameFieldSelection{}, models.Position{X: 30, Y: 30}); err != nil {
		t.Fatalf("MoveField() error = %v", err)
	}
	if err := s.SetAlignment(context.Background(), models.AlignLeft); err != nil {
		t.Fatalf("SetAlignment() error = %v", err)
	}

	if store.writes() != 1 {
		t.Fatalf("Expected one combined write, got %d", store.writes())
	}
	p := store.lastPatch()
	if p.NameField == nil || p.Alignment == nil {
		t.Fatalf("Expected the write to carry nameField and alignment, got %+v", p)
	}
	stored := store.stored()
	if stored.Alignment != models.AlignLeft || stored.NameField.Position != (models.Position{X: 30, Y: 30}) {
		t.Errorf("Expected both edits stored, got alignment=%s position=%v", stored.Alignment, stored.NameField.Position)
	}

	sched.Advance(time.Second)
	if store.writes() != 1 {
		t.Errorf("Expected the debounce timer to be cancelled, got %d writes", store.writes())
	}
}

func TestImmediateEditValidation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	s := openTestSession(t, store, testOptions(sched))
	ctx := context.Background()

	if _, err := s.AddCustomField(ctx, models.VariableMobile); err != nil {
		t.Fatalf("AddCustomField() error = %v", err)
	}
	if _, err := s.AddCustomField(ctx, models.VariableMobile); models.KindOf(err) != models.KindInvalid {
		t.Errorf("Expected a second MOBILE field to be rejected, got %v", err)
	}
	if err := s.SetSearchFields(ctx, nil); models.KindOf(err) != models.KindInvalid {
		t.Errorf("Expected clearing all search fields to be rejected, got %v", err)
	}
	if err := s.RemoveSignature(ctx, "nope"); models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound for an unknown signature, got %v", err)
	}
	if store.writes() != 1 {
		t.Errorf("Expected rejected edits to skip the store, got %d writes", store.writes())
	}
}

func TestNameFieldToggleKeepsLayout(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	s := openTestSession(t, store, testOptions(sched))
	ctx := context.Background()

	if err := s.MoveField(NameFieldSelection{}, models.Position{X: 22, Y: 66}); err != nil {
		t.Fatalf("MoveField() error = %v", err)
	}
	if err := s.SetNameFieldEnabled(ctx, false); err != nil {
		t.Fatalf("SetNameFieldEnabled() error = %v", err)
	}
	if err := s.SetNameFieldEnabled(ctx, true); err != nil {
		t.Fatalf("SetNameFieldEnabled() error = %v", err)
	}
	nf := store.stored().NameField
	if !nf.Enabled || nf.Position != (models.Position{X: 22, Y: 66}) {
		t.Errorf("Expected the re-enabled field to keep its position, got %+v", nf)
	}
}

func TestFailedDebouncedWriteRetriesWithWarning(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	var seen []Warning
	opts := testOptions(sched)
	opts.OnWarning = func(w Warning) { seen = append(seen, w) }
	s := openTestSession(t, store, opts)
	store.failNext = 1

	if err := s.SetFontSize(NameFieldSelection{}, 40); err != nil {
		t.Fatalf("SetFontSize() error = %v", err)
	}
	sched.Advance(400 * time.Millisecond)

	warnings := s.Warnings()
	if len(warnings) != 1 || warnings[0].Attempt != 1 || warnings[0].Final {
		t.Fatalf("Expected one non-final warning, got %+v", warnings)
	}
	if s.Template().NameField.FontSize != 40 {
		t.Error("Expected the local copy to keep the edit")
	}

	sched.Advance(time.Second)
	if store.writes() != 2 {
		t.Fatalf("Expected a retry write, got %d writes", store.writes())
	}
	if store.stored().NameField.FontSize != 40 {
		t.Errorf("Expected the retry to store the edit")
	}
	if len(seen) != 1 {
		t.Errorf("Expected OnWarning once, got %d", len(seen))
	}
}

func TestDebouncedRetriesAreBounded(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	opts := testOptions(sched)
	opts.MaxRetries = 2
	s := openTestSession(t, store, opts)
	store.failNext = 100

	if err := s.SetFontSize(NameFieldSelection{}, 18); err != nil {
		t.Fatalf("SetFontSize() error = %v", err)
	}
	sched.Advance(time.Minute)

	warnings := s.Warnings()
	if len(warnings) != 3 {
		t.Fatalf("Expected 3 warnings, got %d", len(warnings))
	}
	if !warnings[2].Final {
		t.Error("Expected the last warning to be final")
	}
	if store.writes() != 3 {
		t.Errorf("Expected 3 write attempts, got %d", store.writes())
	}
	if s.Pending().IsEmpty() {
		t.Error("Expected the edit to stay buffered")
	}
}

func TestPollingSuspendedDuringEdits(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	s := openTestSession(t, store, testOptions(sched))

	if !s.ShouldPoll() {
		t.Fatal("Expected polling on an idle session")
	}
	s.BeginGesture()
	if s.ShouldPoll() {
		t.Error("Expected polling to stop during a gesture")
	}
	s.EndGesture()
	if !s.ShouldPoll() {
		t.Error("Expected polling after the gesture ended")
	}

	if err := s.SetSignatureWidth("missing", 10); models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}
	if err := s.MoveField(NameFieldSelection{}, models.Position{X: 5, Y: 5}); err != nil {
		t.Fatalf("MoveField() error = %v", err)
	}
	if s.ShouldPoll() {
		t.Error("Expected polling to stop while edits are buffered")
	}
	if changed, err := s.Refresh(context.Background()); err != nil || changed {
		t.Errorf("Expected Refresh to be skipped, got changed=%v err=%v", changed, err)
	}

	sched.Advance(400 * time.Millisecond)
	if !s.ShouldPoll() {
		t.Error("Expected polling after the flush")
	}
}

func TestApplyRemoteSuppressesEcho(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	s := openTestSession(t, store, testOptions(sched))

	if err := s.MoveField(NameFieldSelection{}, models.Position{X: 70, Y: 20}); err != nil {
		t.Fatalf("MoveField() error = %v", err)
	}
	sched.Advance(400 * time.Millisecond)

	stale := models.NewTemplate("evt-1", "type-1", "Summit")
	stale.Version = 1
	if s.ApplyRemote(stale) {
		t.Fatal("Expected a refresh inside the echo window to be ignored")
	}
	if got := s.Template().NameField.Position; got != (models.Position{X: 70, Y: 20}) {
		t.Errorf("Expected the local edit to survive, got %v", got)
	}

	sched.Advance(2 * time.Second)
	older := stale.Clone()
	older.Version = 0
	if s.ApplyRemote(older) {
		t.Error("Expected an older version to be ignored")
	}

	remote := store.stored()
	remote.Name = "Renamed elsewhere"
	if !s.ApplyRemote(remote) {
		t.Fatal("Expected a refresh after the echo window to apply")
	}
	if s.Template().Name != "Renamed elsewhere" {
		t.Errorf("Expected the remote copy, got %q", s.Template().Name)
	}
}

func TestMoveFieldClamps(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	s := openTestSession(t, store, testOptions(sched))

	sig, err := s.AddSignature(context.Background(), "sig", models.Position{X: 10, Y: 10}, 20)
	if err != nil {
		t.Fatalf("AddSignature() error = %v", err)
	}
	if err := s.MoveField(SignatureSelection{ID: sig.ID}, models.Position{X: 150, Y: -5}); err != nil {
		t.Fatalf("MoveField() error = %v", err)
	}
	got, _ := s.Template().Signature(sig.ID)
	if got.Position != (models.Position{X: 100, Y: 0}) {
		t.Errorf("Expected clamped {100 0}, got %v", got.Position)
	}
}

func TestSelectionLookups(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	s := openTestSession(t, store, testOptions(sched))
	ctx := context.Background()

	field, err := s.AddCustomField(ctx, models.VariableRegNo)
	if err != nil {
		t.Fatalf("AddCustomField() error = %v", err)
	}
	bold := true
	if err := s.SetFieldStyle(ctx, CustomFieldSelection{ID: field.ID}, FieldStyle{Bold: &bold}); err != nil {
		t.Fatalf("SetFieldStyle() error = %v", err)
	}

	got, err := s.TextField(CustomFieldSelection{ID: field.ID})
	if err != nil {
		t.Fatalf("TextField() error = %v", err)
	}
	if !got.Bold || got.Variable != models.VariableRegNo {
		t.Errorf("Expected the bold REG_NO field, got %+v", got)
	}
	name, err := s.TextField(NameFieldSelection{})
	if err != nil || name.Bold != models.DefaultNameField().Bold {
		t.Errorf("Expected the name field style to be untouched, got %+v err=%v", name, err)
	}
	if _, err := s.TextField(SignatureSelection{ID: "x"}); models.KindOf(err) != models.KindInvalid {
		t.Errorf("Expected Invalid for a signature selection, got %v", err)
	}
	if _, err := s.TextField(CustomFieldSelection{ID: "missing"}); models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound for an unknown field, got %v", err)
	}
}

func TestParseSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind, id string
		want     Selection
		wantErr  bool
	}{
		{"name", "", NameFieldSelection{}, false},
		{"custom", "f1", CustomFieldSelection{ID: "f1"}, false},
		{"signature", "s1", SignatureSelection{ID: "s1"}, false},
		{"custom", "", nil, true},
		{"logo", "x", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseSelection(tt.kind, tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSelection(%q, %q) error = %v, wantErr %v", tt.kind, tt.id, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSelection(%q, %q) = %v, want %v", tt.kind, tt.id, got, tt.want)
		}
	}
}

func TestPreviewUsesWorkingCopy(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	preview := &fakePreviewer{}
	s, err := Open(context.Background(), models.Session{EventID: "evt-1"}, "type-1", store, preview, testOptions(sched))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := s.MoveField(NameFieldSelection{}, models.Position{X: 44, Y: 55}); err != nil {
		t.Fatalf("MoveField() error = %v", err)
	}
	if _, err := s.Preview(context.Background(), nil); err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if got := preview.req.Template.NameField.Position; got != (models.Position{X: 44, Y: 55}) {
		t.Errorf("Expected the unsaved position in the preview, got %v", got)
	}
	if preview.req.Recipient.Name != models.SampleRecipient().Name {
		t.Errorf("Expected the sample recipient, got %q", preview.req.Recipient.Name)
	}
	if store.writes() != 0 {
		t.Errorf("Expected preview not to write, got %d", store.writes())
	}
}
