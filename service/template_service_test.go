package service

import (
	"context"
	"testing"

	"certistage/models"
)

func TestTemplatePatchValidatesMergedTemplate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "pro")
	svc := NewTemplateService(f.store, f.store, f.renderer)
	ctx := context.Background()

	before, err := svc.Get(ctx, f.sess, "attendee")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	dup := []models.TextField{
		{ID: "a", Variable: models.VariableEmail, FontFamily: models.FontHelvetica, FontSize: 12},
		{ID: "b", Variable: models.VariableEmail, FontFamily: models.FontHelvetica, FontSize: 12},
	}
	if _, err := svc.Patch(ctx, f.sess, "attendee", models.TemplatePatch{CustomFields: &dup}); models.KindOf(err) != models.KindInvalid {
		t.Errorf("Expected Invalid for two fields on one variable, got %v", err)
	}
	if _, err := svc.Patch(ctx, f.sess, "attendee", models.TemplatePatch{}); models.KindOf(err) != models.KindInvalid {
		t.Errorf("Expected Invalid for an empty patch, got %v", err)
	}

	name := "Renamed"
	saved, err := svc.Patch(ctx, f.sess, "attendee", models.TemplatePatch{Name: &name})
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if saved.Name != "Renamed" || saved.Version != before.Version+1 {
		t.Errorf("Expected the rename at version %d, got %q at %d", before.Version+1, saved.Name, saved.Version)
	}
	if len(saved.SearchFields) != len(before.SearchFields) {
		t.Errorf("Expected untouched fields to survive the patch, got %v", saved.SearchFields)
	}
}

func TestTemplatePreview(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "pro")
	f.add(t, "attendee", person("ATT-1", "Jane Doe", "", ""))
	svc := NewTemplateService(f.store, f.store, f.renderer)
	ctx := context.Background()

	if _, err := svc.Preview(ctx, f.sess, "attendee", ""); err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if got := f.renderer.previews[0].Recipient.Name; got != models.SampleRecipient().Name {
		t.Errorf("Expected the sample recipient, got %s", got)
	}

	r := f.recipient(t, "attendee", "ATT-1")
	if _, err := svc.Preview(ctx, f.sess, "attendee", r.ID); err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if got := f.renderer.previews[1].Recipient.ID; got != r.ID {
		t.Errorf("Expected %s, got %s", r.ID, got)
	}

	if _, err := svc.Preview(ctx, f.sess, "speaker", r.ID); models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound for a recipient of another type, got %v", err)
	}
}
