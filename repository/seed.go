package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"certistage/models"
)

// Seed describes fixture data for the in-memory store
type Seed struct {
	Events []SeedEvent `json:"events"`
}

// SeedEvent is an event with its certificate types
type SeedEvent struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	PlanID string     `json:"planId"`
	Types  []SeedType `json:"types"`
}

// SeedType is a certificate type with its template and recipients
type SeedType struct {
	ID         string                      `json:"id"`
	Name       string                      `json:"name"`
	Disabled   bool                        `json:"disabled"`
	Template   *models.CertificateTemplate `json:"template"`
	Recipients []models.Recipient          `json:"recipients"`
}

// ReadSeed parses a JSON or YAML seed file. YAML is converted to JSON first
// so both formats share the models' json field names.
func ReadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse seed file: %w", err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("failed to convert seed file: %w", err)
		}
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// Apply loads the seed into the store. Recipients bypass plan limits.
func (s *Seed) Apply(ctx context.Context, store *MemoryStore) error {
	for _, e := range s.Events {
		if e.ID == "" {
			return fmt.Errorf("seed event without id")
		}
		store.PutEvent(models.Event{ID: e.ID, Name: e.Name, PlanID: e.PlanID})
		for _, st := range e.Types {
			ct := models.CertificateType{ID: st.ID, EventID: e.ID, Name: st.Name, Enabled: !st.Disabled}
			if st.Template != nil {
				ct.Template = *st.Template
			}
			store.PutType(ct)
			if len(st.Recipients) == 0 {
				continue
			}
			if _, err := store.AddRecipients(ctx, e.ID, st.ID, st.Recipients, -1); err != nil {
				return fmt.Errorf("failed to seed recipients of %s: %w", st.ID, err)
			}
		}
	}
	return nil
}
