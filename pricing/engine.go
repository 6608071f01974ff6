package pricing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlanPolicy is the subscription-plan collaborator consulted by the core.
// Limits are reported together with an unlimited flag so zero is never ambiguous.
type PlanPolicy interface {
	MaxRecipients(planID string) (limit int, unlimited bool)
	CanImportBulk(planID string) bool
	MaxDownloadsPerRecipient(planID string) (limit int, unlimited bool)
}

// PlanConfig represents the plans configuration file
type PlanConfig struct {
	DefaultPlan string          `json:"defaultPlan" yaml:"defaultPlan"`
	Plans       map[string]Plan `json:"plans" yaml:"plans"`
}

// Plan holds the limits of one subscription tier.
// Zero or negative limits mean unlimited.
type Plan struct {
	Name                     string `json:"name" yaml:"name"`
	MaxRecipients            int    `json:"maxRecipients" yaml:"maxRecipients"`
	BulkImport               bool   `json:"bulkImport" yaml:"bulkImport"`
	MaxDownloadsPerRecipient int    `json:"maxDownloadsPerRecipient" yaml:"maxDownloadsPerRecipient"`
}

// Engine answers plan questions from a static configuration
type Engine struct {
	config *PlanConfig
}

// Ensure Engine implements PlanPolicy
var _ PlanPolicy = (*Engine)(nil)

// DefaultConfig is used when no plans file is present
func DefaultConfig() PlanConfig {
	return PlanConfig{
		DefaultPlan: "free",
		Plans: map[string]Plan{
			"free":       {Name: "Free", MaxRecipients: 50, BulkImport: false},
			"pro":        {Name: "Pro", MaxRecipients: 2000, BulkImport: true},
			"enterprise": {Name: "Enterprise", MaxRecipients: 0, BulkImport: true},
		},
	}
}

// NewEngine creates a plan engine from an in-memory configuration
func NewEngine(config PlanConfig) (*Engine, error) {
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid plans config: %w", err)
	}
	return &Engine{config: &config}, nil
}

// LoadEngine reads a JSON or YAML plans file. The format follows the extension.
func LoadEngine(configPath string) (*Engine, error) {
	// Resolve config path
	if !filepath.IsAbs(configPath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		configPath = filepath.Join(wd, configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans config: %w", err)
	}

	var config PlanConfig
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse plans config: %w", err)
	}

	return NewEngine(config)
}

func validateConfig(config *PlanConfig) error {
	if len(config.Plans) == 0 {
		return fmt.Errorf("plans are required")
	}
	if config.DefaultPlan == "" {
		return fmt.Errorf("defaultPlan is required")
	}
	if _, ok := config.Plans[config.DefaultPlan]; !ok {
		return fmt.Errorf("defaultPlan %q is not defined", config.DefaultPlan)
	}
	return nil
}

// plan falls back to the default plan for unknown ids
func (e *Engine) plan(planID string) Plan {
	if p, ok := e.config.Plans[planID]; ok {
		return p
	}
	return e.config.Plans[e.config.DefaultPlan]
}

// MaxRecipients returns the recipient cap of an event on this plan
func (e *Engine) MaxRecipients(planID string) (int, bool) {
	p := e.plan(planID)
	if p.MaxRecipients <= 0 {
		return 0, true
	}
	return p.MaxRecipients, false
}

// CanImportBulk reports whether CSV/bulk admission is allowed
func (e *Engine) CanImportBulk(planID string) bool {
	return e.plan(planID).BulkImport
}

// MaxDownloadsPerRecipient returns the optional per-recipient download cap
func (e *Engine) MaxDownloadsPerRecipient(planID string) (int, bool) {
	p := e.plan(planID)
	if p.MaxDownloadsPerRecipient <= 0 {
		return 0, true
	}
	return p.MaxDownloadsPerRecipient, false
}

// PlanIDs lists configured plans in stable order
func (e *Engine) PlanIDs() []string {
	ids := make([]string, 0, len(e.config.Plans))
	for id := range e.config.Plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RemainingQuota is how many more recipients fit under the cap.
// It returns -1 when the plan is unlimited.
func RemainingQuota(policy PlanPolicy, planID string, existing int) int {
	limit, unlimited := policy.MaxRecipients(planID)
	if unlimited {
		return -1
	}
	if existing >= limit {
		return 0
	}
	return limit - existing
}
