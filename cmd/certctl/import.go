package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"certistage/app"
	"certistage/config"
	"certistage/models"
	"certistage/service"
)

var (
	importEvent string
	importType  string
)

var importCmd = &cobra.Command{
	Use:   "import [file.csv]",
	Short: "Import recipients from a CSV file into the configured store",
	Long: `Import recipients from a CSV file with a header row.

Recognised columns: name, email, mobile, certificateId. The event's plan
limits apply exactly as they do for uploads through the admin API.

Examples:
  certctl import attendees.csv --event summit-2026 --type attendee`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importEvent, "event", "e", "", "event id (required)")
	importCmd.Flags().StringVarP(&importType, "type", "t", "", "certificate type id (required)")
	_ = importCmd.MarkFlagRequired("event")
	_ = importCmd.MarkFlagRequired("type")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	config.InitLogger(cfg.LogLevel, cfg.LogFormat)

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	plans, err := app.LoadPlans(cfg.PlansConfigPath)
	if err != nil {
		return err
	}

	recipients := service.NewRecipientService(stores.Recipients, stores.Templates, stores.Events, plans)
	sess := models.Session{EventID: importEvent, OperatorID: "certctl"}
	result, err := recipients.ImportCSV(ctx, sess, importType, f)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
