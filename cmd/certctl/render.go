package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"certistage/config"
	"certistage/models"
	"certistage/render"
	"certistage/service"
	"certistage/utils"
)

var (
	renderTemplate  string
	renderRecipient string
	renderOut       string
	renderFormat    string
	renderAssetsDir string
	renderFontDir   string
	renderChrome    bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one certificate offline",
	Long: `Render one certificate from a template JSON file and a recipient JSON file.

Without --recipient the sample recipient is used. file: image refs resolve
against --assets, which defaults to the template's directory.

Examples:
  certctl render --template tpl.json --recipient jane.json
  certctl render --template tpl.json --format png --out preview.png`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderTemplate, "template", "t", "", "template JSON file (required)")
	renderCmd.Flags().StringVarP(&renderRecipient, "recipient", "r", "", "recipient JSON file")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output file (defaults to the certificate file name)")
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "pdf", "output format (pdf or png)")
	renderCmd.Flags().StringVar(&renderAssetsDir, "assets", "", "base directory for file: image refs")
	renderCmd.Flags().StringVar(&renderFontDir, "fonts", "", "directory overriding the embedded fonts")
	renderCmd.Flags().BoolVar(&renderChrome, "chrome", false, "print the PDF through headless Chrome")
	_ = renderCmd.MarkFlagRequired("template")
}

func readJSONFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	var tpl models.CertificateTemplate
	if err := readJSONFile(renderTemplate, &tpl); err != nil {
		return err
	}
	if err := models.ValidateTemplate(tpl); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	recipient := models.SampleRecipient()
	if renderRecipient != "" {
		if err := readJSONFile(renderRecipient, &recipient); err != nil {
			return err
		}
		if err := models.ValidateRecipient(recipient); err != nil {
			return fmt.Errorf("invalid recipient: %w", err)
		}
	}

	assetsDir := renderAssetsDir
	if assetsDir == "" {
		assetsDir = filepath.Dir(renderTemplate)
	}
	opts := []render.Option{
		render.WithFontBook(render.NewFontBook(renderFontDir)),
		render.WithLogger(config.Log),
	}
	if renderChrome {
		opts = append(opts, render.WithPDFWriter(&render.ChromePDFWriter{ChromePath: render.DetectChromePath()}))
	}
	engine := render.NewEngine(service.NewAssetService(nil, "", assetsDir), opts...)

	ctx := context.Background()
	req := models.NewRenderRequest(tpl, recipient)

	var (
		data []byte
		name string
	)
	switch strings.ToLower(renderFormat) {
	case "pdf":
		doc, err := engine.RenderPDF(ctx, req)
		if err != nil {
			return err
		}
		data, name = doc.Bytes, doc.Filename
	case "png":
		png, err := engine.RenderPreview(ctx, req)
		if err != nil {
			return err
		}
		data = png
		name = utils.PreviewFilename(tpl.Name, recipient.CertificateID)
	default:
		return fmt.Errorf("unknown format %q (expected pdf or png)", renderFormat)
	}

	out := renderOut
	if out == "" {
		out = name
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s (%d bytes)\n", out, len(data))
	return nil
}
