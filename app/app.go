package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"certistage/app/controller"
	"certistage/app/router"
	"certistage/config"
	"certistage/db"
	"certistage/editor"
	"certistage/kvstore"
	"certistage/pricing"
	"certistage/render"
	"certistage/repository"
	"certistage/service"
)

// Stores groups the persistence collaborators of the core
type Stores struct {
	Templates  repository.TemplateStore
	Recipients repository.RecipientStore
	Events     repository.EventStore
	close      func() error
}

// Close releases the backing connection, if any
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores connects the configured storage backend
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Storage {
	case "memory":
		mem := repository.NewMemoryStore()
		if cfg.SeedFile != "" {
			seed, err := repository.ReadSeed(cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			if err := seed.Apply(ctx, mem); err != nil {
				return nil, fmt.Errorf("failed to apply seed: %w", err)
			}
			config.Log.WithField("seed_file", cfg.SeedFile).Info("✓ Memory store seeded")
		}
		return &Stores{Templates: mem, Recipients: mem, Events: mem}, nil
	default:
		if err := db.InitDB(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.CloseDB()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return &Stores{
			Templates:  repository.NewTemplateRepository(),
			Recipients: repository.NewRecipientRepository(),
			Events:     repository.NewEventRepository(),
			close:      db.CloseDB,
		}, nil
	}
}

// LoadPlans reads the plans file, falling back to the built-in tiers when
// it does not exist
func LoadPlans(path string) (*pricing.Engine, error) {
	plans, err := pricing.LoadEngine(path)
	if err == nil {
		return plans, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	config.Log.WithField("path", path).Warn("⚠️  Plans config not found, using built-in plans")
	return pricing.NewEngine(pricing.DefaultConfig())
}

// NewAssets builds the asset source. Drive refs are only resolvable when
// credentials are configured.
func NewAssets(ctx context.Context, cfg *config.Config) (*service.AssetService, error) {
	var drive service.DriveServiceInterface
	if cfg.GoogleCredentialsPath != "" {
		ds, err := service.NewDriveService(ctx, cfg.GoogleCredentialsPath)
		if err != nil {
			return nil, err
		}
		drive = ds
	} else {
		config.Log.Warn("⚠️  Google Drive credentials not set, drive: assets are unavailable")
	}
	return service.NewAssetService(drive, cfg.AssetCacheDir, cfg.AssetBaseDir), nil
}

// NewRenderer builds the rendering engine with the configured PDF writer
func NewRenderer(cfg *config.Config, assets render.AssetLoader) *render.Engine {
	opts := []render.Option{
		render.WithFontBook(render.NewFontBook(cfg.FontDir)),
		render.WithLogger(config.Log),
	}
	if cfg.PDFEngine == "chrome" {
		chromePath := cfg.ChromePath
		if chromePath == "" {
			chromePath = render.DetectChromePath()
		}
		opts = append(opts, render.WithPDFWriter(&render.ChromePDFWriter{ChromePath: chromePath, Timeout: 30 * time.Second}))
	}
	return render.NewEngine(assets, opts...)
}

// App is the wired HTTP application
type App struct {
	Handler http.Handler
	Editors *editor.Manager

	stores *Stores
	kv     kvstore.Store
}

// Initialize wires stores, services and controllers from cfg
func Initialize(ctx context.Context, cfg *config.Config) (*App, error) {
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var kv kvstore.Store
	if cfg.RedisAddr != "" {
		redisStore, err := kvstore.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			stores.Close()
			return nil, err
		}
		kv = redisStore
	} else {
		config.Log.Warn("⚠️  REDIS_ADDR not set, verification throttling is per process")
		kv = kvstore.NewMemoryStore(time.Now)
	}

	plans, err := LoadPlans(cfg.PlansConfigPath)
	if err != nil {
		stores.Close()
		kv.Close()
		return nil, err
	}

	assets, err := NewAssets(ctx, cfg)
	if err != nil {
		stores.Close()
		kv.Close()
		return nil, err
	}
	renderer := NewRenderer(cfg, assets)

	limiter := service.NewAttemptLimiter(kv, cfg.VerifyMaxAttempts, cfg.VerifyWindow)
	verifier := service.NewVerificationService(stores.Recipients, stores.Templates, limiter)
	tokens := service.NewDeliveryTokens(cfg.DeliveryTokenSecret, cfg.DeliveryTokenTTL)

	templateService := service.NewTemplateService(stores.Templates, stores.Recipients, renderer)
	recipientService := service.NewRecipientService(stores.Recipients, stores.Templates, stores.Events, plans)
	exportService := service.NewExportService(stores.Recipients, stores.Templates, renderer, cfg.ExportWorkers)
	deliveryService := service.NewDeliveryService(verifier, renderer, stores.Recipients, stores.Templates, stores.Events, plans, tokens)

	editorOpts := editor.DefaultOptions()
	editorOpts.Debounce = cfg.EditorDebounce
	editorOpts.EchoWindow = cfg.EditorEchoWindow
	editorOpts.MaxRetries = cfg.EditorMaxRetries
	editorOpts.Logger = config.Log
	editorOpts.OnWarning = func(w editor.Warning) {
		config.Log.WithFields(logrus.Fields{
			"editor_session": w.SessionID,
			"attempt":        w.Attempt,
			"final":          w.Final,
		}).Warn("⚠️  Editor save failed: " + w.Message)
	}
	editors := editor.NewManager(stores.Templates, renderer, editorOpts, cfg.EditorIdleTimeout)

	controllers := &router.Controllers{
		Template:  controller.NewTemplateController(templateService),
		Editor:    controller.NewEditorController(editors, stores.Recipients),
		Recipient: controller.NewRecipientController(recipientService, exportService),
		Delivery:  controller.NewDeliveryController(deliveryService),
		Asset:     controller.NewAssetController(assets),
	}

	config.Log.WithFields(logrus.Fields{
		"storage":    cfg.Storage,
		"pdf_engine": cfg.PDFEngine,
		"plans":      plans.PlanIDs(),
	}).Info("✓ Application initialized")

	return &App{
		Handler: router.SetupRoutes(controllers),
		Editors: editors,
		stores:  stores,
		kv:      kv,
	}, nil
}

// Shutdown flushes open editor sessions and releases connections
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Editors.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.kv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close kv store: %w", err))
	}
	if err := a.stores.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errors.Join(errs...)
}
