package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resource-downloader/cache"
	"resource-downloader/catalog"
	"resource-downloader/config"
	"resource-downloader/db"
	"resource-downloader/logger"
	"resource-downloader/modrinth"
	"resource-downloader/orchestrator"
	"resource-downloader/planner"
	"resource-downloader/progress"
	"resource-downloader/resource"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg      config.Config
	catalog  catalog.Client
	modrinth *modrinth.Client // nil in tests
	store    *db.Store        // nil in tests
	history  orchestrator.History
	cache    *cache.Cache
	log      *zap.SugaredLogger
}

// bootstrap handles shared initialization logic for commands.
func bootstrap(ctx context.Context, path string) (*app, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.MinecraftVersion == "" || cfg.MinecraftLoader == "" {
		return nil, fmt.Errorf("MINECRAFT_VERSION and MINECRAFT_LOADER must be set")
	}

	store, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	logger.Log.Infow("Database initialized", zap.String("path", cfg.DatabasePath))

	client, err := modrinth.NewClient(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create Modrinth client: %w", err)
	}
	client.Log = logger.Named("modrinth")

	c := cache.New(store, logger.Named("cache"))
	if err := c.Load(ctx); err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		catalog:  client,
		modrinth: client,
		store:    store,
		history:  store,
		cache:    c,
		log:      logger.Log,
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warnw("Failed to close database", zap.Error(err))
		}
	}
}

func (a *app) planner(sink progress.Sink) *planner.Planner {
	return planner.New(a.catalog, planner.Options{
		Channel:          a.cfg.Channel(),
		InstallationType: a.cfg.MinecraftInstallationType,
		Workers:          a.cfg.DownloadWorkers,
		Sink:             sink,
		Log:              a.log.Named("planner"),
	})
}

func (a *app) orchestrator(sink progress.Sink) *orchestrator.Orchestrator {
	return orchestrator.New(a.catalog, a.cache, orchestrator.Options{
		Root:            a.cfg.MinecraftDir,
		Workers:         a.cfg.DownloadWorkers,
		MaxAttempts:     a.cfg.DownloadAttempts,
		BaseBackoff:     500 * time.Millisecond,
		MaxBackoff:      8 * time.Second,
		KeepOldVersions: a.cfg.KeepOldVersions,
		History:         a.history,
		Sink:            sink,
		Log:             a.log.Named("orchestrator"),
	})
}

// shouldProcessProject reports whether p can be installed for the configured
// installation type, logging why not.
func shouldProcessProject(p resource.Project, cfg *config.Config, log *zap.SugaredLogger) bool {
	if !p.SupportsSide(cfg.MinecraftInstallationType) {
		log.Infow("Skipping project, unsupported for installation type",
			zap.String("project", p.ID),
			zap.String("installation_type", cfg.MinecraftInstallationType),
		)
		return false
	}
	return true
}

// desiredFrom turns command arguments into planner requests, each constrained by c.
func desiredFrom(projectIDs []string, c resource.Constraint) ([]planner.Desired, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	out := make([]planner.Desired, 0, len(projectIDs))
	for _, id := range projectIDs {
		out = append(out, planner.Desired{ProjectID: id, Constraint: c})
	}
	return out, nil
}

// addConstraintFlags registers the flags read by constraintFrom.
func addConstraintFlags(cmd *cobra.Command, versionUsage string) {
	cmd.Flags().String("version", "", versionUsage)
	cmd.Flags().String("range", "", `version number range for the given projects, e.g. ">=0.5, <0.6"`)
}

func constraintFrom(cmd *cobra.Command) resource.Constraint {
	version, _ := cmd.Flags().GetString("version")
	rng, _ := cmd.Flags().GetString("range")
	return resource.Constraint{VersionID: version, Range: rng}
}

// pinUpToDate pins entries the user pinned to the version that is already installed.
// Fresh installs of a pinned version are pinned by the orchestrator.
func pinUpToDate(ctx context.Context, a *app, plan planner.Plan) {
	for _, e := range plan.Entries {
		pin := e.UserPin()
		if e.Action != planner.Skip || pin == "" || e.Installed == nil || e.Installed.ID != pin {
			continue
		}
		if cur, ok := a.cache.Get(e.ProjectID); !ok || cur.Pinned || cur.Version.ID != pin {
			continue
		}
		if err := a.cache.SetPinned(ctx, e.ProjectID, true); err != nil {
			a.log.Warnw("Failed to pin project", zap.String("project_id", e.ProjectID), zap.Error(err))
		}
	}
}

// canonicalIDs maps project IDs or slugs given on the command line to catalog IDs.
func canonicalIDs(ctx context.Context, a *app, args []string) ([]string, error) {
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		if _, ok := a.cache.Get(arg); ok {
			ids = append(ids, arg)
			continue
		}
		p, err := a.catalog.GetProject(ctx, arg)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, fmt.Errorf("project %s not found", arg)
			}
			return nil, fmt.Errorf("failed to look up %s: %w", arg, err)
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// installedEntry finds an installed project by ID or slug.
func installedEntry(ctx context.Context, a *app, arg string) (resource.InstalledEntry, error) {
	if e, ok := a.cache.Get(arg); ok {
		return e, nil
	}
	if p, err := a.catalog.GetProject(ctx, arg); err == nil {
		if e, ok := a.cache.Get(p.ID); ok {
			return e, nil
		}
	}
	return resource.InstalledEntry{}, fmt.Errorf("project %s is not installed", arg)
}
