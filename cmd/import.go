package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resource-downloader/logger"
	"resource-downloader/resource"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Adds files already in the game directory to the installed list",
	Long: `Scans every resource directory for .jar and .zip files that are not tracked yet,
looks each one up on Modrinth by its SHA-1 hash and records the matches as installed.
Archived versions under versions/ are ignored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := bootstrap(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := importInstalled(ctx, a, a.modrinth)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d file(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

// hashLookup finds the catalog version a local file was downloaded from.
type hashLookup interface {
	GetVersionByHash(ctx context.Context, hash, algorithm string) (resource.VersionRecord, error)
}

// importInstalled scans the resource directories and records files the catalog knows.
func importInstalled(ctx context.Context, a *app, lookup hashLookup) (int, error) {
	logger.Log.Info("Scanning for existing files...")

	known := make(map[string]bool)
	for _, e := range a.cache.List() {
		known[filepath.Clean(e.Path)] = true
	}

	imported := 0
	for _, kind := range resource.Kinds() {
		dir := filepath.Join(a.cfg.MinecraftDir, kind.Dir())
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}

		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if d.Name() == "versions" {
					return filepath.SkipDir
				}
				return nil
			}
			if known[filepath.Clean(path)] || !importable(path) {
				return nil
			}
			if importFile(ctx, a, lookup, kind, path) {
				imported++
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return imported, ctx.Err()
			}
			logger.Log.Errorw("Error scanning directory", zap.String("dir", dir), zap.Error(err))
		}
	}
	return imported, nil
}

func importable(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jar" || ext == ".zip"
}

// importFile records one file. Lookup failures are logged and skipped.
func importFile(ctx context.Context, a *app, lookup hashLookup, kind resource.Kind, path string) bool {
	filename := filepath.Base(path)
	log := a.log.With(zap.String("file", filename))

	hash, err := resource.HashFile(path, "sha1")
	if err != nil {
		log.Warnw("Failed to calculate hash", zap.Error(err))
		return false
	}

	version, err := lookup.GetVersionByHash(ctx, hash, "sha1")
	if err != nil {
		log.Debugw("File not found on Modrinth by hash", zap.Error(err))
		return false
	}
	if existing, ok := a.cache.Get(version.ProjectID); ok {
		log.Infow("Project already tracked under another file", zap.String("path", existing.Path))
		return false
	}

	project, err := a.catalog.GetProject(ctx, version.ProjectID)
	if err != nil {
		log.Warnw("Failed to get project details", zap.String("project_id", version.ProjectID), zap.Error(err))
		return false
	}
	if project.Kind != kind {
		log.Infow("Project kind does not match its directory, skipping",
			zap.String("project", project.ID), zap.Stringer("kind", project.Kind))
		return false
	}

	// The file on disk is what gets tracked, whatever the catalog calls its primary file.
	version.FileName = filename
	now := time.Now()
	entry := resource.InstalledEntry{
		ProjectID:   project.ID,
		Kind:        kind,
		Title:       project.Title,
		Version:     version,
		Path:        path,
		InstalledAt: now,
		CheckedAt:   now,
	}
	if err := a.cache.Upsert(ctx, entry); err != nil {
		log.Errorw("Failed to save imported file", zap.String("project", project.ID), zap.Error(err))
		return false
	}
	log.Infow("Imported existing file", zap.String("title", project.Title), zap.String("version", version.VersionNumber))
	return true
}
