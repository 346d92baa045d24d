package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"resource-downloader/db"
	"resource-downloader/resource"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rollbackCmd represents the rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback [project]",
	Short: "Rollback a project to its previous version",
	Long: `Rollback a project to its previous version.
Example: resource-downloader rollback sodium

This will remove the current version of the project and
replace it with the most recently archived version. The restored
version is pinned so the next update leaves it alone; use 'unpin'
to allow updates again.

Only versions replaced while KEEP_OLD_VERSIONS was enabled can be restored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		a, err := bootstrap(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		restored, err := rollbackProject(ctx, a, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully rolled back %s to version %s\n", args[0], versionLabel(restored.VersionNumber, restored.VersionID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

// rollbackProject restores the newest archived version of a project and pins it.
func rollbackProject(ctx context.Context, a *app, arg string) (db.VersionHistory, error) {
	if a.store == nil {
		return db.VersionHistory{}, fmt.Errorf("rollback needs the version history database")
	}
	current, err := installedEntry(ctx, a, arg)
	if err != nil {
		return db.VersionHistory{}, err
	}
	projectID := current.ProjectID
	log := a.log.With(zap.String("project", projectID))
	log.Infow("Attempting rollback")

	history, err := a.store.History(ctx, projectID)
	if err != nil {
		return db.VersionHistory{}, fmt.Errorf("failed to query version history: %w", err)
	}
	var previous *db.VersionHistory
	for i := range history {
		if history[i].ArchivePath != "" {
			previous = &history[i]
			break
		}
	}
	if previous == nil {
		return db.VersionHistory{}, fmt.Errorf("no archived versions found for %s", projectID)
	}
	if _, err := os.Stat(previous.ArchivePath); errors.Is(err, os.ErrNotExist) {
		return db.VersionHistory{}, fmt.Errorf("archive file not found: %s", previous.ArchivePath)
	}

	record, err := archivedRecord(ctx, a, *previous)
	if err != nil {
		return db.VersionHistory{}, err
	}

	targetPath := filepath.Join(filepath.Dir(current.Path), previous.FileName)
	log.Infow("Restoring previous version",
		zap.String("file", previous.FileName),
		zap.String("version", previous.VersionID),
	)
	backup, err := restoreArchive(previous.ArchivePath, targetPath, record.Hashes)
	if err != nil {
		return db.VersionHistory{}, err
	}

	restored := current
	restored.Version = record
	restored.Path = targetPath
	restored.Pinned = true
	restored.InstalledAt = time.Now()
	if err := a.cache.Upsert(ctx, restored); err != nil {
		os.Remove(targetPath)
		if backup != "" {
			os.Rename(backup, targetPath)
		}
		return db.VersionHistory{}, fmt.Errorf("failed to update installed record: %w", err)
	}

	if backup != "" {
		if err := os.Remove(backup); err != nil {
			log.Warnw("Failed to remove backup", zap.String("file", backup), zap.Error(err))
		}
	}
	if targetPath != current.Path {
		log.Infow("Removing current version", zap.String("file", current.Path))
		if err := os.Remove(current.Path); err != nil && !os.IsNotExist(err) {
			log.Warnw("Failed to remove current version", zap.String("file", current.Path), zap.Error(err))
		}
	}
	if err := a.store.ForgetHistory(ctx, previous.ID); err != nil {
		log.Warnw("Failed to delete history record", zap.String("version", previous.VersionID), zap.Error(err))
	}
	if err := os.Remove(previous.ArchivePath); err != nil && !os.IsNotExist(err) {
		log.Warnw("Failed to remove archive file", zap.String("file", previous.ArchivePath), zap.Error(err))
	}

	log.Infow("Rollback successful",
		zap.String("restored_version_id", record.ID),
		zap.String("restored_file", record.FileName),
	)
	return *previous, nil
}

// restoreArchive copies archive next to target, checks the copy against hashes and
// moves it into place. A file already at target is moved to the returned backup path.
func restoreArchive(archive, target string, hashes map[string]string) (backup string, err error) {
	algo, expected := resource.BestHash(hashes)
	if algo == "" {
		return "", fmt.Errorf("archived version has no usable hash")
	}
	if info, err := os.Stat(target); err == nil && !info.Mode().IsRegular() {
		return "", fmt.Errorf("cannot restore to %s: not a regular file", target)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())
	src, err := os.Open(archive)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to read archive file: %w", err)
	}
	_, err = io.Copy(tmp, src)
	src.Close()
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to copy archive file: %w", err)
	}

	actual, err := resource.HashFile(tmp.Name(), algo)
	if err != nil {
		return "", fmt.Errorf("failed to hash restored file: %w", err)
	}
	if actual != expected {
		return "", fmt.Errorf("archive file %s is corrupt: %s mismatch", archive, algo)
	}

	if _, err := os.Stat(target); err == nil {
		backup = target + ".bak"
		if err := os.Rename(target, backup); err != nil {
			return "", fmt.Errorf("failed to move aside %s: %w", target, err)
		}
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		if backup != "" {
			os.Rename(backup, target)
		}
		return "", fmt.Errorf("failed to move restored file into place: %w", err)
	}
	return backup, nil
}

// archivedRecord finds the catalog record of an archived version. When the catalog
// no longer lists it, a record is built from the history row and the archive file.
func archivedRecord(ctx context.Context, a *app, h db.VersionHistory) (resource.VersionRecord, error) {
	for v, err := range a.catalog.ListVersions(ctx, h.ProjectID) {
		if err != nil {
			a.log.Warnw("Could not list versions, using archived details", zap.String("project", h.ProjectID), zap.Error(err))
			break
		}
		if v.ID == h.VersionID {
			v.FileName = h.FileName
			return v, nil
		}
	}

	hashes := make(map[string]string)
	for _, algo := range []string{"sha1", "sha512"} {
		sum, err := resource.HashFile(h.ArchivePath, algo)
		if err != nil {
			return resource.VersionRecord{}, fmt.Errorf("failed to hash archive file: %w", err)
		}
		hashes[algo] = sum
	}
	return resource.VersionRecord{
		ProjectID:     h.ProjectID,
		ID:            h.VersionID,
		VersionNumber: h.VersionNumber,
		FileName:      h.FileName,
		Hashes:        hashes,
	}, nil
}
