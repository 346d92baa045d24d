package orchestrator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"resource-downloader/catalog"
	"resource-downloader/progress"
	"resource-downloader/resource"

	"go.uber.org/zap"
)

func (o *Orchestrator) install(ctx context.Context, f *flight) Outcome {
	task := f.task
	oc := Outcome{ProjectID: task.ProjectID, VersionID: task.Version.ID}
	log := o.log.With(zap.String("project_id", task.ProjectID), zap.String("version_id", task.Version.ID))

	fail := func(err error) Outcome {
		oc.Status, oc.Err = StatusFailed, err
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
			oc.Status, oc.Err = StatusCancelled, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		log.Warnw("Install failed", zap.Stringer("status", oc.Status), zap.Error(err))
		o.opts.Sink.Emit(task.ProjectID, progress.Failed, task.Version.ID, oc.Err)
		return oc
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return fail(err)
	}
	defer o.sem.Release(1)

	name := filepath.Base(task.Version.FileName)
	if task.Version.FileName == "" || name != task.Version.FileName || name == "." || name == ".." {
		return fail(fmt.Errorf("invalid file name %q", task.Version.FileName))
	}
	algo, expected := resource.BestHash(task.Version.Hashes)
	if algo == "" {
		return fail(&IntegrityError{ProjectID: task.ProjectID})
	}

	dir := filepath.Join(o.opts.Root, task.Kind.Dir())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(fmt.Errorf("create %s: %w", dir, err))
	}
	dest := filepath.Join(dir, name)

	o.opts.Sink.Emit(task.ProjectID, progress.Downloading, task.Version.ID, nil)
	log.Infow("Downloading", zap.String("file", name))
	tmp, sum, attempts, err := o.fetch(ctx, task, algo, dir, name)
	oc.Attempts = attempts
	if err != nil {
		return fail(err)
	}
	defer os.Remove(tmp)

	o.opts.Sink.Emit(task.ProjectID, progress.Verifying, task.Version.ID, nil)
	if actual := hex.EncodeToString(sum); actual != expected {
		return fail(&IntegrityError{ProjectID: task.ProjectID, Algorithm: algo, Expected: expected, Actual: actual})
	}

	if err := o.commit(ctx, f, dest); err != nil {
		return fail(err)
	}
	// Past this point the install completes even if cancelled.
	ctx = context.WithoutCancel(ctx)

	prev, hadPrev := o.cache.Get(task.ProjectID)
	backup := ""
	if _, err := os.Stat(dest); err == nil {
		backup = dest + ".bak"
		if err := os.Rename(dest, backup); err != nil {
			return fail(fmt.Errorf("move aside %s: %w", dest, err))
		}
	}
	if err := os.Rename(tmp, dest); err != nil {
		restore(backup, dest)
		return fail(fmt.Errorf("move into place: %w", err))
	}

	entry := resource.InstalledEntry{
		ProjectID: task.ProjectID,
		Kind:      task.Kind,
		Title:     task.Title,
		Version:   task.Version,
		Path:      dest,
		Pinned:    task.Pin || (hadPrev && prev.Pinned),
	}
	if entry.Title == "" && hadPrev {
		entry.Title = prev.Title
	}
	if err := o.cache.Upsert(ctx, entry); err != nil {
		os.Remove(dest)
		restore(backup, dest)
		return fail(err)
	}

	if hadPrev {
		o.retire(ctx, log, prev, dest, backup)
	}
	if backup != "" {
		// Gone already when retire archived or removed it.
		if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
			log.Warnw("Failed to remove backup", zap.String("path", backup), zap.Error(err))
		}
	}

	oc.Status, oc.Path = StatusInstalled, dest
	log.Infow("Installed", zap.String("path", dest), zap.Int("attempts", attempts))
	o.opts.Sink.Emit(task.ProjectID, progress.Installed, task.Version.ID, nil)
	return oc
}

func restore(backup, dest string) {
	if backup != "" {
		os.Rename(backup, dest)
	}
}

// retire archives or removes the file of the replaced version. current is the freshly
// installed path; backup holds the old bytes when both versions share a file name.
func (o *Orchestrator) retire(ctx context.Context, log *zap.SugaredLogger, prev resource.InstalledEntry, current, backup string) {
	old := prev.Path
	if old == current {
		old = backup
	}
	if old == "" || prev.Version.ID == "" {
		return
	}
	if _, err := os.Stat(old); err != nil {
		return
	}

	archivePath := ""
	if o.opts.KeepOldVersions {
		versionsDir := filepath.Join(filepath.Dir(current), "versions")
		target := filepath.Join(versionsDir, fmt.Sprintf("%s-%s", prev.Version.ID, filepath.Base(prev.Path)))
		if err := os.MkdirAll(versionsDir, 0755); err != nil {
			log.Warnw("Failed to ensure versions directory exists", zap.String("directory", versionsDir), zap.Error(err))
		} else if err := os.Rename(old, target); err != nil {
			log.Warnw("Failed to archive old version", zap.String("from", old), zap.String("to", target), zap.Error(err))
		} else {
			archivePath = target
			log.Infow("Archived old version", zap.String("archive_path", target))
		}
	}
	if archivePath == "" {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			log.Warnw("Failed to remove old version", zap.String("path", old), zap.Error(err))
		}
	}

	if o.opts.History == nil || prev.Version.ID == "" {
		return
	}
	err := o.opts.History.RecordReplaced(ctx, HistoryEntry{
		ProjectID:     prev.ProjectID,
		VersionID:     prev.Version.ID,
		VersionNumber: prev.Version.VersionNumber,
		FileName:      filepath.Base(prev.Path),
		ArchivePath:   archivePath,
	})
	if err != nil {
		log.Warnw("Failed to save version history", zap.Error(err))
	}
}

// fetch downloads the artifact into a temporary file next to its destination,
// retrying transient transport failures with exponential backoff.
func (o *Orchestrator) fetch(ctx context.Context, task Task, algo, dir, name string) (string, []byte, int, error) {
	backoff := o.opts.BaseBackoff
	for attempt := 1; ; attempt++ {
		tmp, sum, err := o.fetchOnce(ctx, task, algo, dir, name)
		if err == nil {
			return tmp, sum, attempt, nil
		}
		if ctx.Err() != nil {
			return "", nil, attempt, ctx.Err()
		}
		if !catalog.IsTransient(err) || attempt >= o.opts.MaxAttempts {
			return "", nil, attempt, err
		}

		o.log.Warnw("Download failed, retrying",
			zap.String("project_id", task.ProjectID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", nil, attempt, ctx.Err()
		}
		backoff = min(backoff*2, o.opts.MaxBackoff)
	}
}

func (o *Orchestrator) fetchOnce(ctx context.Context, task Task, algo, dir, name string) (string, []byte, error) {
	h, err := resource.NewHasher(algo)
	if err != nil {
		return "", nil, err
	}
	body, err := o.client.FetchBytes(ctx, task.Version.URL)
	if err != nil {
		return "", nil, err
	}
	defer body.Close()

	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temporary file: %w", err)
	}
	_, err = io.Copy(io.MultiWriter(f, h), transportReader{body})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), h.Sum(nil), nil
}

// transportReader marks failures while reading the body as transient transport
// errors; write failures stay disk errors.
type transportReader struct {
	r io.Reader
}

func (t transportReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && !errors.Is(err, context.Canceled) {
		var te *catalog.TransportError
		if !errors.As(err, &te) {
			err = &catalog.TransportError{Op: "read body", Transient: true, Err: err}
		}
	}
	return n, err
}
