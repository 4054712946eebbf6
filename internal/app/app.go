package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"aoi-go/internal/aoi"
	"aoi-go/internal/archive"
	"aoi-go/internal/backend"
	"aoi-go/internal/config"
	"aoi-go/internal/database"
	"aoi-go/internal/encryption"
	"aoi-go/internal/metrics"
)

// pushTimeout bounds the metrics push at exit.
const pushTimeout = 10 * time.Second

// AOIApp is the application layer between the CLI and AOIService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI input, and manages the DB lifecycle on Close.
type AOIApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	backend   aoi.Backend
	archive   aoi.Archive
	encryptor aoi.Encryptor
	service   *aoi.AOIService
	op        *Operation
	logger    zerolog.Logger
	logFile   *os.File
}

// NewAOIApp creates a fully wired AOIApp from the given config.
// operation identifies the CLI command being run (e.g. "CreateAOI", "Dashboard").
// The caller must call Close when done.
func NewAOIApp(ctx context.Context, cfg *config.Config, operation string) (*AOIApp, error) {
	return newAOIApp(ctx, cfg, operation, os.Stderr, aoi.RealClock{})
}

func newAOIApp(ctx context.Context, cfg *config.Config, operation string, console io.Writer, clock aoi.Clock) (*AOIApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	policy, err := aoi.ParseMergePolicy(cfg.Alerts.MergePolicy)
	if err != nil {
		return nil, err
	}

	b, err := backend.NewBackendFromConfig(cfg.Backend, clock)
	if err != nil {
		return nil, fmt.Errorf("creating backend: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.ClientID, clock)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	arch, err := archive.NewArchiveFromConfig(ctx, cfg.Archive)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := clock.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, cfg.Log.Level, console)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	opts := aoi.Options{
		Fetcher: aoi.FetcherOptions{
			MaxConcurrency: cfg.Alerts.MaxConcurrency,
			Policy:         policy,
		},
		RecentWindow:  time.Duration(cfg.Alerts.RecentWindowHours) * time.Hour,
		MaxImageBytes: cfg.Archive.MaxImageBytes,
	}
	svc := aoi.NewAOIService(b, db, arch, enc, newZerologAdapter(logger, "service"), clock, opts)

	return &AOIApp{
		cfg:       cfg,
		db:        db,
		backend:   b,
		archive:   arch,
		encryptor: enc,
		service:   svc,
		op:        NewOperation(operation),
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for mutating commands.
func (a *AOIApp) persistOperation(params any) error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	a.op.SetParameters(params)
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// ListAOIs refreshes the AOI list and filters it. status is "all" or a status name.
func (a *AOIApp) ListAOIs(ctx context.Context, query, status string) ([]*aoi.AOI, error) {
	if status != "" && status != aoi.StatusAll && !aoi.Status(status).Valid() {
		return nil, fmt.Errorf("unknown status %q: want all or one of %v", status, aoi.Statuses)
	}
	return a.service.ListAOIs(ctx, query, status)
}

// GetAOI returns one AOI.
func (a *AOIApp) GetAOI(ctx context.Context, id string) (*aoi.AOI, error) {
	return a.service.GetAOI(ctx, id)
}

// CreateAOI builds a draft from spec and submits it.
func (a *AOIApp) CreateAOI(ctx context.Context, name string, spec AOISpec) (created *aoi.AOI, err error) {
	if err := a.persistOperation(map[string]any{"name": name, "spec": spec}); err != nil {
		return nil, err
	}
	defer func() { a.op.Record(err) }()

	d, err := spec.Draft(name)
	if err != nil {
		return nil, err
	}
	return a.service.CreateAOI(ctx, d)
}

// UpdateAOI applies a partial update.
func (a *AOIApp) UpdateAOI(ctx context.Context, id string, p aoi.Patch) (*aoi.AOI, error) {
	if err := a.persistOperation(map[string]any{"id": id}); err != nil {
		return nil, err
	}
	updated, err := a.service.UpdateAOI(ctx, id, p)
	return updated, a.op.Record(err)
}

// DeleteAOI deletes an AOI. alreadyGone reports a backend 404.
func (a *AOIApp) DeleteAOI(ctx context.Context, id string) (alreadyGone bool, err error) {
	if err := a.persistOperation(map[string]any{"id": id}); err != nil {
		return false, err
	}
	gone, err := a.service.DeleteAOI(ctx, id)
	return gone, a.op.Record(err)
}

// Apply creates every resource in order. A failing resource is reported in
// its result and does not stop the rest.
func (a *AOIApp) Apply(ctx context.Context, resources []Resource) ([]ApplyResult, error) {
	names := make([]string, len(resources))
	for i, r := range resources {
		names[i] = r.Metadata.Name
	}
	if err := a.persistOperation(map[string]any{"names": names}); err != nil {
		return nil, err
	}

	results := make([]ApplyResult, len(resources))
	failed := 0
	for i, r := range resources {
		results[i].Name = r.Metadata.Name
		d, err := r.Draft()
		if err == nil {
			var created *aoi.AOI
			created, err = a.service.CreateAOI(ctx, d)
			if err == nil {
				results[i].ID = created.ID
			}
		}
		if err != nil {
			results[i].Err = err
			failed++
			a.logger.Warn().Err(err).Str("name", r.Metadata.Name).Msg("apply failed")
		}
	}
	if failed > 0 {
		a.op.Record(fmt.Errorf("%d of %d resources failed", failed, len(resources)))
	}
	return results, nil
}

// GetAlerts returns the resolved alerts of an AOI. Fetch failures yield an empty list.
func (a *AOIApp) GetAlerts(ctx context.Context, aoiID string) []aoi.ResolvedAlert {
	return a.service.GetAlerts(ctx, aoiID)
}

// WatchAlerts reloads the alerts of an AOI every interval until ctx is done,
// rendering the view's current alerts after each load that is applied.
// A load that outlives the next tick is superseded.
func (a *AOIApp) WatchAlerts(ctx context.Context, aoiID string, interval time.Duration, render func([]aoi.ResolvedAlert)) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive")
	}
	view := a.service.NewAlertView()
	defer view.Stop()

	updated := make(chan struct{}, 1)
	load := func() {
		go func() {
			if _, applied := view.Load(ctx, aoiID); !applied {
				return
			}
			select {
			case updated <- struct{}{}:
			default:
			}
		}()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	load()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-updated:
			if ctx.Err() != nil {
				return nil
			}
			_, alerts := view.Current()
			render(alerts)
		case <-ticker.C:
			load()
		}
	}
}

// ArchiveAlerts downloads and stores every not yet archived thumbnail of an AOI.
func (a *AOIApp) ArchiveAlerts(ctx context.Context, aoiID string) (*aoi.ArchiveReport, error) {
	if err := a.persistOperation(map[string]any{"aoi_id": aoiID}); err != nil {
		return nil, err
	}
	report, err := a.service.ArchiveAlerts(ctx, aoiID)
	return report, a.op.Record(err)
}

// ListArchivedThumbnails returns the archive index entries of an AOI.
func (a *AOIApp) ListArchivedThumbnails(aoiID string) ([]*aoi.ArchivedThumbnail, error) {
	return a.service.ListArchivedThumbnails(aoiID)
}

// ExportThumbnail writes an archived thumbnail to outPath. passphrase is
// called only when the entry is encrypted. The output file appears only after
// the checksum has been verified.
func (a *AOIApp) ExportThumbnail(ctx context.Context, alertID, kind, outPath string, passphrase func() (string, error)) error {
	k, err := aoi.ParseThumbnailKind(kind)
	if err != nil {
		return err
	}

	rec, err := a.service.FindArchivedThumbnail(alertID, k)
	if err != nil {
		return err
	}

	var dctx aoi.DecryptionContext
	if rec.Encrypted {
		if a.encryptor == nil {
			return fmt.Errorf("%s is encrypted but no encryption is configured", rec.ArchiveKey)
		}
		pass, err := passphrase()
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		dctx, err = a.encryptor.Unlock(pass)
		if err != nil {
			return fmt.Errorf("unlocking private key: %w", err)
		}
	}

	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, ".aoi-export-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := a.service.ExportThumbnail(ctx, alertID, k, tmp, dctx); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("moving export into place: %w", err)
	}
	return nil
}

// Dashboard returns the summary statistics and the first few AOIs.
func (a *AOIApp) Dashboard(ctx context.Context) (*aoi.Dashboard, error) {
	return a.service.Dashboard(ctx)
}

// GetHistory returns the most recent recorded operations.
func (a *AOIApp) GetHistory(limit int) ([]*aoi.Operation, error) {
	return a.service.GetHistory(limit)
}

// metadataKey is where the database snapshot of a client lives in the archive.
func metadataKey(clientID string) string {
	return "metadata/" + clientID + "/aoi.db"
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, snapshots the DB,
// and stores the snapshot in the archive when one is configured.
// For non-persisted operations: just closes the database.
// Metrics are pushed in both cases when a Pushgateway is configured.
func (a *AOIApp) Close() error {
	var errs []error

	var tmpPath string
	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			errs = append(errs, fmt.Errorf("finishing operation: %w", err))
		}
		a.logger.Info().Str("operation", a.op.Operation).Str("status", a.op.Status).Msg("operation finished")

		if a.archive != nil {
			path, err := a.snapshotDatabase()
			if err != nil {
				errs = append(errs, err)
			}
			tmpPath = path
		}
	}

	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}

	if tmpPath != "" {
		if err := a.uploadMetadata(tmpPath); err != nil {
			errs = append(errs, err)
		}
		os.Remove(tmpPath)
	}

	if url := a.cfg.Metrics.PushgatewayURL; url != "" {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		if err := metrics.Push(ctx, url, a.cfg.Metrics.Job, a.op.Operation); err != nil {
			a.logger.Warn().Err(err).Msg("metrics push failed")
		}
		cancel()
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return errors.Join(errs...)
}

// snapshotDatabase writes a consistent copy of the DB to a temp file and returns its path.
func (a *AOIApp) snapshotDatabase() (string, error) {
	tmpFile, err := os.CreateTemp("", "aoi-db-backup-*.db")
	if err != nil {
		return "", fmt.Errorf("creating temp file for db backup: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	os.Remove(tmpPath)

	if err := a.db.BackupTo(tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}

// uploadMetadata stores the DB snapshot in the archive.
func (a *AOIApp) uploadMetadata(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening db backup for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db backup: %w", err)
	}

	key := metadataKey(a.cfg.ClientID)
	if err := a.archive.Put(context.Background(), key, f, info.Size()); err != nil {
		return fmt.Errorf("uploading %s to archive: %w", key, err)
	}
	return nil
}
