package aoi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"aoi-go/internal/metrics"
)

// DefaultMaxImageBytes caps a single downloaded thumbnail.
const DefaultMaxImageBytes = 20 << 20

// ArchiveReport summarizes one ArchiveAlerts run.
type ArchiveReport struct {
	Alerts   int
	Archived int
	Skipped  int
	Bytes    int64
}

// ArchiveAlerts resolves the alerts of an AOI and saves every thumbnail image
// not already archived. Unlike GetAlerts, a failed fetch is returned, because
// the caller asked for the images explicitly.
func (s *AOIService) ArchiveAlerts(ctx context.Context, aoiID string) (*ArchiveReport, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("no archive configured")
	}

	alerts, err := s.fetcher.Fetch(ctx, aoiID)
	if err != nil {
		return nil, fmt.Errorf("fetching alerts: %w", err)
	}

	report := &ArchiveReport{Alerts: len(alerts)}
	for i := range alerts {
		alert := &alerts[i]
		for _, kind := range ThumbnailKinds {
			url := alert.URL(kind)
			if url == "" {
				report.Skipped++
				continue
			}

			existing, err := s.database.FindArchivedThumbnail(alert.ID, kind)
			if err != nil {
				return report, fmt.Errorf("checking archive index: %w", err)
			}
			if existing != nil {
				report.Skipped++
				continue
			}

			rec, err := s.archiveThumbnail(ctx, aoiID, alert.ID, kind, url)
			if err != nil {
				return report, err
			}
			report.Archived++
			report.Bytes += rec.Size
		}
	}

	s.logger.Info("thumbnails archived", "aoi_id", aoiID, "archived", report.Archived, "skipped", report.Skipped, "bytes", report.Bytes)
	return report, nil
}

func (s *AOIService) archiveThumbnail(ctx context.Context, aoiID, alertID string, kind ThumbnailKind, url string) (*ArchivedThumbnail, error) {
	rc, err := s.backend.FetchImage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("downloading %s thumbnail of alert %s: %w", kind, alertID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s thumbnail of alert %s: %w", kind, alertID, err)
	}
	if int64(len(data)) > s.maxImageBytes {
		return nil, fmt.Errorf("%s thumbnail of alert %s exceeds %d bytes", kind, alertID, s.maxImageBytes)
	}

	sum := sha256.Sum256(data)
	payload := data
	encrypted := false
	if s.encryptor != nil {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return nil, fmt.Errorf("encrypting thumbnail: %w", err)
		}
		payload = buf.Bytes()
		encrypted = true
	}

	key := ThumbnailKey(aoiID, alertID, kind)
	if err := s.archive.Put(ctx, key, bytes.NewReader(payload), int64(len(payload))); err != nil {
		return nil, fmt.Errorf("storing %s: %w", key, err)
	}

	rec := &ArchivedThumbnail{
		AlertID:    alertID,
		Kind:       kind,
		AOIID:      aoiID,
		ArchiveKey: key,
		Checksum:   hex.EncodeToString(sum[:]),
		Size:       int64(len(data)),
		Encrypted:  encrypted,
		ArchivedAt: s.clock.Now(),
	}
	if err := s.database.RecordArchivedThumbnail(rec); err != nil {
		return nil, fmt.Errorf("recording %s: %w", key, err)
	}

	metrics.ThumbnailsArchivedTotal.Inc()
	metrics.ArchiveBytesTotal.Add(float64(len(payload)))
	s.logger.Debug("thumbnail archived", "key", key, "size", rec.Size, "encrypted", encrypted)
	return rec, nil
}

// FindArchivedThumbnail returns the index entry for one thumbnail, or a
// NotFoundError if it was never archived.
func (s *AOIService) FindArchivedThumbnail(alertID string, kind ThumbnailKind) (*ArchivedThumbnail, error) {
	rec, err := s.database.FindArchivedThumbnail(alertID, kind)
	if err != nil {
		return nil, fmt.Errorf("checking archive index: %w", err)
	}
	if rec == nil {
		return nil, &NotFoundError{Op: "find archived thumbnail", Resource: "archived thumbnail", ID: alertID + "/" + string(kind)}
	}
	return rec, nil
}

// ListArchivedThumbnails returns the archive index entries of an AOI.
func (s *AOIService) ListArchivedThumbnails(aoiID string) ([]*ArchivedThumbnail, error) {
	return s.database.ListArchivedThumbnails(aoiID)
}

// ExportThumbnail writes an archived image to w, decrypting it when needed and
// verifying its checksum. decrypt may be nil for plaintext entries.
func (s *AOIService) ExportThumbnail(ctx context.Context, alertID string, kind ThumbnailKind, w io.Writer, decrypt DecryptionContext) error {
	if s.archive == nil {
		return fmt.Errorf("no archive configured")
	}

	rec, err := s.FindArchivedThumbnail(alertID, kind)
	if err != nil {
		return err
	}

	var stored bytes.Buffer
	if err := s.archive.Get(ctx, rec.ArchiveKey, &stored); err != nil {
		return fmt.Errorf("reading %s: %w", rec.ArchiveKey, err)
	}

	plain := stored.Bytes()
	if rec.Encrypted {
		if decrypt == nil {
			return fmt.Errorf("%s is encrypted: passphrase required", rec.ArchiveKey)
		}
		var out bytes.Buffer
		if err := decrypt.Decrypt(&stored, &out); err != nil {
			return fmt.Errorf("decrypting %s: %w", rec.ArchiveKey, err)
		}
		plain = out.Bytes()
	}

	sum := sha256.Sum256(plain)
	if got := hex.EncodeToString(sum[:]); got != rec.Checksum {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", rec.ArchiveKey, got, rec.Checksum)
	}

	if _, err := w.Write(plain); err != nil {
		return fmt.Errorf("writing thumbnail: %w", err)
	}
	return nil
}
