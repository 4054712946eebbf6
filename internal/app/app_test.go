package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aoi-go/internal/aoi"
	"aoi-go/internal/archive"
	"aoi-go/internal/backend"
	"aoi-go/internal/config"
	"aoi-go/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig("client-1", base)
	cfg.Backend = config.BackendConfig{Type: "memory"}
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Archive = config.ArchiveConfig{Type: "memory"}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, operation string) *AOIApp {
	t.Helper()
	a, err := newAOIApp(context.Background(), cfg, operation, &bytes.Buffer{}, testutil.FixedClock())
	require.NoError(t, err)
	return a
}

func bbox(t *testing.T) AOISpec {
	t.Helper()
	return AOISpec{BBox: []float64{-60, -3.1, -59.99, -3.09}}
}

func TestNewAOIApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alerts.MergePolicy = "sometimes"

	_, err := newAOIApp(context.Background(), cfg, "ListAOIs", &bytes.Buffer{}, testutil.FixedClock())
	assert.Error(t, err)
}

func TestAOIApp_CreateListDelete(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t), "CreateAOI")

	created, err := a.CreateAOI(ctx, "  Forest  ", bbox(t))
	require.NoError(t, err)
	assert.Equal(t, "Forest", created.Name)
	assert.Equal(t, aoi.StatusActive, created.Status)

	list, err := a.ListAOIs(ctx, "for", "all")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = a.ListAOIs(ctx, "", "paused")
	assert.Error(t, err)

	gone, err := a.DeleteAOI(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, gone)

	require.NoError(t, a.Close())
}

func TestAOIApp_CreateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t), "CreateAOI")
	defer a.Close()

	threshold := 35
	_, err := a.CreateAOI(ctx, "Forest", AOISpec{BBox: []float64{0, 0, 1, 1}, ConfidenceThreshold: &threshold})
	var ve *aoi.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Local())
	assert.Equal(t, "error", a.op.Status)
}

func TestAOIApp_CloseRecordsOperation(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a := newTestApp(t, cfg, "CreateAOI")
	arch := a.archive.(*archive.MemoryArchive)

	_, err := a.CreateAOI(ctx, "Forest", bbox(t))
	require.NoError(t, err)
	require.True(t, a.op.Persisted())

	ops, err := a.GetHistory(10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "running", ops[0].Status)
	assert.Contains(t, ops[0].Parameters, `"name":"Forest"`)

	require.NoError(t, a.Close())

	snapshot, ok := arch.Object(metadataKey("client-1"))
	require.True(t, ok, "database snapshot stored in archive")
	assert.True(t, bytes.HasPrefix(snapshot, []byte("SQLite format 3")))

	data, err := os.ReadFile(filepath.Join(cfg.LogDir, "aoi.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"op_id":"20250601T120000Z"`)
}

func TestAOIApp_ReadOnlyCommandDoesNotPersist(t *testing.T) {
	a := newTestApp(t, testConfig(t), "ListAOIs")
	arch := a.archive.(*archive.MemoryArchive)

	_, err := a.ListAOIs(context.Background(), "", "")
	require.NoError(t, err)
	assert.False(t, a.op.Persisted())

	require.NoError(t, a.Close())
	assert.Empty(t, arch.Keys())
}

func TestAOIApp_Apply(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t), "Apply")
	defer a.Close()

	resources, err := ParseResources(strings.NewReader(`
kind: AOI
metadata:
  name: Forest
spec:
  bbox: [-60, -3.1, -59.99, -3.09]
---
kind: AOI
metadata:
  name: Broken
spec:
  bbox: [1, 2]
---
kind: AOI
metadata:
  name: Harbor
spec:
  changeType: construction
  bbox: [10, 10, 10.01, 10.01]
`))
	require.NoError(t, err)

	results, err := a.Apply(ctx, resources)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.NotEmpty(t, results[0].ID)
	assert.Error(t, results[1].Err)
	assert.Empty(t, results[1].ID)
	assert.NoError(t, results[2].Err)

	list, err := a.ListAOIs(ctx, "construction", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Harbor", list[0].Name)
	assert.Equal(t, "error", a.op.Status)
}

func TestAOIApp_ArchiveAndExport(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t), "ArchiveAlerts")
	defer a.Close()

	created, err := a.CreateAOI(ctx, "Forest", bbox(t))
	require.NoError(t, err)

	mem := a.backend.(*backend.MemoryBackend)
	alertID, err := mem.AddAlert(aoi.ChangeAlert{AOIID: created.ID, DetectionDate: testutil.FixedClock().Now(), AreaOfChange: 10})
	require.NoError(t, err)
	mem.SetImage(alertID, aoi.ThumbnailBefore, []byte("before-png"))
	mem.SetImage(alertID, aoi.ThumbnailAfter, []byte("after-png"))

	report, err := a.ArchiveAlerts(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Archived)

	entries, err := a.ListArchivedThumbnails(created.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Encrypted)

	out := filepath.Join(t.TempDir(), "after.png")
	asked := false
	err = a.ExportThumbnail(ctx, alertID, "after", out, func() (string, error) {
		asked = true
		return "secret", nil
	})
	require.NoError(t, err)
	assert.True(t, asked)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "after-png", string(data))

	err = a.ExportThumbnail(ctx, alertID, "sideways", out, nil)
	assert.Error(t, err)

	err = a.ExportThumbnail(ctx, "missing", "before", filepath.Join(t.TempDir(), "x.png"), nil)
	assert.ErrorIs(t, err, aoi.ErrNotFound)
}

func TestAOIApp_WatchAlerts(t *testing.T) {
	a := newTestApp(t, testConfig(t), "WatchAlerts")
	defer a.Close()

	created, err := a.CreateAOI(context.Background(), "Forest", bbox(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	renders := 0
	err = a.WatchAlerts(ctx, created.ID, 10*time.Millisecond, func(alerts []aoi.ResolvedAlert) {
		assert.Empty(t, alerts)
		renders++
		if renders == 2 {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 2, renders)

	assert.Error(t, a.WatchAlerts(context.Background(), created.ID, 0, nil))
}

func TestAOIApp_WatchAlerts_RendersNewestState(t *testing.T) {
	a := newTestApp(t, testConfig(t), "WatchAlerts")
	defer a.Close()

	created, err := a.CreateAOI(context.Background(), "Forest", bbox(t))
	require.NoError(t, err)
	mem := a.backend.(*backend.MemoryBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var counts []int
	err = a.WatchAlerts(ctx, created.ID, 5*time.Millisecond, func(alerts []aoi.ResolvedAlert) {
		counts = append(counts, len(alerts))
		_, err := mem.AddAlert(aoi.ChangeAlert{AOIID: created.ID, DetectionDate: testutil.FixedClock().Now()})
		require.NoError(t, err)
		if len(counts) == 4 {
			cancel()
		}
	})
	require.NoError(t, err)
	require.Len(t, counts, 4)
	for i := 1; i < len(counts); i++ {
		if counts[i] < counts[i-1] {
			t.Errorf("render %d showed %d alerts after %d", i, counts[i], counts[i-1])
		}
	}
}

func TestAOIApp_ArchiveImageCap(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Archive.MaxImageBytes = 4
	a := newTestApp(t, cfg, "ArchiveAlerts")
	defer a.Close()

	created, err := a.CreateAOI(ctx, "Forest", bbox(t))
	require.NoError(t, err)
	mem := a.backend.(*backend.MemoryBackend)
	alertID, err := mem.AddAlert(aoi.ChangeAlert{AOIID: created.ID, DetectionDate: testutil.FixedClock().Now()})
	require.NoError(t, err)
	mem.SetImage(alertID, aoi.ThumbnailBefore, []byte("before-png"))
	mem.SetImage(alertID, aoi.ThumbnailAfter, []byte("after-png"))

	_, err = a.ArchiveAlerts(ctx, created.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 4 bytes")
}
