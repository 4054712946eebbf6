package aoi_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aoi-go/internal/aoi"
	"aoi-go/internal/encryption"
	"aoi-go/internal/testutil"
)

func TestAOIService_ArchiveAlerts(t *testing.T) {
	ctx := context.Background()
	m, aoiID, ids := seedMemory(t, 2)
	arch := testutil.NewTestArchive()
	svc, _ := newTestService(t, m, arch, nil, aoi.Options{})

	report, err := svc.ArchiveAlerts(ctx, aoiID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Alerts)
	assert.Equal(t, 4, report.Archived)
	assert.Zero(t, report.Skipped)

	wantKeys := []string{
		aoi.ThumbnailKey(aoiID, ids[0], aoi.ThumbnailAfter),
		aoi.ThumbnailKey(aoiID, ids[0], aoi.ThumbnailBefore),
		aoi.ThumbnailKey(aoiID, ids[1], aoi.ThumbnailAfter),
		aoi.ThumbnailKey(aoiID, ids[1], aoi.ThumbnailBefore),
	}
	for _, k := range wantKeys {
		assert.Contains(t, arch.Keys(), k)
	}
	stored, ok := arch.Object(wantKeys[1])
	require.True(t, ok)
	assert.Equal(t, []byte("img-"+ids[0]+"-before"), stored)

	rec, err := svc.FindArchivedThumbnail(ids[0], aoi.ThumbnailBefore)
	require.NoError(t, err)
	assert.False(t, rec.Encrypted)
	assert.Equal(t, testutil.SHA256Hex([]byte("img-"+ids[0]+"-before")), rec.Checksum)

	again, err := svc.ArchiveAlerts(ctx, aoiID)
	require.NoError(t, err)
	assert.Zero(t, again.Archived)
	assert.Equal(t, 4, again.Skipped)

	listed, err := svc.ListArchivedThumbnails(aoiID)
	require.NoError(t, err)
	assert.Len(t, listed, 4)
}

func TestAOIService_ArchiveAlertsEncrypted(t *testing.T) {
	ctx := context.Background()
	m, aoiID, ids := seedMemory(t, 1)
	arch := testutil.NewTestArchive()
	enc := testutil.NewTestEncryptor()
	svc, _ := newTestService(t, m, arch, enc, aoi.Options{})

	_, err := svc.ArchiveAlerts(ctx, aoiID)
	require.NoError(t, err)

	key := aoi.ThumbnailKey(aoiID, ids[0], aoi.ThumbnailAfter)
	plain := []byte("img-" + ids[0] + "-after")
	stored, ok := arch.Object(key)
	require.True(t, ok)
	assert.NotEqual(t, plain, stored)

	t.Run("export with passphrase", func(t *testing.T) {
		dctx, err := enc.Unlock("secret")
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, svc.ExportThumbnail(ctx, ids[0], aoi.ThumbnailAfter, &out, dctx))
		assert.Equal(t, plain, out.Bytes())
	})

	t.Run("export without passphrase", func(t *testing.T) {
		var out bytes.Buffer
		err := svc.ExportThumbnail(ctx, ids[0], aoi.ThumbnailAfter, &out, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "passphrase required")
		assert.Zero(t, out.Len())
	})

	t.Run("tampered object", func(t *testing.T) {
		var tampered bytes.Buffer
		require.NoError(t, enc.Encrypt(strings.NewReader("something else"), &tampered))
		require.NoError(t, arch.Put(ctx, key, &tampered, int64(tampered.Len())))

		var out bytes.Buffer
		err := svc.ExportThumbnail(ctx, ids[0], aoi.ThumbnailAfter, &out, encryption.TestDecryptionContext{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checksum mismatch")
	})
}

func TestAOIService_ArchiveAlertsErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no archive", func(t *testing.T) {
		m, aoiID, _ := seedMemory(t, 1)
		svc, _ := newTestService(t, m, nil, nil, aoi.Options{})

		_, err := svc.ArchiveAlerts(ctx, aoiID)
		assert.Error(t, err)
		assert.Error(t, svc.ExportThumbnail(ctx, "x", aoi.ThumbnailBefore, &bytes.Buffer{}, nil))
	})

	t.Run("image too large", func(t *testing.T) {
		m, aoiID, _ := seedMemory(t, 1)
		arch := testutil.NewTestArchive()
		svc, _ := newTestService(t, m, arch, nil, aoi.Options{MaxImageBytes: 4})

		_, err := svc.ArchiveAlerts(ctx, aoiID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds 4 bytes")
		assert.Empty(t, arch.Keys())
	})

	t.Run("fetch failure is reported", func(t *testing.T) {
		m, aoiID, ids := seedMemory(t, 1)
		m.FailThumbnail(ids[0], aoi.ThumbnailBefore, &aoi.BackendError{Op: "resolve thumbnail", StatusCode: 500})
		svc, _ := newTestService(t, m, testutil.NewTestArchive(), nil, aoi.Options{})

		_, err := svc.ArchiveAlerts(ctx, aoiID)
		var be *aoi.BackendError
		assert.True(t, errors.As(err, &be))
	})

	t.Run("never archived", func(t *testing.T) {
		m, _, _ := seedMemory(t, 1)
		svc, _ := newTestService(t, m, testutil.NewTestArchive(), nil, aoi.Options{})

		_, err := svc.FindArchivedThumbnail("missing", aoi.ThumbnailAfter)
		assert.ErrorIs(t, err, aoi.ErrNotFound)
	})
}
