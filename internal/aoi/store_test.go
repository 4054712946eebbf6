package aoi_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aoi-go/internal/aoi"
	"aoi-go/internal/geometry"
	"aoi-go/internal/testutil"
)

func TestStore_ListReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeBackend(t)
	fake.AddAOI("One", "deforestation", "active")
	store := aoi.NewStore(httpBackend(t, fake), aoi.NewNopLogger())

	assert.Empty(t, store.Snapshot())

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	fake.AddAOI("Two", "waterbody", "pending")
	got, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Two", got[1].Name)
	assert.Equal(t, 2, fake.Requests("/aois/"), "every List is a fresh fetch")
}

func TestStore_ListFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeBackend(t)
	fake.AddAOI("One", "deforestation", "active")
	store := aoi.NewStore(httpBackend(t, fake), aoi.NewNopLogger())

	_, err := store.List(ctx)
	require.NoError(t, err)

	fake.Fail("list", http.StatusInternalServerError)
	got, err := store.List(ctx)
	require.Error(t, err)
	assert.Nil(t, got)

	var be *aoi.BackendError
	assert.True(t, errors.As(err, &be))
	assert.Len(t, store.Snapshot(), 1, "previous snapshot survives a failed refresh")
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeBackend(t)
	fake.AddAOI("One", "deforestation", "active")
	store := aoi.NewStore(httpBackend(t, fake), aoi.NewNopLogger())
	_, err := store.List(ctx)
	require.NoError(t, err)

	snap := store.Snapshot()
	snap[0] = nil
	assert.NotNil(t, store.Snapshot()[0])
}

func TestStore_CreateValidatesLocally(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeBackend(t)
	store := aoi.NewStore(httpBackend(t, fake), aoi.NewNopLogger())

	tests := []struct {
		name   string
		mutate func(d *aoi.Draft)
		field  string
	}{
		{name: "blank name", mutate: func(d *aoi.Draft) { d.Name = "   " }, field: "name"},
		{name: "no geometry", mutate: func(d *aoi.Draft) { d.Geometry = nil }, field: "geometry"},
		{name: "zero geometry", mutate: func(d *aoi.Draft) { d.Geometry = &geometry.Shape{} }, field: "geometry"},
		{name: "threshold off step", mutate: func(d *aoi.Draft) { d.ConfidenceThreshold = 65 }, field: "confidenceThreshold"},
		{name: "unknown change type", mutate: func(d *aoi.Draft) { d.ChangeType = "volcanic" }, field: "changeType"},
		{name: "unknown frequency", mutate: func(d *aoi.Draft) { d.MonitoringFrequency = "hourly" }, field: "monitoringFrequency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testutil.TestDraft(t, "Valid")
			tt.mutate(&d)

			_, err := store.Create(ctx, d)
			var ve *aoi.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.True(t, ve.Local())
			require.NotEmpty(t, ve.Problems)
			assert.Equal(t, tt.field, ve.Problems[0].Field)
		})
	}

	assert.Zero(t, fake.Requests("/aois/"), "a rejected draft never reaches the backend")
	assert.Zero(t, fake.AOICount())
}

func TestStore_CreateDoesNotTouchSnapshot(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeBackend(t)
	store := aoi.NewStore(httpBackend(t, fake), aoi.NewNopLogger())

	created, err := store.Create(ctx, testutil.TestDraft(t, "New"))
	require.NoError(t, err)
	assert.Equal(t, aoi.StatusActive, created.Status)
	assert.Empty(t, store.Snapshot())

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)
}

func TestStore_CreateSurfacesBackendDetail(t *testing.T) {
	fake := testutil.NewFakeBackend(t)
	fake.Fail("create", http.StatusBadRequest)
	store := aoi.NewStore(httpBackend(t, fake), aoi.NewNopLogger())

	_, err := store.Create(context.Background(), testutil.TestDraft(t, "New"))
	var ve *aoi.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.False(t, ve.Local())
	assert.Equal(t, "Bad Request", ve.Detail)
}

func TestStore_UpdateReplacesEntry(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeBackend(t)
	id := fake.AddAOI("Old", "deforestation", "active")
	store := aoi.NewStore(httpBackend(t, fake), aoi.NewNopLogger())
	_, err := store.List(ctx)
	require.NoError(t, err)

	name := "Renamed"
	_, err = store.Update(ctx, id, aoi.Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", store.Snapshot()[0].Name)

	_, err = store.Update(ctx, id, aoi.Patch{})
	var ve *aoi.ValidationError
	assert.True(t, errors.As(err, &ve), "an empty patch is rejected locally")
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes after success", func(t *testing.T) {
		fake := testutil.NewFakeBackend(t)
		keep := fake.AddAOI("Keep", "deforestation", "active")
		drop := fake.AddAOI("Drop", "deforestation", "active")
		store := aoi.NewStore(httpBackend(t, fake), aoi.NewNopLogger())
		_, err := store.List(ctx)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, drop))
		snap := store.Snapshot()
		require.Len(t, snap, 1)
		assert.Equal(t, keep, snap[0].ID)
	})

	t.Run("a fresh list no longer includes the id", func(t *testing.T) {
		fake := testutil.NewFakeBackend(t)
		keep := fake.AddAOI("Keep", "deforestation", "active")
		drop := fake.AddAOI("Drop", "waterbody", "pending")
		store := aoi.NewStore(httpBackend(t, fake), aoi.NewNopLogger())
		_, err := store.List(ctx)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, drop))
		got, err := store.List(ctx)
		require.NoError(t, err)
		for _, a := range got {
			assert.NotEqual(t, drop, a.ID)
		}
		require.Len(t, got, 1)
		assert.Equal(t, keep, got[0].ID)
	})

	t.Run("404 removes locally and reports not found", func(t *testing.T) {
		fake := testutil.NewFakeBackend(t)
		id := fake.AddAOI("Gone", "deforestation", "active")
		store := aoi.NewStore(httpBackend(t, fake), aoi.NewNopLogger())
		_, err := store.List(ctx)
		require.NoError(t, err)

		fake.Fail("delete:"+id, http.StatusNotFound)
		err = store.Delete(ctx, id)
		assert.True(t, errors.Is(err, aoi.ErrNotFound))
		assert.Empty(t, store.Snapshot())
	})

	t.Run("other failures keep the entry", func(t *testing.T) {
		fake := testutil.NewFakeBackend(t)
		id := fake.AddAOI("Stuck", "deforestation", "active")
		store := aoi.NewStore(httpBackend(t, fake), aoi.NewNopLogger())
		_, err := store.List(ctx)
		require.NoError(t, err)

		fake.Fail("delete:"+id, http.StatusServiceUnavailable)
		err = store.Delete(ctx, id)
		require.Error(t, err)
		assert.False(t, errors.Is(err, aoi.ErrNotFound))
		assert.Len(t, store.Snapshot(), 1)
	})
}
