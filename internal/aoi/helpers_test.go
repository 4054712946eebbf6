package aoi_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aoi-go/internal/aoi"
	"aoi-go/internal/backend"
	"aoi-go/internal/config"
	"aoi-go/internal/testutil"
)

func httpBackend(t *testing.T, fake *testutil.FakeBackend) aoi.Backend {
	t.Helper()
	b, err := backend.NewHTTPBackend(config.BackendConfig{URL: fake.URL(), TimeoutSeconds: 5}, testutil.FixedClock())
	require.NoError(t, err)
	return b
}

// gatedBackend blocks ListAlerts for selected AOIs until released or canceled.
type gatedBackend struct {
	aoi.Backend
	started chan string

	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newGatedBackend(inner aoi.Backend) *gatedBackend {
	return &gatedBackend{Backend: inner, started: make(chan string, 16), gates: make(map[string]chan struct{})}
}

func (g *gatedBackend) gate(aoiID string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[aoiID] = ch
	return ch
}

func (g *gatedBackend) ListAlerts(ctx context.Context, aoiID string) ([]aoi.ChangeAlert, error) {
	g.mu.Lock()
	ch, ok := g.gates[aoiID]
	g.mu.Unlock()
	if ok {
		g.started <- aoiID
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, &aoi.NetworkError{Op: "list alerts", Err: ctx.Err()}
		}
	}
	return g.Backend.ListAlerts(ctx, aoiID)
}

// countingBackend records the peak number of concurrent thumbnail requests.
type countingBackend struct {
	aoi.Backend
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (c *countingBackend) ResolveThumbnail(ctx context.Context, alertID string, kind aoi.ThumbnailKind) (string, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	c.calls.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(c.delay)
	return c.Backend.ResolveThumbnail(ctx, alertID, kind)
}

// seedMemory creates one AOI with n alerts (detected one hour apart, newest first)
// and images for every thumbnail.
func seedMemory(t *testing.T, n int) (*backend.MemoryBackend, string, []string) {
	t.Helper()
	ctx := context.Background()
	clock := testutil.FixedClock()
	m := backend.NewMemoryBackend(testutil.NewStubIDGenerator("m"), clock)

	a, err := m.CreateAOI(ctx, testutil.TestDraft(t, "Forest"))
	require.NoError(t, err)

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := m.AddAlert(aoi.ChangeAlert{
			AOIID:         a.ID,
			DetectionDate: clock.Now().Add(-time.Duration(i) * time.Hour),
			AreaOfChange:  float64(100 * (i + 1)),
		})
		require.NoError(t, err)
		for _, kind := range aoi.ThumbnailKinds {
			m.SetImage(id, kind, []byte("img-"+id+"-"+string(kind)))
		}
		ids = append(ids, id)
	}
	return m, a.ID, ids
}

func newTestService(t *testing.T, b aoi.Backend, archive aoi.Archive, enc aoi.Encryptor, opts aoi.Options) (*aoi.AOIService, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	db := testutil.NewTestDatabase(t, clock)
	return aoi.NewAOIService(b, db, archive, enc, aoi.NewNopLogger(), clock, opts), clock
}
