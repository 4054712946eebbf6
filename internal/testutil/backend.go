package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// FakeBackend is an httptest server speaking the change-detection service's
// JSON API. Documents are kept in wire form so tests exercise real decoding.
type FakeBackend struct {
	Server *httptest.Server

	mu        sync.Mutex
	ids       *StubIDGenerator
	clock     *StubClock
	token     string
	aois      []map[string]any
	alerts    map[string][]map[string]any // aoi id -> change documents
	images    map[string][]byte           // alertID/kind -> bytes
	failures  map[string]int              // route key -> forced status
	delays    map[string]time.Duration    // route key -> latency
	requests  map[string]int              // route pattern -> count
	lastQuery map[string]url.Values       // route pattern -> last query
	lastBody  map[string]map[string]any   // route pattern -> last decoded body
}

// NewFakeBackend starts a fake service that is shut down with the test.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		ids:       NewStubIDGenerator("id"),
		clock:     FixedClock(),
		alerts:    make(map[string][]map[string]any),
		images:    make(map[string][]byte),
		failures:  make(map[string]int),
		delays:    make(map[string]time.Duration),
		requests:  make(map[string]int),
		lastQuery: make(map[string]url.Values),
		lastBody:  make(map[string]map[string]any),
	}
	f.Server = httptest.NewServer(f.routes())
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the service base URL.
func (f *FakeBackend) URL() string { return f.Server.URL }

// RequireToken makes every /aois request demand "Bearer <token>".
func (f *FakeBackend) RequireToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// AddAOI stores an AOI document with the PolygonFeature geometry and returns its id.
func (f *FakeBackend) AddAOI(name, changeType, status string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.ids.New()
	f.aois = append(f.aois, map[string]any{
		"_id":                 id,
		"name":                name,
		"geojson":             json.RawMessage(PolygonFeature),
		"changeType":          changeType,
		"monitoringFrequency": "weekly",
		"confidenceThreshold": 60,
		"emailAlerts":         true,
		"inAppNotifications":  true,
		"description":         nil,
		"status":              status,
		"createdAt":           fastAPITime(f.clock.Now()),
		"lastMonitored":       nil,
	})
	return id
}

// AddRawAOI stores an arbitrary document, e.g. one with a malformed shape.
func (f *FakeBackend) AddRawAOI(doc map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aois = append(f.aois, doc)
}

// AddAlert appends a change document to an AOI and returns the alert id.
// The fake serves images for both thumbnails of every alert.
func (f *FakeBackend) AddAlert(aoiID string, detected time.Time, area float64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.ids.New()
	f.alerts[aoiID] = append(f.alerts[aoiID], map[string]any{
		"_id":            id,
		"aoi_id":         aoiID,
		"user_id":        "user-1",
		"detection_date": fastAPITime(detected),
		"area_of_change": area,
		"status":         "new",
	})
	for _, kind := range []string{"before", "after"} {
		f.images[id+"/"+kind] = []byte(fmt.Sprintf("image:%s:%s", id, kind))
	}
	return id
}

// Image returns the bytes served for an alert thumbnail.
func (f *FakeBackend) Image(alertID, kind string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[alertID+"/"+kind]
}

// Fail forces status on a route key. Keys are "list", "create", "get:<id>",
// "update:<id>", "delete:<id>", "changes:<aoiID>", "thumbnail:<alertID>:<kind>"
// and "image:<alertID>:<kind>".
func (f *FakeBackend) Fail(key string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key] = status
}

// Delay adds latency to a route key (see Fail). The handler returns early
// when the client goes away.
func (f *FakeBackend) Delay(key string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[key] = d
}

// Requests returns how many requests matched a chi route pattern, e.g. "/aois/{id}/thumbnail".
func (f *FakeBackend) Requests(pattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[pattern]
}

// LastQuery returns the query string of the latest request on a route pattern.
func (f *FakeBackend) LastQuery(pattern string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery[pattern]
}

// LastBody returns the decoded JSON body of the latest request on a route pattern.
func (f *FakeBackend) LastBody(pattern string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody[pattern]
}

// AOICount returns the number of stored AOIs.
func (f *FakeBackend) AOICount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.aois)
}

func (f *FakeBackend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(f.record)
	r.Route("/aois", func(r chi.Router) {
		r.Use(f.auth)
		r.Get("/", f.listAOIs)
		r.Post("/", f.createAOI)
		r.Get("/{id}", f.getAOI)
		r.Put("/{id}", f.updateAOI)
		r.Delete("/{id}", f.deleteAOI)
		r.Get("/{id}/changes", f.listChanges)
		r.Get("/{id}/thumbnail", f.thumbnail)
	})
	r.Get("/images/{alertID}/{kind}", f.image)
	return r
}

// record counts requests per route pattern once routing has resolved it.
func (f *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
			data, _ := io.ReadAll(r.Body)
			r.Body.Close()
			_ = json.Unmarshal(data, &body)
			r.Body = io.NopCloser(strings.NewReader(string(data)))
		}

		next.ServeHTTP(w, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		f.mu.Lock()
		f.requests[pattern]++
		f.lastQuery[pattern] = r.URL.Query()
		if body != nil {
			f.lastBody[pattern] = body
		}
		f.mu.Unlock()
	})
}

func (f *FakeBackend) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		token := f.token
		f.mu.Unlock()
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// intercept applies injected latency and failures for key. It reports
// whether the response has already been written.
func (f *FakeBackend) intercept(w http.ResponseWriter, r *http.Request, key string) bool {
	f.mu.Lock()
	delay := f.delays[key]
	status, failing := f.failures[key]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return true
		}
	}
	if failing {
		writeDetail(w, status, http.StatusText(status))
		return true
	}
	return false
}

func (f *FakeBackend) indexOf(id string) int {
	for i, doc := range f.aois {
		if doc["_id"] == id {
			return i
		}
	}
	return -1
}

func (f *FakeBackend) listAOIs(w http.ResponseWriter, r *http.Request) {
	if f.intercept(w, r, "list") {
		return
	}
	f.mu.Lock()
	docs := append([]map[string]any{}, f.aois...)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, docs)
}

func (f *FakeBackend) getAOI(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if f.intercept(w, r, "get:"+id) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "AOI not found")
		return
	}
	writeJSON(w, http.StatusOK, f.aois[i])
}

func (f *FakeBackend) createAOI(w http.ResponseWriter, r *http.Request) {
	if f.intercept(w, r, "create") {
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var missing []map[string]any
	for _, field := range []string{"name", "geojson", "changeType", "monitoringFrequency", "confidenceThreshold"} {
		if v, ok := body[field]; !ok || v == nil {
			missing = append(missing, map[string]any{
				"loc":  []any{"body", field},
				"msg":  "field required",
				"type": "value_error.missing",
			})
		}
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": missing})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	doc := make(map[string]any, len(body)+4)
	for k, v := range body {
		doc[k] = v
	}
	doc["_id"] = f.ids.New()
	doc["userId"] = "user-1"
	doc["createdAt"] = fastAPITime(f.clock.Now())
	doc["lastMonitored"] = nil
	f.aois = append(f.aois, doc)
	writeJSON(w, http.StatusOK, doc)
}

func (f *FakeBackend) updateAOI(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if f.intercept(w, r, "update:"+id) {
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "AOI not found")
		return
	}
	for k, v := range body {
		if v != nil {
			f.aois[i][k] = v
		}
	}
	writeJSON(w, http.StatusOK, f.aois[i])
}

func (f *FakeBackend) deleteAOI(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if f.intercept(w, r, "delete:"+id) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(id)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "AOI not found")
		return
	}
	f.aois = append(f.aois[:i], f.aois[i+1:]...)
	delete(f.alerts, id)
	writeJSON(w, http.StatusOK, map[string]any{"message": "AOI deleted successfully"})
}

func (f *FakeBackend) listChanges(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if f.intercept(w, r, "changes:"+id) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexOf(id) < 0 {
		writeDetail(w, http.StatusNotFound, "AOI not found")
		return
	}
	docs := f.alerts[id]
	if docs == nil {
		docs = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (f *FakeBackend) thumbnail(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")
	kind := r.URL.Query().Get("type")
	if kind != "before" && kind != "after" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]any{
			{"loc": []any{"query", "type"}, "msg": `string does not match regex "^(before|after)$"`},
		}})
		return
	}
	if f.intercept(w, r, "thumbnail:"+alertID+":"+kind) {
		return
	}

	f.mu.Lock()
	_, ok := f.images[alertID+"/"+kind]
	f.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Change not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url": f.Server.URL + "/images/" + alertID + "/" + kind,
	})
}

func (f *FakeBackend) image(w http.ResponseWriter, r *http.Request) {
	alertID, kind := chi.URLParam(r, "alertID"), chi.URLParam(r, "kind")
	if f.intercept(w, r, "image:"+alertID+":"+kind) {
		return
	}
	f.mu.Lock()
	data, ok := f.images[alertID+"/"+kind]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// fastAPITime formats t the way datetime.isoformat() does for a naive UTC value.
func fastAPITime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000")
}
