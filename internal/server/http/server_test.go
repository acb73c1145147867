package httpserver

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/winlife/gamelytics/internal/analysis"
	"github.com/winlife/gamelytics/internal/ingest"
	"github.com/winlife/gamelytics/internal/schema"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := schema.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := ingest.AutoMigrate(db); err != nil {
		t.Fatalf("migrate events: %v", err)
	}
	schemas := schema.NewGormStore(db)
	events := ingest.NewEventStore(db)
	snapshots := ingest.NewSnapshotStore(db)
	router := ingest.NewRouter(schemas, events, snapshots, nil)
	svc := analysis.NewService(schemas, analysis.NewGormExecutor(db), nil)
	s := NewServer(cfg, schemas, events, snapshots, router, svc, nil)
	return s, s.Router()
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCollectSyncRoundTrip(t *testing.T) {
	_, r := newTestServer(t, Config{})

	// Install a schema, then collect a valid and an invalid event.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/schemas/events/login",
		strings.NewReader(`{"level":{"type":"integer","required":true}}`))
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("put schema: %d %s", w.Code, w.Body.String())
	}

	w = postJSON(t, r, "/api/data/event", map[string]any{
		"userId": "u1", "deviceId": "d1", "timestamp": 1000,
		"eventName": "login", "parameters": map[string]any{"level": 3},
	})
	if w.Code != 200 || !strings.Contains(w.Body.String(), "accepted") {
		t.Fatalf("valid event: %d %s", w.Code, w.Body.String())
	}

	w = postJSON(t, r, "/api/data/event", map[string]any{
		"userId": "u1", "timestamp": 2000,
		"eventName": "login", "parameters": map[string]any{"level": "three"},
	})
	if w.Code != 400 || !strings.Contains(w.Body.String(), "rejected") {
		t.Fatalf("invalid event: %d %s", w.Code, w.Body.String())
	}

	// Listings reflect the routing.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data/realtime", nil))
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"eventName":"login"`) {
		t.Fatalf("realtime listing: %d %s", w.Code, w.Body.String())
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data/errored", nil))
	if w.Code != 200 || !strings.Contains(w.Body.String(), "level") {
		t.Fatalf("errored listing: %d %s", w.Code, w.Body.String())
	}
}

func TestCollectDebugEvent(t *testing.T) {
	_, r := newTestServer(t, Config{})
	w := postJSON(t, r, "/api/data/event", map[string]any{
		"userId": "u1", "deviceId": "dbg-device", "timestamp": 1000,
		"eventName": "anything", "isDebug": true,
	})
	if w.Code != 200 || !strings.Contains(w.Body.String(), "debug") {
		t.Fatalf("debug event: %d %s", w.Code, w.Body.String())
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data/debug?deviceId=dbg-device", nil))
	if w.Code != 200 || !strings.Contains(w.Body.String(), "anything") {
		t.Fatalf("debug listing: %d %s", w.Code, w.Body.String())
	}
	// The main store stays empty.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data/realtime", nil))
	if strings.Contains(w.Body.String(), "anything") {
		t.Fatalf("debug event leaked into main store: %s", w.Body.String())
	}
}

func TestCollectMalformedPayload(t *testing.T) {
	_, r := newTestServer(t, Config{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/data/event", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPlayerLookup(t *testing.T) {
	_, r := newTestServer(t, Config{})
	w := postJSON(t, r, "/api/data/event", map[string]any{
		"userId": "u9", "deviceId": "d9", "timestamp": 1000,
		"eventName": "login", "userProperties": map[string]any{"vip_status": "gold"},
	})
	if w.Code != 200 {
		t.Fatalf("collect: %d %s", w.Code, w.Body.String())
	}
	for _, q := range []string{
		"/api/players?userId=u9",
		"/api/players?deviceId=d9",
		"/api/players?propertyKey=vip_status&propertyValue=gold",
	} {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, q, nil))
		if w.Code != 200 || !strings.Contains(w.Body.String(), "u9") {
			t.Fatalf("%s: %d %s", q, w.Code, w.Body.String())
		}
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/players", nil))
	if w.Code != 400 {
		t.Fatalf("expected 400 without lookup params, got %d", w.Code)
	}
}

func TestReportAndUserStatistics(t *testing.T) {
	_, r := newTestServer(t, Config{})
	for i, name := range []string{"login", "login", "purchase"} {
		w := postJSON(t, r, "/api/data/event", map[string]any{
			"userId": "u1", "timestamp": 1000 + i, "eventName": name,
		})
		if w.Code != 200 {
			t.Fatalf("collect %s: %d", name, w.Code)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data/report/statistics?startTime=0&endTime=5000", nil))
	if w.Code != 200 {
		t.Fatalf("report: %d %s", w.Code, w.Body.String())
	}
	var rep struct {
		Statistics []ingest.EventReportStat `json:"statistics"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatal(err)
	}
	if len(rep.Statistics) != 2 || rep.Statistics[0].EventName != "login" || rep.Statistics[0].Count != 2 {
		t.Fatalf("unexpected report: %+v", rep.Statistics)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data/events/statistics/u1?startTime=0&endTime=5000", nil))
	if w.Code != 200 || !strings.Contains(w.Body.String(), "purchase") {
		t.Fatalf("user stats: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data/report/statistics", nil))
	if w.Code != 400 {
		t.Fatalf("expected 400 without range, got %d", w.Code)
	}
}

func TestAnalysisEndpoint(t *testing.T) {
	_, r := newTestServer(t, Config{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/schemas/events/login", strings.NewReader(`{"level":"integer"}`))
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("put schema: %d", w.Code)
	}
	for i := 0; i < 3; i++ {
		w := postJSON(t, r, "/api/data/event", map[string]any{
			"userId": fmt.Sprintf("u%d", i%2), "timestamp": 1000 + i,
			"eventName": "login", "parameters": map[string]any{"level": i},
		})
		if w.Code != 200 {
			t.Fatalf("collect: %d", w.Code)
		}
	}
	w = postJSON(t, r, "/api/analysis/event", map[string]any{
		"startTime": 0, "endTime": 86400000, "eventName": "login",
		"groupingAttribute":     "time.day",
		"calculationAttributes": []string{"eventCount", "uniqueUserCount"},
	})
	if w.Code != 200 {
		t.Fatalf("analysis: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Rows) != 1 || resp.Rows[0]["eventCount"].(float64) != 3 || resp.Rows[0]["uniqueUserCount"].(float64) != 2 {
		t.Fatalf("unexpected rows: %v", resp.Rows)
	}

	// Client mistakes answer 400 with the error kind.
	w = postJSON(t, r, "/api/analysis/event", map[string]any{
		"startTime": 0, "endTime": 86400000, "eventName": "login",
		"groupingAttribute":     "bogus.attr",
		"calculationAttributes": []string{"eventCount"},
	})
	if w.Code != 400 || !strings.Contains(w.Body.String(), "unsupported_attribute") {
		t.Fatalf("bad attribute: %d %s", w.Code, w.Body.String())
	}
}

func TestSchemaCRUD(t *testing.T) {
	_, r := newTestServer(t, Config{})
	put := func(name, body string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/schemas/events/"+name, strings.NewReader(body))
		r.ServeHTTP(w, req)
		return w.Code
	}
	if code := put("login", `{"level":"integer"}`); code != 200 {
		t.Fatalf("put: %d", code)
	}
	if code := put("login", `{"level":[1,2]}`); code != 400 {
		t.Fatalf("malformed schema accepted: %d", code)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/schemas/events", nil))
	if w.Code != 200 || !strings.Contains(w.Body.String(), "login") {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	// Single-schema read-back returns the stored document.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/schemas/events/login", nil))
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"level"`) {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/schemas/events/unknown", nil))
	if w.Code != 404 {
		t.Fatalf("get unknown: expected 404, got %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/schemas/events/login", nil))
	if w.Code != 200 {
		t.Fatalf("delete: %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/schemas/events/login", nil))
	if w.Code != 404 {
		t.Fatalf("get after delete: expected 404, got %d", w.Code)
	}
}

func TestUserPropertySchemaRoundTrip(t *testing.T) {
	_, r := newTestServer(t, Config{})

	// Nothing defined yet.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/schemas/user-properties", nil))
	if w.Code != 404 {
		t.Fatalf("get before put: expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/schemas/user-properties", strings.NewReader(`{"vip_status":"string"}`)))
	if w.Code != 200 {
		t.Fatalf("put user-properties: %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/schemas/user-properties", nil))
	if w.Code != 200 || !strings.Contains(w.Body.String(), "vip_status") {
		t.Fatalf("get after put: %d %s", w.Code, w.Body.String())
	}

	// Replacing the document reads back the new version.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/schemas/user-properties", strings.NewReader(`{"country":"string"}`)))
	if w.Code != 200 {
		t.Fatalf("replace user-properties: %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/schemas/user-properties", nil))
	if w.Code != 200 || !strings.Contains(w.Body.String(), "country") {
		t.Fatalf("get after replace: %d %s", w.Code, w.Body.String())
	}
}

func TestHMACAuth(t *testing.T) {
	_, r := newTestServer(t, Config{IngestSecret: "s3cret", AllowSkew: 300 * time.Second})
	body := []byte(`{"userId":"u1","timestamp":1000,"eventName":"ping"}`)

	// Unsigned request is refused.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/data/event", bytes.NewReader(body))
	r.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Fatalf("unsigned: expected 401, got %d", w.Code)
	}

	sign := func(secret string, ts int64, nonce string) string {
		sum := sha256.Sum256(body)
		msg := fmt.Sprintf("%d\n%s\n%s", ts, nonce, hex.EncodeToString(sum[:]))
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(msg))
		return base64.StdEncoding.EncodeToString(mac.Sum(nil))
	}

	ts := time.Now().Unix()
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/data/event", bytes.NewReader(body))
	req.Header.Set("X-Timestamp", fmt.Sprint(ts))
	req.Header.Set("X-Nonce", "n1")
	req.Header.Set("X-Signature", sign("s3cret", ts, "n1"))
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("signed: expected 200, got %d %s", w.Code, w.Body.String())
	}

	// Wrong secret fails.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/data/event", bytes.NewReader(body))
	req.Header.Set("X-Timestamp", fmt.Sprint(ts))
	req.Header.Set("X-Nonce", "n2")
	req.Header.Set("X-Signature", sign("wrong", ts, "n2"))
	r.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Fatalf("bad secret: expected 401, got %d", w.Code)
	}

	// Stale timestamp fails.
	old := ts - 3600
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/data/event", bytes.NewReader(body))
	req.Header.Set("X-Timestamp", fmt.Sprint(old))
	req.Header.Set("X-Nonce", "n3")
	req.Header.Set("X-Signature", sign("s3cret", old, "n3"))
	r.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Fatalf("stale ts: expected 401, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	_, r := newTestServer(t, Config{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != 200 || w.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", w.Code, w.Body.String())
	}
}
