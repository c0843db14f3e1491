package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/civicdesk/civicdesk/internal/classify"
	"github.com/civicdesk/civicdesk/internal/extract"
	"github.com/civicdesk/civicdesk/internal/log"
	"github.com/civicdesk/civicdesk/internal/pipeline"
	"github.com/civicdesk/civicdesk/internal/search"
	"github.com/civicdesk/civicdesk/internal/testutil"
	"github.com/civicdesk/civicdesk/internal/vecstore"
)

// newTestServer builds a server over the in-memory backend with fake AI
// components, returning the server and the index for direct inspection.
func newTestServer(t *testing.T, oracle classify.Oracle) (*httptest.Server, vecstore.Index) {
	t.Helper()

	logger := log.NewNop()
	enc := &testutil.FakeEncoder{Dimension: 16}
	index := vecstore.NewMemory(logger)

	p := pipeline.New(extract.New(logger), oracle, enc, index, logger)
	facade := search.New(enc, index, logger)
	srv := NewServer(p, facade, index, t.TempDir(), logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, index
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, testutil.RelevantOracle())

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestTextSubmission(t *testing.T) {
	ts, index := newTestServer(t, testutil.RelevantOracle())

	resp := postJSON(t, ts.URL+"/api/complaints/text", map[string]any{
		"title":       "Water leak",
		"description": "Water leaking on Main Street for 3 days",
		"metadata":    map[string]string{"complaint_id": "C-5"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	result := decodeBody[pipeline.Result](t, resp)

	if result.DocumentID == nil {
		t.Fatal("document_id missing")
	}
	if result.Department != "Water Department" {
		t.Errorf("department = %q", result.Department)
	}

	doc, err := index.Get(context.Background(), *result.DocumentID)
	if err != nil || doc == nil {
		t.Fatalf("document not stored: %v %v", doc, err)
	}
}

func TestTextSubmission_Empty(t *testing.T) {
	ts, _ := newTestServer(t, testutil.RelevantOracle())

	resp := postJSON(t, ts.URL+"/api/complaints/text", map[string]any{"title": "", "description": ""})
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTextSubmission_IrrelevantNotStored(t *testing.T) {
	oracle := testutil.RelevantOracle()
	oracle.Relevance = classify.Relevance{IsRelevant: false, Confidence: 0.9, Category: "advertisement", Reason: "promotional content"}
	ts, index := newTestServer(t, oracle)

	resp := postJSON(t, ts.URL+"/api/complaints/text", map[string]any{
		"title":       "Buy now",
		"description": "Great discounts on furniture",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (rejection is not an error)", resp.StatusCode)
	}
	result := decodeBody[pipeline.Result](t, resp)
	if result.DocumentID != nil {
		t.Error("irrelevant submission got a document_id")
	}
	if result.IsRelevant {
		t.Error("is_relevant = true")
	}

	stats, _ := index.Stats(context.Background())
	if stats.Count != 0 {
		t.Errorf("index count = %d, want 0", stats.Count)
	}
}

func uploadFile(t *testing.T, url, field, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("writing part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST upload: %v", err)
	}
	return resp
}

func TestUpload_TXT(t *testing.T) {
	ts, _ := newTestServer(t, testutil.RelevantOracle())

	resp := uploadFile(t, ts.URL+"/api/complaints/upload", "file", "complaint.txt",
		[]byte("Water leaking on Main Street for 3 days"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	result := decodeBody[pipeline.Result](t, resp)
	if result.DocumentID == nil {
		t.Fatal("document_id missing")
	}
	if result.Filename != "complaint.txt" {
		t.Errorf("filename = %q", result.Filename)
	}
}

func TestUpload_UnsupportedFormat(t *testing.T) {
	ts, _ := newTestServer(t, testutil.RelevantOracle())

	resp := uploadFile(t, ts.URL+"/api/complaints/upload", "file", "data.xlsx", []byte("cells"))
	errResp := decodeBody[ErrorResponse](t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if errResp.Error != "unsupported_format" {
		t.Errorf("error = %q", errResp.Error)
	}
}

func TestUpload_MissingFilePart(t *testing.T) {
	ts, _ := newTestServer(t, testutil.RelevantOracle())

	resp := uploadFile(t, ts.URL+"/api/complaints/upload", "wrong_field", "a.txt", []byte("text"))
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestBackfillEndpoint(t *testing.T) {
	ts, index := newTestServer(t, testutil.RelevantOracle())

	resp := postJSON(t, ts.URL+"/api/complaints/backfill", map[string]any{
		"complaint_id": "C-77",
		"title":        "Broken swing",
		"description":  "Playground swing chain snapped",
		"category":     "parks",
		"location":     "Central Park",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	out := decodeBody[backfillResponse](t, resp)
	if !out.Success {
		t.Error("success = false")
	}

	stats, _ := index.Stats(context.Background())
	if stats.Count != 1 {
		t.Errorf("index count = %d, want 1", stats.Count)
	}
}

func TestBackfillEndpoint_MissingID(t *testing.T) {
	ts, _ := newTestServer(t, testutil.RelevantOracle())

	resp := postJSON(t, ts.URL+"/api/complaints/backfill", map[string]any{"title": "no id"})
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSearchAndDetailsAndStats(t *testing.T) {
	ts, _ := newTestServer(t, testutil.RelevantOracle())

	// Store one complaint through the real intake path.
	resp := postJSON(t, ts.URL+"/api/complaints/text", map[string]any{
		"title":       "Water leak",
		"description": "Water leaking on Main Street for 3 days",
	})
	stored := decodeBody[pipeline.Result](t, resp)
	if stored.DocumentID == nil {
		t.Fatal("seed submission was not stored")
	}

	t.Run("search finds it", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/complaints/search?q=water+leak&department=Water+Department")
		if err != nil {
			t.Fatalf("GET search: %v", err)
		}
		out := decodeBody[searchResponse](t, resp)
		if out.Count != 1 {
			t.Fatalf("count = %d, want 1", out.Count)
		}
		if out.Results[0].DocumentID != *stored.DocumentID {
			t.Errorf("found %q, want %q", out.Results[0].DocumentID, *stored.DocumentID)
		}
	})

	t.Run("search requires q", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/complaints/search")
		if err != nil {
			t.Fatalf("GET search: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("search rejects bad limit", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/complaints/search?q=x&limit=zero")
		if err != nil {
			t.Fatalf("GET search: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("details round trip", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/complaints/" + *stored.DocumentID)
		if err != nil {
			t.Fatalf("GET details: %v", err)
		}
		details := decodeBody[search.Details](t, resp)
		if details.DocumentID != *stored.DocumentID {
			t.Errorf("document_id = %q", details.DocumentID)
		}
		if !strings.Contains(details.FullText, "Main Street") {
			t.Errorf("full_text = %q", details.FullText)
		}
	})

	t.Run("details 404", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/complaints/unknown-id")
		if err != nil {
			t.Fatalf("GET details: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("stats", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/stats")
		if err != nil {
			t.Fatalf("GET stats: %v", err)
		}
		stats := decodeBody[search.Stats](t, resp)
		if stats.TotalComplaints != 1 {
			t.Errorf("total = %d, want 1", stats.TotalComplaints)
		}
		if stats.DepartmentDistribution["Water Department"] != 1 {
			t.Errorf("distribution = %v", stats.DepartmentDistribution)
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := chain(panicking, recoveryMiddleware, loggingMiddleware)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, "bad_input", "title is required")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if er.Error != "bad_input" || er.Message != "title is required" {
		t.Errorf("body = %+v", er)
	}
}
