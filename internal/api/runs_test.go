package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/lifelens/internal/pipeline"
	"github.com/kalambet/lifelens/internal/storage"
	"github.com/kalambet/lifelens/internal/worker"
)

const testToken = "test-token"

// testBase allows the small datasets used here.
func testBase() pipeline.Options {
	o := pipeline.DefaultOptions()
	o.Cluster.K = 1
	return o
}

func newTestServer(t *testing.T) (*httptest.Server, *storage.Store) {
	t.Helper()
	return newTestServerWithBase(t, testBase())
}

func newTestServerWithBase(t *testing.T, base pipeline.Options) (*httptest.Server, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(NewHandler(AppDeps{Store: store, Token: testToken, Base: base}))
	t.Cleanup(srv.Close)
	return srv, store
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body
}

const twoEntries = `{"entries":[
	{"entry_id":"a","date":"2024-01-01","text":"Work was long"},
	{"entry_id":"b","date":"2024-01-02","text":"Beach walk"}
]}`

func TestHealth_NoAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRuns_RequireAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, auth := range []string{"", "Bearer wrong", testToken} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/runs", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET /runs: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("auth %q: status = %d, want 401", auth, resp.StatusCode)
		}
	}
}

func TestSubmitRun_Queues(t *testing.T) {
	srv, store := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/runs", twoEntries)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var out SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out.RunID == "" || out.Status != storage.RunQueued {
		t.Fatalf("response = %+v, want queued run with id", out)
	}

	run, err := store.GetRun(out.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Source != "api" || run.RecordCount != 2 {
		t.Errorf("run = %+v, want source api with 2 records", run)
	}

	job, err := store.ClaimNextJob([]string{worker.JobType})
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob = %v, %v; want queued job", job, err)
	}
	var p worker.Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if p.RunID != out.RunID || len(p.Entries) != 2 {
		t.Errorf("payload = %+v, want run %s with 2 entries", p, out.RunID)
	}
}

func TestSubmitRun_Params(t *testing.T) {
	srv, store := newTestServer(t)

	body := `{"entries":[{"entry_id":"a","date":"2024-01-01","text":"x"},{"entry_id":"b","date":"2024-01-02","text":"y"},{"entry_id":"c","date":"2024-01-03","text":"z"}],
		"params":{"clusters":2,"seed":7,"contamination":0.2}}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/runs", body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var out SubmitResponse
	json.NewDecoder(resp.Body).Decode(&out)

	run, err := store.GetRun(out.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	var opts map[string]any
	if err := json.Unmarshal([]byte(run.OptionsJSON), &opts); err != nil {
		t.Fatalf("decoding options: %v", err)
	}
	if opts["clusters"] != float64(2) || opts["seed"] != float64(7) || opts["contamination"] != 0.2 {
		t.Errorf("options = %v", opts)
	}
}

func TestSubmitRun_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		stage string
	}{
		{"bad json", `{"entries":`, ""},
		{"empty", `{"entries":[]}`, "input"},
		{"bad date", `{"entries":[{"entry_id":"a","date":"01/02/2024"}]}`, "input"},
		{"duplicate id", `{"entries":[{"entry_id":"a","date":"2024-01-01"},{"entry_id":"a","date":"2024-01-02"}]}`, "input"},
		{"contamination", `{"entries":[{"entry_id":"a","date":"2024-01-01"}],"params":{"contamination":1.5}}`, "config"},
		{"clusters", `{"entries":[{"entry_id":"a","date":"2024-01-01"}],"params":{"clusters":-1}}`, "config"},
		{"clusters not below entries", `{"entries":[{"entry_id":"a","date":"2024-01-01"},{"entry_id":"b","date":"2024-01-02"}],"params":{"clusters":2}}`, "config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestServer(t)

			resp := doRequest(t, http.MethodPost, srv.URL+"/runs", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			if got := decodeError(t, resp).Error.Stage; got != tt.stage {
				t.Errorf("stage = %q, want %q", got, tt.stage)
			}

			runs, err := store.ListRuns(10, 0)
			if err != nil {
				t.Fatalf("ListRuns: %v", err)
			}
			if len(runs) != 0 {
				t.Errorf("got %d runs, want none stored", len(runs))
			}
		})
	}
}

func TestSubmitRun_ChecksConfiguredClusters(t *testing.T) {
	srv, store := newTestServerWithBase(t, pipeline.DefaultOptions())

	// Two entries cannot fill the default five clusters.
	resp := doRequest(t, http.MethodPost, srv.URL+"/runs", twoEntries)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeError(t, resp)
	if body.Error.Stage != "config" || !strings.Contains(body.Error.Message, "clusters") {
		t.Errorf("error = %+v, want clusters config error", body.Error)
	}
	if runs, _ := store.ListRuns(10, 0); len(runs) != 0 {
		t.Errorf("got %d runs, want none stored", len(runs))
	}

	// A per-run override brings it back in range.
	resp = doRequest(t, http.MethodPost, srv.URL+"/runs",
		`{"entries":[{"entry_id":"a","date":"2024-01-01"},{"entry_id":"b","date":"2024-01-02"}],"params":{"clusters":1}}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("override status = %d, want 202", resp.StatusCode)
	}
}

func TestListRuns(t *testing.T) {
	srv, _ := newTestServer(t)

	for range 3 {
		resp := doRequest(t, http.MethodPost, srv.URL+"/runs", twoEntries)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("submit status = %d", resp.StatusCode)
		}
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/runs?limit=2", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var views []RunView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decoding runs: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d runs, want 2", len(views))
	}
	if views[0].Status != storage.RunQueued || views[0].Source != "api" {
		t.Errorf("run = %+v", views[0])
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/runs?offset=2", "")
	views = nil
	json.NewDecoder(resp.Body).Decode(&views)
	if len(views) != 1 {
		t.Errorf("offset 2: got %d runs, want 1", len(views))
	}
}

func TestListRuns_EmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/runs", "")
	var raw json.RawMessage
	json.NewDecoder(resp.Body).Decode(&raw)
	if string(raw) != "[]" {
		t.Errorf("body = %s, want []", raw)
	}
}

func TestGetRun_AndReport(t *testing.T) {
	srv, store := newTestServer(t)

	if err := store.CreateRun(storage.Run{ID: "r1", Source: "cli", RecordCount: 2}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/runs/r1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var view RunView
	json.NewDecoder(resp.Body).Decode(&view)
	if view.ID != "r1" || view.Status != storage.RunQueued || string(view.Options) != "{}" {
		t.Errorf("view = %+v", view)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/runs/r1/report", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("queued report status = %d, want 404", resp.StatusCode)
	}

	report := `{"themes":[],"meta":{"run_id":"r1"}}`
	if err := store.CompleteRun("r1", report); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	resp = doRequest(t, http.MethodGet, srv.URL+"/runs/r1/report", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report status = %d, want 200", resp.StatusCode)
	}
	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if got["meta"].(map[string]any)["run_id"] != "r1" {
		t.Errorf("report = %v", got)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/runs/missing", "/runs/missing/report"} {
		resp := doRequest(t, http.MethodGet, srv.URL+path, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, resp.StatusCode)
		}
		if typ := decodeError(t, resp).Error.Type; typ != "not_found" {
			t.Errorf("%s: type = %q", path, typ)
		}
	}
}

func TestDeleteRun(t *testing.T) {
	srv, store := newTestServer(t)
	store.CreateRun(storage.Run{ID: "r1", Source: "api"})

	resp := doRequest(t, http.MethodDelete, srv.URL+"/runs/r1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if _, err := store.GetRun("r1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetRun after delete = %v, want ErrNotFound", err)
	}

	resp = doRequest(t, http.MethodDelete, srv.URL+"/runs/r1", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=500", 100},
		{"limit=-3", 20},
		{"limit=abc", 20},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/runs?"+tt.query, nil)
		if got := parseIntParam(r, "limit", 20, 100); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
