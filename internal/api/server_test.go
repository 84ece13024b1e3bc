package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/plandag/internal/config"
	"github.com/dgallion1/plandag/internal/outline"
	"github.com/dgallion1/plandag/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-key"
	launchPlan = "# Launch\n1. Build\n2. Test\n3. Ship\n"
	cyclePlan  = "# Loop\n- A @(B)\n- B @(A)\n"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		APIKey:             testKey,
		WorkerCount:        2,
		MaxQueueSize:       16,
		MaxUploadBytes:     4096,
		DocumentTTL:        time.Hour,
		DeadlineLookBehind: 0.25,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.NewOrchestrator(cfg, nil, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	ts := httptest.NewServer(NewServer(orch, log, cfg))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth_NoAuth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t)

	tests := map[string]string{
		"missing": "",
		"wrong":   "Bearer nope",
		"scheme":  "Basic " + testKey,
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/documents", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestCompile_RawText(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, http.MethodPost, ts.URL+"/api/compile", "text/plain", strings.NewReader(launchPlan))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dag outline.DAG
	decode(t, resp, &dag)
	assert.Len(t, dag.Nodes, 4)
	assert.Equal(t, []string{"Build"}, dag.DependenciesOf("Test"))
	assert.Equal(t, []string{"Ship"}, dag.DependenciesOf("Launch"))
}

func TestCompile_JSONWithNow(t *testing.T) {
	ts := newTestServer(t)
	body := `{"text": "# Plan\n- Renew [by 01-10]\n", "now": "2024-12-20"}`
	resp := do(t, http.MethodPost, ts.URL+"/api/compile", "application/json", strings.NewReader(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dag outline.DAG
	decode(t, resp, &dag)
	n, ok := dag.Node("Renew")
	require.True(t, ok)
	assert.Equal(t, "2025-01-10", n.Deadline)
}

func TestCompile_HTMLViaFilename(t *testing.T) {
	ts := newTestServer(t)
	html := `<h1>Move</h1><ol><li>Pack</li><li>Drive</li></ol>`
	resp := do(t, http.MethodPost, ts.URL+"/api/compile?filename=move.html", "text/html", strings.NewReader(html))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dag outline.DAG
	decode(t, resp, &dag)
	assert.Equal(t, []string{"Pack"}, dag.DependenciesOf("Drive"))
}

func TestCompile_YAML(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, http.MethodPost, ts.URL+"/api/compile?format=yaml", "text/plain", strings.NewReader(launchPlan))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(out), "description: Launch")
}

func TestCompile_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := map[string]struct {
		url         string
		contentType string
		body        string
		wantCode    int
		wantKind    string
	}{
		"cycle": {
			url: "/api/compile", contentType: "text/plain", body: cyclePlan,
			wantCode: http.StatusUnprocessableEntity, wantKind: "cycle",
		},
		"structural": {
			url: "/api/compile", contentType: "text/plain", body: "- no header\n",
			wantCode: http.StatusUnprocessableEntity, wantKind: "structural",
		},
		"unsupported extension": {
			url: "/api/compile?filename=plan.exe", contentType: "text/plain", body: launchPlan,
			wantCode: http.StatusBadRequest,
		},
		"bad now": {
			url: "/api/compile?now=someday", contentType: "text/plain", body: launchPlan,
			wantCode: http.StatusBadRequest,
		},
		"bad json": {
			url: "/api/compile", contentType: "application/json", body: "{",
			wantCode: http.StatusBadRequest,
		},
		"too large": {
			url: "/api/compile", contentType: "text/plain", body: "# Big\n" + strings.Repeat("x", 5000),
			wantCode: http.StatusRequestEntityTooLarge,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL+tc.url, tc.contentType, strings.NewReader(tc.body))
			assert.Equal(t, tc.wantCode, resp.StatusCode)
			if tc.wantKind != "" {
				var p pipeline.Problem
				decode(t, resp, &p)
				assert.Equal(t, tc.wantKind, p.Kind)
				assert.NotEmpty(t, p.Error)
			}
		})
	}
}

func TestBatchCompile(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range []struct{ name, body string }{
		{"launch.plan", launchPlan},
		{"loop.txt", cyclePlan},
		{"notes.exe", "x"},
	} {
		part, err := mw.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp := do(t, http.MethodPost, ts.URL+"/api/compile/batch", mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Results []batchResult `json:"results"`
	}
	decode(t, resp, &out)
	require.Len(t, out.Results, 3)

	assert.Equal(t, "launch.plan", out.Results[0].Filename)
	require.NotNil(t, out.Results[0].DAG)
	assert.Len(t, out.Results[0].DAG.Nodes, 4)

	assert.Equal(t, "loop.txt", out.Results[1].Filename)
	require.NotNil(t, out.Results[1].Problem)
	assert.Equal(t, "cycle", out.Results[1].Problem.Kind)

	require.NotNil(t, out.Results[2].Problem)
	assert.Equal(t, "parse", out.Results[2].Problem.Kind)
}

func TestBatchCompile_NoFiles(t *testing.T) {
	ts := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	resp := do(t, http.MethodPost, ts.URL+"/api/compile/batch", mw.FormDataContentType(), &buf)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// waitStatus polls a document until its compiled revision reaches rev.
func waitStatus(t *testing.T, ts *httptest.Server, id string, rev int) pipeline.DocumentSnapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp := do(t, http.MethodGet, ts.URL+"/api/documents/"+id, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var snap pipeline.DocumentSnapshot
		decode(t, resp, &snap)
		settled := snap.Status == pipeline.StatusReady || snap.Status == pipeline.StatusInvalid
		if snap.Revision == rev && settled {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("document %s did not settle at revision %d: %+v", id, rev, snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDocuments_Lifecycle(t *testing.T) {
	ts := newTestServer(t)

	// Create.
	resp := do(t, http.MethodPost, ts.URL+"/api/documents", "application/json",
		strings.NewReader(`{"title": "Launch plan", "text": "# Launch\n1. Build\n2. Test\n3. Ship\n"}`))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var created struct {
		DocID    string `json:"doc_id"`
		Revision int    `json:"revision"`
	}
	decode(t, resp, &created)
	require.NotEmpty(t, created.DocID)
	assert.Equal(t, 1, created.Revision)

	snap := waitStatus(t, ts, created.DocID, 1)
	assert.Equal(t, pipeline.StatusReady, snap.Status)
	assert.Equal(t, "Launch plan", snap.Title)
	assert.Equal(t, 4, snap.Nodes)

	// A broken edit keeps the previous graph.
	resp = do(t, http.MethodPut, ts.URL+"/api/documents/"+created.DocID, "text/plain", strings.NewReader(cyclePlan))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	snap = waitStatus(t, ts, created.DocID, 2)
	assert.Equal(t, pipeline.StatusInvalid, snap.Status)
	require.NotNil(t, snap.Problem)
	assert.Equal(t, "cycle", snap.Problem.Kind)

	resp = do(t, http.MethodGet, ts.URL+"/api/documents/"+created.DocID+"/dag", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-Plan-Revision"))
	var dag outline.DAG
	decode(t, resp, &dag)
	assert.Len(t, dag.Nodes, 4)

	// List.
	resp = do(t, http.MethodGet, ts.URL+"/api/documents", "", nil)
	var list struct {
		Documents []pipeline.DocumentSnapshot `json:"documents"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, created.DocID, list.Documents[0].ID)

	// Delete.
	resp = do(t, http.MethodDelete, ts.URL+"/api/documents/"+created.DocID, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodGet, ts.URL+"/api/documents/"+created.DocID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(t, http.MethodDelete, ts.URL+"/api/documents/"+created.DocID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDocuments_MultipartUpload(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("doc_id", "release"))
	part, err := mw.CreateFormFile("file", "release.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("Notes first.\n\n```plan\n# Release\n- Tag\n- Announce @(Tag)\n```\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp := do(t, http.MethodPost, ts.URL+"/api/documents", mw.FormDataContentType(), &buf)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	snap := waitStatus(t, ts, "release", 1)
	assert.Equal(t, pipeline.StatusReady, snap.Status)
	assert.Equal(t, "release.md", snap.Filename)
	assert.Equal(t, "Release", snap.Title)
}

func TestDocuments_NoGraphYet(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, http.MethodPut, ts.URL+"/api/documents/broken", "text/plain", strings.NewReader(cyclePlan))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	waitStatus(t, ts, "broken", 1)

	resp = do(t, http.MethodGet, ts.URL+"/api/documents/broken/dag", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(t, http.MethodGet, ts.URL+"/api/documents/missing/dag", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompileStats(t *testing.T) {
	ts := newTestServer(t)
	do(t, http.MethodPost, ts.URL+"/api/compile", "text/plain", strings.NewReader(launchPlan))
	do(t, http.MethodPost, ts.URL+"/api/compile", "text/plain", strings.NewReader(cyclePlan))

	resp := do(t, http.MethodGet, ts.URL+"/api/stats/compile", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Stats pipeline.StatsSnapshot `json:"stats"`
	}
	decode(t, resp, &out)
	assert.Equal(t, 2, out.Stats.Latency.Count)
	assert.EqualValues(t, 1, out.Stats.Outcomes["ok"])
	assert.EqualValues(t, 1, out.Stats.Outcomes["cycle"])
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"plan.md":             "plan.md",
		"../../etc/plan.md":   "plan.md",
		`C:\docs\plan.md`:     "plan.md",
		"a..b.plan":           "a_b.plan",
		"":                    "unnamed",
		"dir/":                "dir",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), "input %q", in)
	}
}
