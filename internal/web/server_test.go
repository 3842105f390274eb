package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/storage"
)

func testServer(t *testing.T, token string) *Server {
	t.Helper()

	store, err := storage.NewStore(&storage.ArchiveConfig{
		Enabled: true,
		DBPath:  filepath.Join(t.TempDir(), "runs.db"),
		MaxAge:  24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	reports := []models.RunReport{
		{
			RunID:      "run-old",
			Target:     models.TargetSelector{Namespace: "web", Autoscaler: "frontend"},
			StartedAt:  now.Add(-time.Hour),
			FinishedAt: now.Add(-46 * time.Minute),
			Verdict:    models.VerdictFail,
			Violations: []models.Violation{
				{Kind: models.ScaleUpDeadlineExceeded, Timestamp: now.Add(-50 * time.Minute), Expected: ">= 3", Observed: "2"},
			},
		},
		{
			RunID:      "run-new",
			Target:     models.TargetSelector{Namespace: "web", Autoscaler: "frontend"},
			StartedAt:  now,
			FinishedAt: now.Add(14 * time.Minute),
			Verdict:    models.VerdictPass,
		},
	}
	for _, r := range reports {
		if err := store.SaveReport(r); err != nil {
			t.Fatalf("failed to seed store: %v", err)
		}
	}

	return NewServer(store, &ServerConfig{Port: 0, Token: token})
}

func doRequest(s *Server, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := testServer(t, "")

	w := doRequest(s, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestListRuns(t *testing.T) {
	s := testServer(t, "")

	w := doRequest(s, http.MethodGet, "/api/runs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Runs  []storage.RunSummary `json:"runs"`
		Count int                  `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Runs) != 2 {
		t.Fatalf("expected 2 runs, got count=%d len=%d", resp.Count, len(resp.Runs))
	}
	if resp.Runs[0].RunID != "run-new" {
		t.Errorf("runs must be newest first, got %s", resp.Runs[0].RunID)
	}
}

func TestListRunsHonorsLimit(t *testing.T) {
	s := testServer(t, "")

	w := doRequest(s, http.MethodGet, "/api/runs?limit=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestListRunsRejectsBadLimit(t *testing.T) {
	s := testServer(t, "")

	for _, raw := range []string{"abc", "-1", "0"} {
		w := doRequest(s, http.MethodGet, "/api/runs?limit="+raw, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", raw, w.Code)
		}
	}
}

func TestGetRun(t *testing.T) {
	s := testServer(t, "")

	w := doRequest(s, http.MethodGet, "/api/runs/run-old", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var report models.RunReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.RunID != "run-old" || report.Verdict != models.VerdictFail {
		t.Errorf("unexpected report: %s / %s", report.RunID, report.Verdict)
	}
	if len(report.Violations) != 1 {
		t.Errorf("violations lost: %+v", report.Violations)
	}
}

func TestGetRunMissing(t *testing.T) {
	s := testServer(t, "")

	w := doRequest(s, http.MethodGet, "/api/runs/no-such-run", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAuthRequiredWhenTokenSet(t *testing.T) {
	s := testServer(t, "secret")

	if w := doRequest(s, http.MethodGet, "/api/runs", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
	if w := doRequest(s, http.MethodGet, "/api/runs", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}
	if w := doRequest(s, http.MethodGet, "/api/runs", "secret"); w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}

	// Health stays open for probes.
	if w := doRequest(s, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want 200", w.Code)
	}
}
