package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nathanbeddoewebdev/snapcycle/internal/domain"
	"nathanbeddoewebdev/snapcycle/internal/retry"
	"nathanbeddoewebdev/snapcycle/internal/services/retention"

	"github.com/digitalocean/godo"
	"github.com/google/go-cmp/cmp"
)

// noDelayRetry makes read retries immediate for the duration of a test.
func noDelayRetry(t *testing.T) {
	t.Helper()
	saved := readRetry
	readRetry = retry.Config{MaxAttempts: 3}
	t.Cleanup(func() { readRetry = saved })
}

// newTestDigitalOcean spins up an httptest.Server with handler and returns a
// provider pointed at it. The server is closed when the test finishes.
func newTestDigitalOcean(t *testing.T, handler http.Handler) *DigitalOceanProvider {
	t.Helper()
	noDelayRetry(t)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewDigitalOceanProvider("test-token", godo.SetBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return p
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode test response: %v", err)
	}
}

func doError(t *testing.T, w http.ResponseWriter, status int, id, message string) {
	writeJSON(t, w, status, map[string]string{"id": id, "message": message})
}

func TestDigitalOcean_ListResources_Paginates(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/droplets", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want Bearer test-token", got)
		}

		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"droplets": []map[string]interface{}{
					{"id": 42, "name": "web-1", "status": "active", "region": map[string]string{"slug": "fra1"}},
				},
				"links": map[string]interface{}{
					"pages": map[string]string{
						"next": srvURL + "/v2/droplets?page=2",
						"last": srvURL + "/v2/droplets?page=2",
					},
				},
			})
		case "2":
			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"droplets": []map[string]interface{}{
					{"id": 7, "name": "db-1", "status": "off"},
				},
				"links": map[string]interface{}{
					"pages": map[string]string{
						"first": srvURL + "/v2/droplets?page=1",
						"prev":  srvURL + "/v2/droplets?page=1",
					},
				},
			})
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL
	noDelayRetry(t)
	p, err := NewDigitalOceanProvider("test-token", godo.SetBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	got, err := p.ListResources(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.Resource{
		{ID: "42", Name: "web-1", Status: "active", Region: "fra1", Provider: "digitalocean"},
		{ID: "7", Name: "db-1", Status: "off", Provider: "digitalocean"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resources mismatch (-want +got):\n%s", diff)
	}
}

func TestDigitalOcean_ListResources_Unauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/droplets", func(w http.ResponseWriter, r *http.Request) {
		doError(t, w, http.StatusUnauthorized, "unauthorized", "Unable to authenticate you.")
	})
	p := newTestDigitalOcean(t, mux)

	_, err := p.ListResources(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}

func TestDigitalOcean_SubmitAction(t *testing.T) {
	tests := []struct {
		action   domain.Action
		wantBody map[string]interface{}
	}{
		{
			action:   domain.Action{Type: domain.ActionShutdown},
			wantBody: map[string]interface{}{"type": "shutdown"},
		},
		{
			action:   domain.Action{Type: domain.ActionPowerOff},
			wantBody: map[string]interface{}{"type": "power_off"},
		},
		{
			action:   domain.Action{Type: domain.ActionPowerOn},
			wantBody: map[string]interface{}{"type": "power_on"},
		},
		{
			action:   domain.Action{Type: domain.ActionSnapshot, Payload: map[string]string{"name": "2026-03-10"}},
			wantBody: map[string]interface{}{"type": "snapshot", "name": "2026-03-10"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.action.Type), func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /v2/droplets/42/actions", func(w http.ResponseWriter, r *http.Request) {
				var body map[string]interface{}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if diff := cmp.Diff(tt.wantBody, body); diff != "" {
					t.Errorf("request body mismatch (-want +got):\n%s", diff)
				}
				writeJSON(t, w, http.StatusCreated, map[string]interface{}{
					"action": map[string]interface{}{
						"id":          1001,
						"status":      "in-progress",
						"type":        body["type"],
						"resource_id": 42,
						"started_at":  "2026-03-10T04:00:00Z",
					},
				})
			})
			p := newTestDigitalOcean(t, mux)

			op, err := p.SubmitAction(context.Background(), "42", tt.action)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			want := &domain.Operation{
				ID:         "1001",
				Type:       tt.action.Type,
				Status:     domain.OperationInProgress,
				ResourceID: "42",
				StartedAt:  time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC),
			}
			if diff := cmp.Diff(want, op); diff != "" {
				t.Errorf("operation mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDigitalOcean_SubmitAction_NotRetried(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/droplets/42/actions", func(w http.ResponseWriter, r *http.Request) {
		calls++
		doError(t, w, http.StatusInternalServerError, "server_error", "boom")
	})
	p := newTestDigitalOcean(t, mux)

	if _, err := p.SubmitAction(context.Background(), "42", domain.Action{Type: domain.ActionShutdown}); err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDigitalOcean_SubmitAction_Conflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/droplets/42/actions", func(w http.ResponseWriter, r *http.Request) {
		doError(t, w, http.StatusUnprocessableEntity, "unprocessable_entity", "Droplet already has a pending event.")
	})
	p := newTestDigitalOcean(t, mux)

	_, err := p.SubmitAction(context.Background(), "42", domain.Action{Type: domain.ActionPowerOff})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestDigitalOcean_SubmitAction_InvalidID(t *testing.T) {
	p := newTestDigitalOcean(t, http.NotFoundHandler())

	if _, err := p.SubmitAction(context.Background(), "web-1", domain.Action{Type: domain.ActionShutdown}); err == nil {
		t.Fatal("expected error for non-numeric droplet ID")
	}
}

func TestDigitalOcean_GetOperation(t *testing.T) {
	tests := []struct {
		status string
		want   domain.OperationStatus
	}{
		{"in-progress", domain.OperationInProgress},
		{"completed", domain.OperationCompleted},
		{"errored", domain.OperationErrored},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /v2/actions/1001", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, map[string]interface{}{
					"action": map[string]interface{}{"id": 1001, "status": tt.status, "type": "snapshot", "resource_id": 42},
				})
			})
			p := newTestDigitalOcean(t, mux)

			op, err := p.GetOperation(context.Background(), "1001")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if op.Status != tt.want {
				t.Errorf("Status = %q, want %q", op.Status, tt.want)
			}
		})
	}
}

func TestDigitalOcean_GetOperation_RetriesServerErrors(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/actions/1001", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			doError(t, w, http.StatusServiceUnavailable, "service_unavailable", "try again")
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"action": map[string]interface{}{"id": 1001, "status": "completed"},
		})
	})
	p := newTestDigitalOcean(t, mux)

	op, err := p.GetOperation(context.Background(), "1001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Status != domain.OperationCompleted {
		t.Errorf("Status = %q, want completed", op.Status)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDigitalOcean_GetOperation_NotFoundNotRetried(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/actions/1001", func(w http.ResponseWriter, r *http.Request) {
		calls++
		doError(t, w, http.StatusNotFound, "not_found", "The resource you were accessing could not be found.")
	})
	p := newTestDigitalOcean(t, mux)

	_, err := p.GetOperation(context.Background(), "1001")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDigitalOcean_ListSnapshots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/snapshots", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"snapshots": []map[string]interface{}{
				{
					"id": "s1", "name": "2026-03-01", "resource_id": "42", "resource_type": "droplet",
					"created_at": "2026-03-01T04:10:00Z", "regions": []string{"fra1"}, "size_gigabytes": 2.5,
				},
				{
					"id": "s3", "name": "db", "resource_id": "7", "resource_type": "droplet",
					"created_at": "2026-02-20T04:10:00Z",
				},
			},
			"links": map[string]interface{}{},
			"meta":  map[string]int{"total": 2},
		})
	})
	p := newTestDigitalOcean(t, mux)

	got, err := p.ListSnapshots(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.Snapshot{
		{
			ID: "s1", Name: "2026-03-01", ResourceID: "42",
			CreatedAt:     time.Date(2026, 3, 1, 4, 10, 0, 0, time.UTC),
			SizeGigabytes: 2.5, Regions: []string{"fra1"},
		},
		{
			ID: "s3", Name: "db", ResourceID: "7",
			CreatedAt: time.Date(2026, 2, 20, 4, 10, 0, 0, time.UTC),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshots mismatch (-want +got):\n%s", diff)
	}
}

func TestDigitalOcean_ListSnapshots_InvalidTimestampKeepsListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/snapshots", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"snapshots": []map[string]interface{}{
				{"id": "s1", "name": "old", "resource_id": "42", "created_at": "2020-01-01T00:00:00Z"},
				{"id": "s2", "name": "volume", "resource_id": "99", "created_at": ""},
				{"id": "s4", "name": "odd", "resource_id": "42", "created_at": "yesterday"},
			},
		})
	})
	p := newTestDigitalOcean(t, mux)

	got, err := p.ListSnapshots(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.Snapshot{
		{ID: "s1", Name: "old", ResourceID: "42", CreatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "s2", Name: "volume", ResourceID: "99"},
		{ID: "s4", Name: "odd", ResourceID: "42"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshots mismatch (-want +got):\n%s", diff)
	}
}

func TestDigitalOcean_PruneSkipsUnparseableTimestamp(t *testing.T) {
	var deleted []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/snapshots", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"snapshots": []map[string]interface{}{
				{"id": "s1", "name": "old", "resource_id": "42", "created_at": "2020-01-01T00:00:00Z"},
				{"id": "s4", "name": "odd", "resource_id": "42", "created_at": ""},
			},
		})
	})
	mux.HandleFunc("DELETE /v2/snapshots/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted = append(deleted, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	p := newTestDigitalOcean(t, mux)

	pruner := retention.NewPruner(p, retention.Config{ProviderName: NameDigitalOcean})
	plan, err := pruner.PruneExpired(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"s1"}, deleted); diff != "" {
		t.Errorf("deleted mismatch (-want +got):\n%s", diff)
	}
	if len(plan.Keep) != 1 || plan.Keep[0].ID != "s4" {
		t.Errorf("plan.Keep = %+v, want [s4]", plan.Keep)
	}
}

func TestDigitalOcean_DeleteSnapshot(t *testing.T) {
	var deleted []string
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /v2/snapshots/{id}", func(w http.ResponseWriter, r *http.Request) {
		deleted = append(deleted, r.PathValue("id"))
		if r.PathValue("id") == "gone" {
			doError(t, w, http.StatusNotFound, "not_found", "not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	p := newTestDigitalOcean(t, mux)

	if err := p.DeleteSnapshot(context.Background(), "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := p.DeleteSnapshot(context.Background(), "gone")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}

	if diff := cmp.Diff([]string{"s1", "gone"}, deleted); diff != "" {
		t.Errorf("deleted mismatch (-want +got):\n%s", diff)
	}
}

func TestMapDigitalOceanError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusConflict, domain.ErrConflict},
		{http.StatusUnprocessableEntity, domain.ErrConflict},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v2/droplets", nil)
			apiErr := &godo.ErrorResponse{
				Response: &http.Response{StatusCode: tt.status, Request: req},
				Message:  "x",
			}
			err := mapDigitalOceanError(apiErr)
			if !errors.Is(err, tt.want) {
				t.Errorf("mapDigitalOceanError(%d) = %v, want %v", tt.status, err, tt.want)
			}

			var unwrapped *godo.ErrorResponse
			if !errors.As(err, &unwrapped) {
				t.Error("original godo error should remain reachable")
			}
		})
	}

	plain := errors.New("dial tcp: refused")
	if got := mapDigitalOceanError(plain); got != plain {
		t.Errorf("unclassified error changed: %v", got)
	}
}
