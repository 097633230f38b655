package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"mealweek/internal/core"
	"mealweek/internal/generation"
	"mealweek/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator(t *testing.T) *core.Validator {
	t.Helper()
	v, err := core.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	return v
}

// withActor attaches an authenticated actor to the request context.
func withActor(r *http.Request, userID string) *http.Request {
	ctx := types.WithActor(r.Context(), types.Actor{UserID: userID, Email: userID + "@example.com"})
	return r.WithContext(ctx)
}

// --- Fakes ---

type fakePlanGenerator struct {
	generateFn func(ctx context.Context, userID string, req types.GenerationRequest) (*generation.Result, error)
	calls      int
}

func (f *fakePlanGenerator) Generate(ctx context.Context, userID string, req types.GenerationRequest) (*generation.Result, error) {
	f.calls++
	return f.generateFn(ctx, userID, req)
}

type fakePlanReader struct {
	getFn func(ctx context.Context, userID string, weekStart time.Time) (*types.StoredPlan, error)
}

func (f *fakePlanReader) Get(ctx context.Context, userID string, weekStart time.Time) (*types.StoredPlan, error) {
	return f.getFn(ctx, userID, weekStart)
}

func minimalPlan() *types.GeneratedPlan {
	return &types.GeneratedPlan{
		Summary: "a week of meals",
		Days:    []types.DayPlan{{Day: 1, Breakfast: "oats", Lunch: "soup", Dinner: "stew"}},
		Recipes: map[string]types.Recipe{"d1_breakfast": {Text: "cook the oats"}},
	}
}

func decodeErrorResponse(t *testing.T, body io.Reader) core.APIErrorResponse {
	t.Helper()
	var errResp core.APIErrorResponse
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return errResp
}

// --- HandleGenerate ---

func TestHandleGenerate_Success(t *testing.T) {
	stored := &types.StoredPlan{
		ID:              "plan_1",
		UserID:          "user_1",
		WeekStart:       time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Plan:            *minimalPlan(),
		GenerationCount: 1,
	}
	gen := &fakePlanGenerator{
		generateFn: func(ctx context.Context, userID string, req types.GenerationRequest) (*generation.Result, error) {
			if userID != "user_1" {
				t.Errorf("unexpected userID %q", userID)
			}
			if req.WeekStart != "2025-06-02" {
				t.Errorf("unexpected week_start %q", req.WeekStart)
			}
			return &generation.Result{Plan: minimalPlan(), Stored: stored}, nil
		},
	}
	h := NewPlanHandler(gen, &fakePlanReader{}, testValidator(t), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/plans/generate",
		strings.NewReader(`{"week_start":"2025-06-02","language":"en","style":"cheap"}`))
	req = withActor(req, "user_1")
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data types.StoredPlan `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.ID != "plan_1" {
		t.Errorf("expected stored plan in data, got %+v", resp.Data)
	}
}

func TestHandleGenerate_NoActor(t *testing.T) {
	gen := &fakePlanGenerator{
		generateFn: func(ctx context.Context, userID string, req types.GenerationRequest) (*generation.Result, error) {
			return nil, nil
		},
	}
	h := NewPlanHandler(gen, &fakePlanReader{}, testValidator(t), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/plans/generate",
		strings.NewReader(`{"week_start":"2025-06-02"}`))
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if gen.calls != 0 {
		t.Errorf("generator must not run without an actor")
	}
}

func TestHandleGenerate_InvalidBody(t *testing.T) {
	gen := &fakePlanGenerator{
		generateFn: func(ctx context.Context, userID string, req types.GenerationRequest) (*generation.Result, error) {
			return nil, nil
		},
	}
	h := NewPlanHandler(gen, &fakePlanReader{}, testValidator(t), testLogger())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"week_start": `},
		{"unknown field", `{"week_start":"2025-06-02","surprise":1}`},
		{"missing week_start", `{"language":"en"}`},
		{"bad week_start", `{"week_start":"June 2nd"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withActor(httptest.NewRequest(http.MethodPost, "/plans/generate", strings.NewReader(tt.body)), "user_1")
			rec := httptest.NewRecorder()
			h.HandleGenerate(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
	if gen.calls != 0 {
		t.Errorf("generator must not run on invalid input, got %d calls", gen.calls)
	}
}

func TestHandleGenerate_QuotaDenialPassedThrough(t *testing.T) {
	gen := &fakePlanGenerator{
		generateFn: func(ctx context.Context, userID string, req types.GenerationRequest) (*generation.Result, error) {
			return nil, types.NewAppErrorWithDetails(
				types.ErrCodeWeeklyLimitReached,
				"weekly generation limit reached",
				nil,
				map[string]any{"used": 3, "limit": 3},
			)
		},
	}
	h := NewPlanHandler(gen, &fakePlanReader{}, testValidator(t), testLogger())

	req := withActor(httptest.NewRequest(http.MethodPost, "/plans/generate",
		strings.NewReader(`{"week_start":"2025-06-02"}`)), "user_1")
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	errResp := decodeErrorResponse(t, rec.Body)
	if errResp.Error.Details["limit"] != float64(3) {
		t.Errorf("expected limit in details, got %v", errResp.Error.Details)
	}
}

func TestHandleGenerate_PersistFailureAttachesPlan(t *testing.T) {
	gen := &fakePlanGenerator{
		generateFn: func(ctx context.Context, userID string, req types.GenerationRequest) (*generation.Result, error) {
			return &generation.Result{Plan: minimalPlan()},
				types.NewAppError(types.ErrCodePersistFailed, "failed to store plan", nil)
		},
	}
	h := NewPlanHandler(gen, &fakePlanReader{}, testValidator(t), testLogger())

	req := withActor(httptest.NewRequest(http.MethodPost, "/plans/generate",
		strings.NewReader(`{"week_start":"2025-06-02"}`)), "user_1")
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	errResp := decodeErrorResponse(t, rec.Body)
	if errResp.Error.Code != string(types.ErrCodePersistFailed) {
		t.Fatalf("expected persist_failed, got %s", errResp.Error.Code)
	}

	plan, ok := errResp.Error.Details["plan"].(map[string]any)
	if !ok {
		t.Fatalf("expected generated plan attached to details, got %T", errResp.Error.Details["plan"])
	}
	if plan["summary"] != "a week of meals" {
		t.Errorf("expected plan content preserved, got %v", plan["summary"])
	}
}

func TestHandleGenerate_PersistFailureWithoutPlanStaysBare(t *testing.T) {
	gen := &fakePlanGenerator{
		generateFn: func(ctx context.Context, userID string, req types.GenerationRequest) (*generation.Result, error) {
			return nil, types.NewAppError(types.ErrCodePersistFailed, "failed to store plan", nil)
		},
	}
	h := NewPlanHandler(gen, &fakePlanReader{}, testValidator(t), testLogger())

	req := withActor(httptest.NewRequest(http.MethodPost, "/plans/generate",
		strings.NewReader(`{"week_start":"2025-06-02"}`)), "user_1")
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	errResp := decodeErrorResponse(t, rec.Body)
	if _, ok := errResp.Error.Details["plan"]; ok {
		t.Error("no plan should be attached when the orchestrator returned none")
	}
}

// --- HandleGet ---

func newPlansRouter(h *PlanHandler) chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHandleGet_Success(t *testing.T) {
	reader := &fakePlanReader{
		getFn: func(ctx context.Context, userID string, weekStart time.Time) (*types.StoredPlan, error) {
			want := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
			if !weekStart.Equal(want) {
				t.Errorf("weekStart = %v, want %v", weekStart, want)
			}
			return &types.StoredPlan{ID: "plan_1", UserID: userID, WeekStart: weekStart}, nil
		},
	}
	h := NewPlanHandler(&fakePlanGenerator{}, reader, testValidator(t), testLogger())
	router := newPlansRouter(h)

	req := withActor(httptest.NewRequest(http.MethodGet, "/plans/2025-06-02", nil), "user_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleGet_BadWeekStart(t *testing.T) {
	h := NewPlanHandler(&fakePlanGenerator{}, &fakePlanReader{}, testValidator(t), testLogger())
	router := newPlansRouter(h)

	req := withActor(httptest.NewRequest(http.MethodGet, "/plans/not-a-date", nil), "user_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	errResp := decodeErrorResponse(t, rec.Body)
	if errResp.Error.Code != string(types.ErrCodeValidationInvalidWeekStart) {
		t.Errorf("expected validation_invalid_week_start, got %s", errResp.Error.Code)
	}
}

func TestHandleGet_NotFound(t *testing.T) {
	reader := &fakePlanReader{
		getFn: func(ctx context.Context, userID string, weekStart time.Time) (*types.StoredPlan, error) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "no plan for that week", nil)
		},
	}
	h := NewPlanHandler(&fakePlanGenerator{}, reader, testValidator(t), testLogger())
	router := newPlansRouter(h)

	req := withActor(httptest.NewRequest(http.MethodGet, "/plans/2025-06-02", nil), "user_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
