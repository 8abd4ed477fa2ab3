package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Clark-Hu/prompt-library/internal/config"
	"github.com/Clark-Hu/prompt-library/internal/domain"
	"github.com/Clark-Hu/prompt-library/internal/kv"
	"github.com/Clark-Hu/prompt-library/internal/kv/kvtest"
	"github.com/Clark-Hu/prompt-library/internal/kv/memory"
	"github.com/Clark-Hu/prompt-library/internal/repository"
)

type testServer struct {
	*Server
	storage *kvtest.Faulty
}

func buildTestServer(tb testing.TB) *testServer {
	tb.Helper()
	cfg := config.Defaults()
	cfg.Port = "0"
	cfg.StorageBackend = config.BackendMemory

	storage := kvtest.NewFaulty(memory.New(0))
	store := repository.New(storage, nil, repository.Options{})
	store.Load(context.Background())
	return &testServer{Server: New(cfg, storage, store, nil), storage: storage}
}

func (ts *testServer) do(tb testing.TB, method, target, body string) *httptest.ResponseRecorder {
	tb.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) create(tb testing.TB, title, content string) domain.Prompt {
	tb.Helper()
	payload, _ := json.Marshal(promptCreateRequest{Title: title, Content: content})
	rec := ts.do(tb, http.MethodPost, "/prompts", string(payload))
	if rec.Code != http.StatusCreated {
		tb.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var p domain.Prompt
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		tb.Fatalf("decode created prompt: %v", err)
	}
	return p
}

func TestHealthz(t *testing.T) {
	ts := buildTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMeIsStable(t *testing.T) {
	ts := buildTestServer(t)

	var first, second meResponse
	_ = json.Unmarshal(ts.do(t, http.MethodGet, "/me", "").Body.Bytes(), &first)
	_ = json.Unmarshal(ts.do(t, http.MethodGet, "/me", "").Body.Bytes(), &second)
	if first.UserID == "" || first.UserID != second.UserID {
		t.Fatalf("userId = %q then %q, want stable non-empty", first.UserID, second.UserID)
	}
}

func TestCreatePrompt(t *testing.T) {
	ts := buildTestServer(t)

	rec := ts.do(t, http.MethodPost, "/prompts", `{"title":"  Greeting ","content":"Say hi"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var p domain.Prompt
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Title != "Greeting" || p.Content != "Say hi" || p.TotalRatings != 0 {
		t.Fatalf("created = %+v", p)
	}
	if loc := rec.Header().Get("Location"); loc != "/prompts/"+p.ID {
		t.Fatalf("Location = %q, want /prompts/%s", loc, p.ID)
	}
}

func TestCreatePromptValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"blank content", `{"title":"t","content":"   "}`, http.StatusUnprocessableEntity},
		{"missing content", `{"title":"t"}`, http.StatusUnprocessableEntity},
		{"malformed json", `invalid json`, http.StatusUnprocessableEntity},
		{"empty body", ``, http.StatusUnprocessableEntity},
		{"wrong type", `{"title":"t","content":5}`, http.StatusUnprocessableEntity},
		{"unknown field", `{"title":"t","content":"c","theme":"dark"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := buildTestServer(t)
			rec := ts.do(t, http.MethodPost, "/prompts", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if n := len(ts.prompts.Snapshot()); n != 0 {
				t.Fatalf("collection has %d prompts, want 0", n)
			}
		})
	}
}

func TestCreatePromptStorageUnavailable(t *testing.T) {
	ts := buildTestServer(t)
	ts.storage.FailSets(kv.ErrQuotaExceeded)

	rec := ts.do(t, http.MethodPost, "/prompts", `{"title":"t","content":"c"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp errorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "STORAGE_UNAVAILABLE" {
		t.Fatalf("code = %q, want STORAGE_UNAVAILABLE", resp.Code)
	}
}

func TestListPromptsNewestFirst(t *testing.T) {
	ts := buildTestServer(t)
	a := ts.create(t, "alpha", "first prompt")
	b := ts.create(t, "", "one two three four five six seven eight nine ten eleven twelve thirteen")

	rec := ts.do(t, http.MethodPost, "/prompts/"+a.ID+"/rating", `{"stars":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("rate status = %d, want 200", rec.Code)
	}

	var list promptListResponse
	if err := json.Unmarshal(ts.do(t, http.MethodGet, "/prompts", "").Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 2 || list.Items[0].ID != b.ID || list.Items[1].ID != a.ID {
		t.Fatalf("order = %+v, want [b a]", list.Items)
	}

	newest := list.Items[0]
	if newest.Badge != "U" || newest.Preview != "one two three four five six seven eight nine ten eleven twelve…" {
		t.Fatalf("newest item = %+v", newest)
	}
	if newest.MyRating != nil {
		t.Fatalf("myRating = %d, want omitted", *newest.MyRating)
	}
	if rated := list.Items[1]; rated.MyRating == nil || *rated.MyRating != 4 || rated.AverageRating != 4 || rated.TotalRatings != 1 {
		t.Fatalf("rated item = %+v", rated)
	}
}

func TestGetPrompt(t *testing.T) {
	ts := buildTestServer(t)
	p := ts.create(t, "t", "full content")

	rec := ts.do(t, http.MethodGet, "/prompts/"+p.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got domain.Prompt
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Content != "full content" {
		t.Fatalf("content = %q", got.Content)
	}

	if rec := ts.do(t, http.MethodGet, "/prompts/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", rec.Code)
	}
}

func TestRatePrompt(t *testing.T) {
	ts := buildTestServer(t)
	p := ts.create(t, "t", "c")

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantStars int
	}{
		{"valid", `{"stars":3}`, http.StatusOK, 3},
		{"overwrite", `{"stars":5}`, http.StatusOK, 5},
		{"clamped high", `{"stars":9}`, http.StatusOK, 5},
		{"clamped low", `{"stars":0}`, http.StatusOK, 1},
		{"rounded", `{"stars":3.6}`, http.StatusOK, 4},
		{"missing stars", `{}`, http.StatusUnprocessableEntity, 0},
		{"string stars", `{"stars":"4"}`, http.StatusUnprocessableEntity, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/prompts/"+p.ID+"/rating", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var got domain.Prompt
			_ = json.Unmarshal(rec.Body.Bytes(), &got)
			if got.TotalRatings != 1 || got.AverageRating != float64(tt.wantStars) {
				t.Fatalf("aggregate = %v/%d, want %d/1", got.AverageRating, got.TotalRatings, tt.wantStars)
			}
		})
	}
}

func TestRatePromptRaterHeader(t *testing.T) {
	ts := buildTestServer(t)
	p := ts.create(t, "t", "c")

	rate := func(rater, body string) domain.Prompt {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/prompts/"+p.ID+"/rating", strings.NewReader(body))
		if rater != "" {
			req.Header.Set(raterHeader, rater)
		}
		rec := httptest.NewRecorder()
		ts.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("rate as %q status = %d, want 200", rater, rec.Code)
		}
		var got domain.Prompt
		_ = json.Unmarshal(rec.Body.Bytes(), &got)
		return got
	}

	rate("alice", `{"stars":4}`)
	got := rate("bob", `{"stars":2}`)
	if got.AverageRating != 3 || got.TotalRatings != 2 {
		t.Fatalf("aggregate = %v/%d, want 3/2", got.AverageRating, got.TotalRatings)
	}
	if got.UserRatings["alice"] != 4 || got.UserRatings["bob"] != 2 {
		t.Fatalf("userRatings = %v, want alice 4 and bob 2", got.UserRatings)
	}

	// A blank header falls back to the process identity.
	got = rate("  ", `{"stars":5}`)
	self := ts.prompts.UserID(context.Background())
	if got.UserRatings[self] != 5 || got.TotalRatings != 3 {
		t.Fatalf("fallback rating = %v/%d, want %s rated 5 of 3", got.UserRatings, got.TotalRatings, self)
	}
}

func TestRateUnknownPrompt(t *testing.T) {
	ts := buildTestServer(t)
	rec := ts.do(t, http.MethodPost, "/prompts/missing/rating", `{"stars":4}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestDeletePrompt(t *testing.T) {
	ts := buildTestServer(t)
	p := ts.create(t, "t", "c")

	for i := 0; i < 2; i++ {
		if rec := ts.do(t, http.MethodDelete, "/prompts/"+p.ID, ""); rec.Code != http.StatusNoContent {
			t.Fatalf("delete #%d status = %d, want 204", i+1, rec.Code)
		}
	}
	if rec := ts.do(t, http.MethodGet, "/prompts/"+p.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestDeletePromptStorageUnavailable(t *testing.T) {
	ts := buildTestServer(t)
	p := ts.create(t, "t", "c")
	ts.storage.FailSets(errors.New("disk full"))

	if rec := ts.do(t, http.MethodDelete, "/prompts/"+p.ID, ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if _, ok := ts.prompts.Get(p.ID); !ok {
		t.Fatalf("prompt removed despite failed save")
	}
}

func TestExportImport(t *testing.T) {
	src := buildTestServer(t)
	src.create(t, "one", "first")
	src.create(t, "two", "second")

	rec := src.do(t, http.MethodGet, "/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, want 200", rec.Code)
	}
	dump := rec.Body.String()

	dst := buildTestServer(t)
	rec = dst.do(t, http.MethodPost, "/import", dump)
	var resp importResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || resp.Added != 2 {
		t.Fatalf("import = %d %+v, want 200 added 2", rec.Code, resp)
	}

	// Importing again adds nothing.
	rec = dst.do(t, http.MethodPost, "/import", dump)
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Added != 0 {
		t.Fatalf("re-import added %d, want 0", resp.Added)
	}

	for _, body := range []string{`{"not":"an array"}`, "", "null", `[{"id":"a"},`} {
		rec := dst.do(t, http.MethodPost, "/import", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("import %q status = %d, want 422", body, rec.Code)
		}
		var errResp errorResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &errResp)
		if errResp.Code != "VALIDATION_ERROR" || errResp.Message != "Body must be a JSON array of prompts" {
			t.Fatalf("import %q error = %+v, want fixed validation message", body, errResp)
		}
		if strings.Contains(errResp.Message, "domain:") || strings.Contains(errResp.Message, "json:") {
			t.Fatalf("import %q leaks internal error text: %q", body, errResp.Message)
		}
	}
	if n := len(dst.prompts.Snapshot()); n != 2 {
		t.Fatalf("rejected imports left %d prompts, want 2", n)
	}
}
