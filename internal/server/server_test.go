package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryosukesatoh/vibecheck/internal/metrics"
	"github.com/ryosukesatoh/vibecheck/internal/runner"
	"github.com/ryosukesatoh/vibecheck/internal/summarizer"
)

type stubPipeline struct {
	digest *summarizer.Digest
	err    error

	calls   int
	keyword string
}

func (p *stubPipeline) Run(_ context.Context, keyword string) (*summarizer.Digest, error) {
	p.calls++
	p.keyword = keyword
	return p.digest, p.err
}

func sampleDigest() *summarizer.Digest {
	return &summarizer.Digest{
		OverallSummary: "Mostly positive.",
		TopPraise:      "Battery",
		TopPain:        "Price",
		TopIntensity:   "Mild",
		PraisePoints:   []summarizer.Point{{Text: "Lasts days", Source: "battery lasts days"}},
		PainPoints:     []summarizer.Point{},
		Variant:        summarizer.VariantBasic,
	}
}

func newTestServer(t *testing.T, p Pipeline) (*Server, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	return New(Config{Addr: ":0"}, p, metrics.New().Handler(), logger), hook
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestVibecheckSuccess(t *testing.T) {
	p := &stubPipeline{digest: sampleDigest()}
	s, _ := newTestServer(t, p)

	rec := do(t, s, http.MethodPost, "/api/vibecheck", `{"query": "wireless earbuds"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "wireless earbuds", p.keyword)

	got, err := summarizer.ParseDigest(rec.Body.String(), summarizer.VariantBasic)
	require.NoError(t, err)
	assert.Equal(t, sampleDigest(), got)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "requestedFeatures", "basic digests omit feature fields")
	assert.Contains(t, raw, "painPoints")
}

func TestVibecheckExtendedDigestWithoutFeatures(t *testing.T) {
	digest := &summarizer.Digest{
		OverallSummary:    "Mixed.",
		TopPraise:         "Sound",
		TopPain:           "Fit",
		TopIntensity:      "Moderate",
		PraisePoints:      []summarizer.Point{},
		PainPoints:        []summarizer.Point{},
		RequestedFeatures: nil,
		Variant:           summarizer.VariantExtended,
	}
	s, _ := newTestServer(t, &stubPipeline{digest: digest})

	rec := do(t, s, http.MethodPost, "/api/vibecheck", `{"query": "earbuds"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"topRequestedFeature":""`)
	assert.Contains(t, rec.Body.String(), `"requestedFeatures":[]`)

	got, err := summarizer.ParseDigest(rec.Body.String(), summarizer.VariantExtended)
	require.NoError(t, err)
	assert.Empty(t, got.RequestedFeatures)
	assert.Equal(t, "Mixed.", got.OverallSummary)
}

func TestVibecheckMissingQuery(t *testing.T) {
	bodies := map[string]string{
		"empty body":       ``,
		"not json":         `query=headphones`,
		"no query field":   `{"q": "headphones"}`,
		"null query":       `{"query": null}`,
		"numeric query":    `{"query": 42}`,
		"blank query":      `{"query": "   "}`,
		"json array":       `["headphones"]`,
		"empty json value": `{}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			p := &stubPipeline{digest: sampleDigest()}
			s, _ := newTestServer(t, p)

			rec := do(t, s, http.MethodPost, "/api/vibecheck", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Missing query"}`, rec.Body.String())
			assert.Zero(t, p.calls, "pipeline must not run for invalid input")
		})
	}
}

func TestVibecheckMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, &stubPipeline{})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := do(t, s, method, "/api/vibecheck", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
	}
}

func TestVibecheckPipelineFailureHidesDetail(t *testing.T) {
	kinds := []runner.Kind{
		runner.KindUpstreamSourceFailure,
		runner.KindCompletionServiceFailure,
		runner.KindMalformedDigest,
	}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			secret := errors.New("token sk-live-123 rejected by upstream")
			p := &stubPipeline{err: &runner.Error{Kind: kind, Err: secret}}
			s, hook := newTestServer(t, p)

			rec := do(t, s, http.MethodPost, "/api/vibecheck", `{"query": "headphones"}`)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"error":"AI summarization failed"}`, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "sk-live-123")

			var logged bool
			for _, e := range hook.AllEntries() {
				if e.Message == "Vibecheck failed" {
					logged = true
					assert.Equal(t, string(kind), e.Data["kind"])
				}
			}
			assert.True(t, logged, "expected the failure kind to be logged")
		})
	}
}

func TestVibecheckInvalidInputFromPipeline(t *testing.T) {
	p := &stubPipeline{err: &runner.Error{Kind: runner.KindInvalidInput, Err: fmt.Errorf("bad")}}
	s, _ := newTestServer(t, p)

	rec := do(t, s, http.MethodPost, "/api/vibecheck", `{"query": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing query"}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &stubPipeline{})

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.Runs.WithLabelValues("ok").Inc()
	logger, _ := logtest.NewNullLogger()
	s := New(Config{}, &stubPipeline{}, m.Handler(), logger)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `vibecheck_runs_total{outcome="ok"} 1`)
}

func TestRequestLogging(t *testing.T) {
	s, hook := newTestServer(t, &stubPipeline{})

	do(t, s, http.MethodGet, "/healthz", "")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "HTTP request", entry.Message)
	assert.Equal(t, http.StatusOK, entry.Data["status"])
	assert.Equal(t, "/healthz", entry.Data["path"])
	assert.NotEmpty(t, entry.Data["request_id"])
}

func TestCORS(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	s := New(Config{CORSOrigins: []string{"https://app.example.com"}}, &stubPipeline{digest: sampleDigest()}, nil, logger)

	req := httptest.NewRequest(http.MethodOptions, "/api/vibecheck", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
