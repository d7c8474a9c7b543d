package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nijaru/yt-itinerary/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVideoID = "dQw4w9WgXcQ"

// fakeMirror serves the mirror API for one video and counts metadata hits.
type fakeMirror struct {
	*httptest.Server
	hits atomic.Int32
}

func newFakeMirror(t *testing.T, status int, captionsJSON, payload string) *fakeMirror {
	t.Helper()
	m := &fakeMirror{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/videos/"+testVideoID, func(w http.ResponseWriter, r *http.Request) {
		m.hits.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"title":"Trip","captions":%s}`, captionsJSON)
	})
	mux.HandleFunc("/api/v1/captions/"+testVideoID, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/vtt")
		fmt.Fprint(w, payload)
	})
	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Server.Close)
	return m
}

const parisPayload = "WEBVTT\nKind: captions\nLanguage: en\n\n1\n00:00:00.000 --> 00:00:01.500\nVisit\n\n2\n00:00:01.500 --> 00:00:03.000\nParis\n"

func englishCaptions() string {
	return `[{"language":"French","code":"fr","url":"/api/v1/captions/` + testVideoID + `?label=French"},` +
		`{"language":"English","code":"en","url":"/api/v1/captions/` + testVideoID + `?label=English"}]`
}

func failingPrimary(calls *int) Primary {
	return PrimaryFunc(func(ctx context.Context, videoID string) ([]Fragment, error) {
		*calls++
		return nil, errors.New("too many requests")
	})
}

func TestResolve_PrimarySuccessSkipsMirrors(t *testing.T) {
	mirror := newFakeMirror(t, http.StatusOK, englishCaptions(), parisPayload)
	primary := PrimaryFunc(func(ctx context.Context, videoID string) ([]Fragment, error) {
		assert.Equal(t, testVideoID, videoID)
		return []Fragment{{Text: "Hello"}, {Text: "world"}}, nil
	})

	r := NewResolver(primary, NewMirrors(mirror.URL))
	text, err := r.Resolve(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
	assert.Zero(t, mirror.hits.Load())
}

func TestResolve_FallsBackInOrder(t *testing.T) {
	first := newFakeMirror(t, http.StatusForbidden, "", "")
	second := newFakeMirror(t, http.StatusServiceUnavailable, "", "")
	third := newFakeMirror(t, http.StatusOK, englishCaptions(), parisPayload)
	fourth := newFakeMirror(t, http.StatusOK, englishCaptions(), parisPayload)

	primaryCalls := 0
	reg := metrics.New()
	r := NewResolver(failingPrimary(&primaryCalls),
		NewMirrors(first.URL, second.URL, third.URL, fourth.URL),
		WithMetrics(reg),
	)

	text, err := r.Resolve(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, "Visit Paris", text)
	assert.Equal(t, 1, primaryCalls)
	assert.EqualValues(t, 1, first.hits.Load())
	assert.EqualValues(t, 1, second.hits.Load())
	assert.EqualValues(t, 1, third.hits.Load())
	assert.Zero(t, fourth.hits.Load())

	assert.Contains(t, scrape(t, reg), `trip_transcript_results_total{outcome="failure",source="mirror"} 2`)
}

func TestResolve_AllMirrorsFail(t *testing.T) {
	first := newFakeMirror(t, http.StatusInternalServerError, "", "")
	second := newFakeMirror(t, http.StatusNotFound, "", "")

	primaryCalls := 0
	r := NewResolver(failingPrimary(&primaryCalls), NewMirrors(first.URL, second.URL))

	text, err := r.Resolve(context.Background(), testVideoID)

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Empty(t, text)
	assert.EqualValues(t, 1, first.hits.Load())
	assert.EqualValues(t, 1, second.hits.Load())
}

func TestResolve_NoMirrorsConfigured(t *testing.T) {
	primaryCalls := 0
	r := NewResolver(failingPrimary(&primaryCalls), NewMirrors())

	_, err := r.Resolve(context.Background(), testVideoID)

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, primaryCalls)
}

func TestResolve_NilPrimaryUsesMirrors(t *testing.T) {
	mirror := newFakeMirror(t, http.StatusOK, englishCaptions(), parisPayload)

	r := NewResolver(nil, NewMirrors(mirror.URL+"/"))
	text, err := r.Resolve(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, "Visit Paris", text)
}

func TestResolve_EmptyPrimaryFallsBack(t *testing.T) {
	mirror := newFakeMirror(t, http.StatusOK, englishCaptions(), parisPayload)
	primary := PrimaryFunc(func(ctx context.Context, videoID string) ([]Fragment, error) {
		return []Fragment{{Text: " "}}, nil
	})

	r := NewResolver(primary, NewMirrors(mirror.URL))
	text, err := r.Resolve(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, "Visit Paris", text)
	assert.EqualValues(t, 1, mirror.hits.Load())
}

func TestResolve_MirrorWithoutEnglishCaptionFails(t *testing.T) {
	spanish := `[{"language":"Spanish","code":"es","url":"/api/v1/captions/` + testVideoID + `"}]`
	first := newFakeMirror(t, http.StatusOK, spanish, parisPayload)
	second := newFakeMirror(t, http.StatusOK, englishCaptions(), parisPayload)

	calls := 0
	r := NewResolver(failingPrimary(&calls), NewMirrors(first.URL, second.URL))
	text, err := r.Resolve(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, "Visit Paris", text)
	assert.EqualValues(t, 1, first.hits.Load())
}

func TestResolve_MirrorEmptyPayloadFails(t *testing.T) {
	first := newFakeMirror(t, http.StatusOK, englishCaptions(), "WEBVTT\n\n")

	calls := 0
	r := NewResolver(failingPrimary(&calls), NewMirrors(first.URL))
	_, err := r.Resolve(context.Background(), testVideoID)

	assert.ErrorIs(t, err, ErrExhausted)
}

func TestResolve_MirrorTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)
	fast := newFakeMirror(t, http.StatusOK, englishCaptions(), parisPayload)

	calls := 0
	r := NewResolver(failingPrimary(&calls), NewMirrors(slow.URL, fast.URL),
		WithMirrorTimeout(50*time.Millisecond),
	)

	start := time.Now()
	text, err := r.Resolve(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, "Visit Paris", text)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSelectEnglishCaption(t *testing.T) {
	tests := []struct {
		name     string
		captions []mirrorCaption
		wantURL  string
		wantOK   bool
	}{
		{"language name", []mirrorCaption{{Language: "English", URL: "a"}}, "a", true},
		{"code prefix", []mirrorCaption{{Language: "Deutsch", Code: "de"}, {Language: "English (UK)", Code: "en-GB", URL: "b"}}, "b", true},
		{"mirror field names", []mirrorCaption{{Label: "English (auto-generated)", LanguageCode: "en", URL: "c"}}, "c", true},
		{"first match wins", []mirrorCaption{{Code: "en", URL: "d"}, {Language: "English", URL: "e"}}, "d", true},
		{"none", []mirrorCaption{{Language: "Français", Code: "fr", URL: "f"}}, "", false},
		{"empty", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := selectEnglishCaption(tt.captions)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantURL, got.URL)
		})
	}
}

func TestResolveCaptionURL(t *testing.T) {
	base := "https://mirror.example"
	assert.Equal(t, "https://mirror.example/api/v1/captions/x", resolveCaptionURL(base, "/api/v1/captions/x"))
	assert.Equal(t, "https://mirror.example/api/v1/captions/x", resolveCaptionURL(base, "api/v1/captions/x"))
	assert.Equal(t, "https://cdn.example/x.vtt", resolveCaptionURL(base, "https://cdn.example/x.vtt"))
}

func TestNewMirrorsCopiesInput(t *testing.T) {
	urls := []string{"https://a.example/", " ", "https://b.example"}
	m := NewMirrors(urls...)
	urls[0] = "changed"

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, m.All())
	assert.Equal(t, 2, m.Len())
}

func scrape(t *testing.T, reg *metrics.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Body.String()
}
