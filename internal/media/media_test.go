package media

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/reelbot/internal/config"
)

func TestExtractRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		wantOK   bool
		wantKind string
		wantCode string
		wantURL  string
	}{
		{"https://instagram.com/p/ABC123/", true, "p", "ABC123", "https://instagram.com/p/ABC123/"},
		{"https://www.instagram.com/reel/xyz_9-8", true, "reel", "xyz_9-8", "https://www.instagram.com/reel/xyz_9-8"},
		{"look http://www.instagram.com/tv/Q1w2/?igsh=abc thanks", true, "tv", "Q1w2", "http://www.instagram.com/tv/Q1w2/"},
		{"https://www.instagram.com/reels/Cq9/", true, "reels", "Cq9", "https://www.instagram.com/reels/Cq9/"},
		{"two https://instagram.com/p/FIRST/ https://instagram.com/p/SECOND/", true, "p", "FIRST", "https://instagram.com/p/FIRST/"},
		{"https://instagram.com/explore/tags/x", false, "", "", ""},
		{"https://instagram.com/someuser/", false, "", "", ""},
		{"hello", false, "", "", ""},
		{"", false, "", "", ""},
	}

	for _, tt := range tests {
		ref, ok := ExtractRef(tt.text)
		assert.Equal(t, tt.wantOK, ok, tt.text)
		assert.Equal(t, tt.wantKind, ref.Kind, tt.text)
		assert.Equal(t, tt.wantCode, ref.Code, tt.text)
		assert.Equal(t, tt.wantURL, ref.URL, tt.text)
	}
}

func TestContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", ContentType(nil))
	assert.Equal(t, "photo", ContentType([]Item{{Kind: Photo}, {Kind: Photo}}))
	assert.Equal(t, "video", ContentType([]Item{{Kind: Video}}))
	assert.Equal(t, "mixed", ContentType([]Item{{Kind: Photo}, {Kind: Video}}))
}

// fakeService serves the resolution API at /api and media files at /media/.
type fakeService struct {
	*httptest.Server
	apiCalls atomic.Int32
	api      func(w http.ResponseWriter, r *http.Request, call int32)
}

func newFakeService(t *testing.T, api func(w http.ResponseWriter, r *http.Request, call int32)) *fakeService {
	t.Helper()
	fs := &fakeService{api: api}
	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		fs.api(w, r, fs.apiCalls.Add(1))
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ".mp4"):
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = w.Write([]byte("video-bytes"))
		case strings.HasSuffix(r.URL.Path, "/missing.jpg"):
			http.NotFound(w, r)
		case strings.HasSuffix(r.URL.Path, "/big.jpg"):
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		}
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeService) fetcher(mutate func(*config.MediaConfig)) *Fetcher {
	cfg := config.MediaConfig{
		APIURL:        fs.URL + "/api",
		APIKey:        "secret",
		UserAgent:     "test",
		Timeout:       5 * time.Second,
		MaxRetryWait:  10 * time.Millisecond,
		MaxConcurrent: 2,
		MaxFileSize:   32,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewFetcher(cfg, fs.Client(), nil)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

var testRef = ContentRef{Kind: "p", Code: "VALID1", URL: "https://instagram.com/p/VALID1/"}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	var fs *fakeService
	fs = newFakeService(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		assert.Equal(t, testRef.URL, r.URL.Query().Get("url"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, fmt.Sprintf(
			`[{"url":"%[1]s/media/a.jpg","type":"image"},{"url":"%[1]s/media/b.mp4","type":"video"},{"url":"%[1]s/media/c","type":""}]`,
			fs.URL))
	})

	dir := t.TempDir()
	items, ferr := fs.fetcher(nil).Fetch(context.Background(), testRef, dir)
	require.Nil(t, ferr)
	require.Len(t, items, 3)

	assert.Equal(t, Photo, items[0].Kind)
	assert.Equal(t, Video, items[1].Kind)
	assert.Equal(t, Photo, items[2].Kind, "kind falls back to the Content-Type")
	for _, it := range items {
		assert.True(t, strings.HasPrefix(it.Path, dir))
		data, err := os.ReadFile(it.Path)
		require.NoError(t, err)
		assert.Equal(t, it.Size, int64(len(data)))
	}
}

func TestFetchFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		api      func(base string) (int, string)
		want     FailureKind
		apiCalls int32
	}{
		{"private account", func(string) (int, string) {
			return http.StatusForbidden, `{"error":"This account is private"}`
		}, PrivateContent, 1},
		{"missing post", func(string) (int, string) {
			return http.StatusNotFound, `{"detail":"Post not found"}`
		}, ContentMissing, 1},
		{"login wall", func(string) (int, string) {
			return http.StatusOK, `{"error":"Login required to view this media"}`
		}, LoginRequired, 1},
		{"empty list", func(string) (int, string) {
			return http.StatusOK, `[]`
		}, EmptyResult, 1},
		{"garbage body", func(string) (int, string) {
			return http.StatusOK, `<html>oops</html>`
		}, UnknownError, 1},
		{"upstream down", func(string) (int, string) {
			return http.StatusBadGateway, ``
		}, ConnectionError, 1},
		{"rate limited twice", func(string) (int, string) {
			return http.StatusTooManyRequests, `{"error":"too many requests"}`
		}, RateLimited, 2},
		{"media host 404", func(base string) (int, string) {
			return http.StatusOK, fmt.Sprintf(`[{"url":"%s/media/missing.jpg","type":"image"}]`, base)
		}, ContentMissing, 1},
		{"file over size limit", func(base string) (int, string) {
			return http.StatusOK, fmt.Sprintf(`[{"url":"%s/media/big.jpg","type":"image"}]`, base)
		}, UnknownError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var fs *fakeService
			fs = newFakeService(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
				status, body := tt.api(fs.URL)
				writeJSON(w, status, body)
			})

			items, ferr := fs.fetcher(nil).Fetch(context.Background(), testRef, t.TempDir())
			assert.Nil(t, items)
			require.NotNil(t, ferr)
			assert.Equal(t, tt.want, ferr.Kind, ferr.Error())
			assert.Equal(t, tt.apiCalls, fs.apiCalls.Load())
		})
	}
}

func TestFetchRetriesRateLimitOnce(t *testing.T) {
	t.Parallel()

	var fs *fakeService
	fs = newFakeService(t, func(w http.ResponseWriter, _ *http.Request, call int32) {
		if call == 1 {
			w.Header().Set("Retry-After", "3600")
			writeJSON(w, http.StatusTooManyRequests, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, fmt.Sprintf(`[{"url":"%s/media/a.jpg","type":"image"}]`, fs.URL))
	})

	start := time.Now()
	items, ferr := fs.fetcher(nil).Fetch(context.Background(), testRef, t.TempDir())
	require.Nil(t, ferr)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(2), fs.apiCalls.Load())
	assert.Less(t, time.Since(start), 2*time.Second, "Retry-After is capped")
}

func TestFetchConnectionError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	f := NewFetcher(config.MediaConfig{APIURL: base + "/api", Timeout: time.Second, MaxConcurrent: 1}, nil, nil)
	_, ferr := f.Fetch(context.Background(), testRef, t.TempDir())
	require.NotNil(t, ferr)
	assert.Equal(t, ConnectionError, ferr.Kind)
}

func TestFetchWaitsForSlot(t *testing.T) {
	t.Parallel()

	f := NewFetcher(config.MediaConfig{APIURL: "http://127.0.0.1:1/api", MaxConcurrent: 1}, nil, nil)
	require.NoError(t, f.sem.Acquire(context.Background(), 1))
	defer f.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ferr := f.Fetch(ctx, testRef, t.TempDir())
	require.NotNil(t, ferr)
	assert.Equal(t, ConnectionError, ferr.Kind)
	assert.ErrorIs(t, ferr, context.DeadlineExceeded)
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
	assert.Greater(t, parseRetryAfter(time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)), 30*time.Second)
}

func TestClassifyStatusKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	body := "x" + strings.Repeat("é", 300)
	ferr := classifyStatus(&http.Response{StatusCode: http.StatusInternalServerError, Header: http.Header{}}, []byte(body))

	require.NotNil(t, ferr)
	assert.Equal(t, UnknownError, ferr.Kind)
	assert.True(t, utf8.ValidString(ferr.Detail), ferr.Detail)
	assert.Contains(t, ferr.Detail, "x"+strings.Repeat("é", 199)+"...")
	assert.NotContains(t, ferr.Detail, strings.Repeat("é", 200))
}
