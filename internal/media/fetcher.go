package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/logger"
)

// ItemKind selects the send operation for an item.
type ItemKind int

const (
	Photo ItemKind = iota
	Video
)

func (k ItemKind) String() string {
	if k == Video {
		return "video"
	}
	return "photo"
}

// Item is one downloaded file.
type Item struct {
	Kind      ItemKind
	Path      string
	SourceURL string
	Size      int64
}

// ContentType summarizes items for the download record.
func ContentType(items []Item) string {
	if len(items) == 0 {
		return ""
	}
	kind := items[0].Kind
	for _, it := range items[1:] {
		if it.Kind != kind {
			return "mixed"
		}
	}
	return kind.String()
}

// descriptor is one entry of the resolution API response.
type descriptor struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// apiError is the object the resolution API returns instead of a list.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (e apiError) text() string {
	return strings.TrimSpace(strings.Join([]string{e.Error, e.Message, e.Detail}, " "))
}

// Fetcher resolves content links and downloads their media.
type Fetcher struct {
	httpClient   *http.Client
	logger       *slog.Logger
	apiURL       string
	apiKey       string
	userAgent    string
	timeout      time.Duration
	maxRetryWait time.Duration
	maxFileSize  int64
	sem          *semaphore.Weighted
}

// NewFetcher builds a Fetcher from config. httpClient may be nil.
func NewFetcher(cfg config.MediaConfig, httpClient *http.Client, log *slog.Logger) *Fetcher {
	if log == nil {
		log = logger.Discard()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = config.DefaultMediaMaxConcurrent
	}
	return &Fetcher{
		httpClient:   httpClient,
		logger:       log.With("component", "media_fetcher"),
		apiURL:       cfg.APIURL,
		apiKey:       cfg.APIKey,
		userAgent:    cfg.UserAgent,
		timeout:      cfg.Timeout,
		maxRetryWait: cfg.MaxRetryWait,
		maxFileSize:  cfg.MaxFileSize,
		sem:          semaphore.NewWeighted(maxConcurrent),
	}
}

// Fetch resolves ref and downloads every media file into dir, which the
// caller creates and removes. At most media.max_concurrent fetches run at
// once; callers beyond that wait, honouring ctx.
func (f *Fetcher) Fetch(ctx context.Context, ref ContentRef, dir string) ([]Item, *FetchError) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, fail(ConnectionError, err, "waiting for a fetch slot")
	}
	defer f.sem.Release(1)

	log := f.logger.With("content_url", ref.URL, "code", ref.Code)
	start := time.Now()

	descriptors, ferr := f.resolve(ctx, ref)
	if ferr != nil && ferr.Kind.Retryable() {
		wait := ferr.RetryAfter
		if f.maxRetryWait > 0 && (wait <= 0 || wait > f.maxRetryWait) {
			wait = f.maxRetryWait
		}
		log.WarnContext(ctx, "Resolution API rate limited, retrying once", "wait", wait)
		if err := sleep(ctx, wait); err != nil {
			return nil, ferr
		}
		descriptors, ferr = f.resolve(ctx, ref)
	}
	if ferr != nil {
		log.WarnContext(ctx, "Resolution failed", "kind", ferr.Kind, "error", ferr)
		return nil, ferr
	}
	if len(descriptors) == 0 {
		return nil, fail(EmptyResult, nil, "resolution API returned no media")
	}

	items := make([]Item, len(descriptors))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, d := range descriptors {
		g.Go(func() error {
			item, ferr := f.download(gCtx, d, dir, i)
			if ferr != nil {
				return ferr
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var ferr *FetchError
		if !errors.As(err, &ferr) {
			ferr = fail(UnknownError, err, "downloading media")
		}
		log.WarnContext(ctx, "Media download failed", "kind", ferr.Kind, "error", ferr)
		return nil, ferr
	}

	log.InfoContext(ctx, "Media fetched", "items", len(items), "duration", time.Since(start))
	return items, nil
}

func (f *Fetcher) resolve(ctx context.Context, ref ContentRef) ([]descriptor, *FetchError) {
	endpoint, err := url.Parse(f.apiURL)
	if err != nil {
		return nil, fail(UnknownError, err, "invalid resolution API url")
	}
	q := endpoint.Query()
	q.Set("url", ref.URL)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fail(UnknownError, err, "building resolution request")
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fail(ConnectionError, err, "calling resolution API")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fail(ConnectionError, err, "reading resolution response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp, body)
	}

	trimmed := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var list []descriptor
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fail(UnknownError, err, "decoding resolution response")
		}
		out := list[:0]
		for _, d := range list {
			if d.URL != "" {
				out = append(out, d)
			}
		}
		return out, nil
	case strings.HasPrefix(trimmed, "{"):
		var single struct {
			descriptor
			apiError
		}
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fail(UnknownError, err, "decoding resolution response")
		}
		if single.URL != "" {
			return []descriptor{single.descriptor}, nil
		}
		if kind, ok := kindFromMessage(single.apiError.text()); ok {
			return nil, fail(kind, nil, "resolution API: %s", single.apiError.text())
		}
		return nil, fail(UnknownError, nil, "resolution API: %s", single.apiError.text())
	default:
		return nil, fail(UnknownError, nil, "unexpected resolution response %q", truncate(trimmed, 100))
	}
}

func classifyStatus(resp *http.Response, body []byte) *FetchError {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	text := apiErr.text()
	if text == "" {
		text = strings.TrimSpace(string(body))
	}
	text = truncate(text, 200)

	var kind FailureKind
	switch status := resp.StatusCode; {
	case status == http.StatusTooManyRequests:
		kind = RateLimited
	case status == http.StatusNotFound || status == http.StatusGone:
		kind = ContentMissing
	case status == http.StatusUnauthorized:
		kind = LoginRequired
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		kind = ConnectionError
	default:
		kind = UnknownError
	}
	if k, ok := kindFromMessage(text); ok && kind != RateLimited {
		kind = k
	}

	ferr := fail(kind, nil, "resolution API status %d: %s", resp.StatusCode, text)
	if kind == RateLimited {
		ferr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return ferr
}

func (f *Fetcher) download(ctx context.Context, d descriptor, dir string, index int) (Item, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return Item{}, fail(UnknownError, err, "building media request")
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Item{}, fail(ConnectionError, err, "downloading media %d", index)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		ferr := fail(RateLimited, nil, "media host status %d", resp.StatusCode)
		ferr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return Item{}, ferr
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return Item{}, fail(ContentMissing, nil, "media host status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Item{}, fail(UnknownError, nil, "media host status %d", resp.StatusCode)
	}

	if f.maxFileSize > 0 && resp.ContentLength > f.maxFileSize {
		return Item{}, fail(UnknownError, nil, "media %d is %d bytes, limit is %d", index, resp.ContentLength, f.maxFileSize)
	}

	kind := itemKind(d.Type, resp.Header.Get("Content-Type"), d.URL)
	name := filepath.Join(dir, fmt.Sprintf("%02d%s", index, extension(kind, resp.Header.Get("Content-Type"), d.URL)))

	file, err := os.Create(name)
	if err != nil {
		return Item{}, fail(UnknownError, err, "creating temp file")
	}
	defer file.Close()

	var src io.Reader = resp.Body
	if f.maxFileSize > 0 {
		src = io.LimitReader(resp.Body, f.maxFileSize+1)
	}
	n, err := io.Copy(file, src)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return Item{}, fail(ConnectionError, err, "downloading media %d", index)
		}
		return Item{}, fail(UnknownError, err, "writing media %d", index)
	}
	if f.maxFileSize > 0 && n > f.maxFileSize {
		return Item{}, fail(UnknownError, nil, "media %d exceeds %d bytes", index, f.maxFileSize)
	}
	if n == 0 {
		return Item{}, fail(EmptyResult, nil, "media %d is empty", index)
	}

	return Item{Kind: kind, Path: name, SourceURL: d.URL, Size: n}, nil
}

var videoExtensions = map[string]bool{".mp4": true, ".mov": true, ".m4v": true, ".webm": true}

func itemKind(apiType, contentType, rawURL string) ItemKind {
	switch strings.ToLower(apiType) {
	case "video", "reel":
		return Video
	case "image", "photo", "picture":
		return Photo
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case strings.HasPrefix(mediaType, "video/"):
			return Video
		case strings.HasPrefix(mediaType, "image/"):
			return Photo
		}
	}
	if videoExtensions[urlExtension(rawURL)] {
		return Video
	}
	return Photo
}

func extension(kind ItemKind, contentType, rawURL string) string {
	if ext := urlExtension(rawURL); ext != "" && len(ext) <= 5 {
		return ext
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	if kind == Video {
		return ".mp4"
	}
	return ".jpg"
}

func urlExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 || ctx.Err() != nil {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
