package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptrace"
	"time"
)

// maxRedirects caps the redirect chain followed for one request
const maxRedirects = 10

var errTooManyRedirects = errors.New("too many redirects")

// HTTPClient fetches HTML pages over HTTP and records timing metrics
type HTTPClient struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64 // 0 disables the limit
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(userAgent string, timeout time.Duration, maxBodySize int64) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}

	return &HTTPClient{
		client:      client,
		userAgent:   userAgent,
		maxBodySize: maxBodySize,
	}
}

// Fetch performs an HTTP GET and returns the page when the response is a
// 2xx HTML document. Every failure is a *FetchError.
func (h *HTTPClient) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Kind: KindNetwork, Err: err}
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	var firstByteTime time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByteTime = time.Now()
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	startTime := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Kind: KindNetwork, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Kind: KindHTTPStatus, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, &FetchError{
			URL:  url,
			Kind: KindContentType,
			Err:  fmt.Errorf("unsupported content type %q", contentType),
		}
	}

	body, err := h.readBody(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Kind: KindBodyRead, Err: err}
	}

	page := &Page{
		URL:          url,
		FinalURL:     resp.Request.URL.String(),
		StatusCode:   resp.StatusCode,
		ContentType:  contentType,
		Body:         body,
		DownloadTime: time.Since(startTime),
		FetchedAt:    time.Now().UTC(),
	}
	if !firstByteTime.IsZero() {
		page.TTFB = firstByteTime.Sub(startTime)
	}

	return page, nil
}

func (h *HTTPClient) readBody(r io.Reader) ([]byte, error) {
	if h.maxBodySize <= 0 {
		return io.ReadAll(r)
	}

	body, err := io.ReadAll(io.LimitReader(r, h.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > h.maxBodySize {
		return nil, fmt.Errorf("body exceeds %d bytes", h.maxBodySize)
	}
	return body, nil
}

// Close closes the HTTP client
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
