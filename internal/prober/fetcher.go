package prober

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
)

const defaultMaxRedirects = 10

// Fetcher returns the HTTP status code served at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (int, error)
}

// FetcherOptions configures the HTTP client used for probing.
type FetcherOptions struct {
	FollowRedirects    bool
	MaxRedirects       int
	InsecureSkipVerify bool
	UserAgent          string
}

// HTTPFetcher is a Fetcher that issues a GET request.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a fetcher from opts. Timeouts come from the
// request context.
func NewHTTPFetcher(opts FetcherOptions) *HTTPFetcher {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = defaultMaxRedirects
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}
	transport.MaxIdleConnsPerHost = 2

	return &HTTPFetcher{
		userAgent: opts.UserAgent,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if !opts.FollowRedirects || len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch performs a GET on url and returns the response status code.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	// Drain a little so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))

	return res.StatusCode, nil
}
