package weibo

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/encoding/simplifiedchinese"
	errs "wbscraper/pkg/errors"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/retry"
)

// Observer receives one call per HTTP attempt. status is zero when the
// request failed before a response arrived.
type Observer interface {
	ObserveRequest(endpoint string, status int, duration time.Duration)
}

// Options configures a Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// InsecureSkipVerify disables certificate and hostname checks. The API's
	// certificate chain is not always accepted by stock trust stores, so this
	// defaults to on in the configuration; turn it off where the chain
	// verifies.
	InsecureSkipVerify bool
	// Cookie is sent verbatim with API requests when set
	Cookie   string
	Retry    *retry.Config
	Logger   logger.Logger
	Observer Observer
}

// Client talks to the mobile JSON API and downloads images
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	retry      *retry.Config
	logger     logger.Logger
	observer   Observer
}

// NewClient creates a new API client
func NewClient(opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15"
	}

	headers := map[string]string{
		"User-Agent": ua,
		"Accept":     "application/json, text/plain, */*",
	}
	if opts.Cookie != "" {
		headers["Cookie"] = opts.Cookie
	}

	rc := opts.Retry
	if rc == nil {
		rc = retry.ConstantConfig(3, 2*time.Second, log)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			Jar:       jar,
		},
		headers:  headers,
		baseURL:  trimBase(opts.BaseURL),
		retry:    rc,
		logger:   log,
		observer: opts.Observer,
	}, nil
}

// BaseURL returns the API host the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch performs a GET with the client's headers plus extra, retrying
// transport failures, throttling and server errors under the retry policy.
// Any non-2xx status becomes a network error.
func (c *Client) Fetch(ctx context.Context, url string, extra map[string]string) ([]byte, error) {
	return retry.DoWithResult(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.fetchOnce(ctx, url, extra)
	})
}

func (c *Client) fetchOnce(ctx context.Context, url string, extra map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeValidation, err, "failed to create request")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	endpoint := endpointLabel(req.URL.Path)

	if err != nil {
		c.observe(endpoint, 0, duration)
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "request failed")
	}
	defer resp.Body.Close()

	c.observe(endpoint, resp.StatusCode, duration)
	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, duration)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errs.FromStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}
	return body, nil
}

func (c *Client) observe(endpoint string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, status, d)
	}
}

func endpointLabel(path string) string {
	switch {
	case strings.HasSuffix(path, ListingEndpoint):
		return "listing"
	case strings.HasSuffix(path, LongTextEndpoint):
		return "long_text"
	default:
		return "image"
	}
}

// DecodeBody turns response bytes into text. UTF-8 is tried first, then
// GBK, then UTF-8 with invalid sequences replaced.
func DecodeBody(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	if decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(b); err == nil && !strings.ContainsRune(string(decoded), utf8.RuneError) {
		return string(decoded)
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// GetJSON fetches url and decodes the body into target
func (c *Client) GetJSON(ctx context.Context, url string, extra map[string]string, target interface{}) error {
	body, err := c.Fetch(ctx, url, extra)
	if err != nil {
		return err
	}

	text := DecodeBody(body)
	if err := json.Unmarshal([]byte(text), target); err != nil {
		preview := text
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.Wrap(errs.ErrorTypeDecode, err, "failed to parse JSON")
	}
	return nil
}

// FetchListing fetches one page of a user's timeline. A payload whose ok flag
// is not 1 is reported as a decode error.
func (c *Client) FetchListing(ctx context.Context, userID string, page int) (*ListingResponse, error) {
	url := ListingURL(c.baseURL, userID, page)
	c.logger.DebugWithFields("fetching listing page", map[string]interface{}{
		"user_id": userID,
		"page":    page,
	})

	var resp ListingResponse
	if err := c.GetJSON(ctx, url, map[string]string{"Referer": ProfileURL(userID)}, &resp); err != nil {
		return nil, err
	}
	if resp.OK != 1 {
		return &resp, errs.New(errs.ErrorTypeDecode, "listing page %d not ok: %s", page, resp.Msg)
	}
	return &resp, nil
}

// FetchLongText fetches the untruncated body of a post. The returned text is
// raw markup and still needs normalizing.
func (c *Client) FetchLongText(ctx context.Context, postID string) (string, error) {
	var resp LongTextResponse
	if err := c.GetJSON(ctx, LongTextURL(c.baseURL, postID), nil, &resp); err != nil {
		return "", err
	}
	if resp.OK != 1 || resp.Data.LongTextContent == "" {
		return "", errs.New(errs.ErrorTypeDecode, "no full text for post %s", postID)
	}
	return resp.Data.LongTextContent, nil
}

// Download fetches an image
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, error) {
	data, err := c.Fetch(ctx, imageURL, map[string]string{"Referer": BaseURL + "/"})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errs.New(errs.ErrorTypeNetwork, "empty image body from %s", imageURL)
	}
	return data, nil
}
