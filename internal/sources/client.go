package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"law_arch/internal/errs"
)

const MaxHops = 15

// ErrDisallowed is returned when robots.txt forbids the path.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Payload is one raw response body.
type Payload struct {
	URL         string
	ContentType string
	Body        []byte
}

type ClientOptions struct {
	UserAgent       string
	Timeout         time.Duration
	Delay           time.Duration
	BreakerFailures uint32
	RespectRobots   bool
	Logger          *zap.Logger
	// Transport replaces the default transport, mostly for tests.
	Transport http.RoundTripper
}

// Client performs every request of one source. Requests wait on a shared
// limiter, so all jobs of a jurisdiction together respect its delay.
type Client struct {
	http      *http.Client
	userAgent string
	delay     time.Duration
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger

	respectRobots bool
	robotsMu      sync.Mutex
	robots        map[string]*robotstxt.Group
}

func NewClient(opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	c := &Client{
		http: &http.Client{
			Transport: opts.Transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= MaxHops {
					return fmt.Errorf("stopped after %d redirects", MaxHops)
				}
				return nil
			},
		},
		userAgent:     opts.UserAgent,
		delay:         opts.Delay,
		limiter:       rate.NewLimiter(limit, 1),
		logger:        logger,
		respectRobots: opts.RespectRobots,
		robots:        make(map[string]*robotstxt.Group),
	}
	if opts.BreakerFailures > 0 {
		threshold := opts.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        opts.UserAgent,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("from", from.String()), zap.String("to", to.String()))
			},
			// Only transient failures say anything about the health of the host.
			IsSuccessful: func(err error) bool {
				return err == nil || !errs.IsTransient(err)
			},
		})
	}
	return c
}

func (c *Client) UserAgent() string { return c.userAgent }

func (c *Client) Delay() time.Duration { return c.delay }

// Wait blocks until the limiter admits one more request.
func (c *Client) Wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// Get fetches rawURL. Text bodies are decoded to UTF-8; anything else is
// returned as is.
func (c *Client) Get(ctx context.Context, rawURL string) (*Payload, error) {
	if err := c.checkRobots(ctx, rawURL); err != nil {
		return nil, err
	}
	if c.breaker == nil {
		return c.do(ctx, rawURL)
	}
	out, err := c.breaker.Execute(func() (any, error) {
		return c.do(ctx, rawURL)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &errs.FetchError{URL: rawURL, Transient: true, Err: err}
	}
	if err != nil {
		return nil, err
	}
	return out.(*Payload), nil
}

func (c *Client) do(ctx context.Context, rawURL string) (*Payload, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &errs.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Connection resets and timeouts both land here.
		return nil, &errs.FetchError{URL: rawURL, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("fetched",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if err := statusError(rawURL, resp.StatusCode); err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	var body io.Reader = resp.Body
	if isText(contentType) {
		if utf8Reader, err := charset.NewReader(resp.Body, contentType); err == nil {
			body = utf8Reader
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &errs.FetchError{URL: rawURL, Transient: true, Err: err}
	}
	return &Payload{URL: rawURL, ContentType: contentType, Body: data}, nil
}

func statusError(rawURL string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return &errs.NotFoundError{URL: rawURL}
	case status == http.StatusTooManyRequests, status >= 500:
		return &errs.FetchError{URL: rawURL, StatusCode: status, Transient: true}
	}
	return &errs.FetchError{URL: rawURL, StatusCode: status}
}

func isText(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "text/plain" || mediaType == "application/xhtml+xml"
}

func (c *Client) checkRobots(ctx context.Context, rawURL string) error {
	if !c.respectRobots {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return &errs.FetchError{URL: rawURL, Err: err}
	}
	group := c.robotsGroup(ctx, u)
	if group != nil && !group.Test(u.Path) {
		return &errs.FetchError{URL: rawURL, Err: ErrDisallowed}
	}
	return nil
}

// robotsGroup loads robots.txt once per host. The request waits on the
// limiter like any other. A missing or broken file allows everything; a
// network failure allows this request and is retried on the next one.
func (c *Client) robotsGroup(ctx context.Context, u *url.URL) *robotstxt.Group {
	c.robotsMu.Lock()
	defer c.robotsMu.Unlock()

	if group, ok := c.robots[u.Host]; ok {
		return group
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	if err := c.Wait(ctx); err != nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("robots.txt unavailable", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	data, err := robotstxt.FromResponse(resp)
	resp.Body.Close()

	var group *robotstxt.Group
	if err != nil {
		c.logger.Warn("robots.txt unparseable", zap.String("url", robotsURL), zap.Error(err))
	} else {
		group = data.FindGroup(c.userAgent)
	}
	c.robots[u.Host] = group
	return group
}

func joinPath(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
