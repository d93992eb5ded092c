// Package metadata resolves asset metadata locators into documents.
package metadata

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
)

// ErrUnavailable wraps every resolution failure.
var ErrUnavailable = errors.New("metadata unavailable")

const (
	DefaultGateway = "https://ipfs.io"
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBody caps a metadata document at 1 MiB.
	DefaultMaxBody int64 = 1 << 20
)

const (
	ipfsScheme     = "ipfs://"
	dataJSONBase64 = "data:application/json;base64,"
	dataJSONPlain  = "data:application/json,"
)

// Document is the JSON metadata an asset's token URI points at.
type Document struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Image       string      `json:"image,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

type Attribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

type ResolverOpt func(r *Resolver)

func WithGateway(gateway string) ResolverOpt {
	return func(r *Resolver) {
		if gateway != "" {
			r.gateway = strings.TrimRight(gateway, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) ResolverOpt {
	return func(r *Resolver) {
		if client != nil {
			r.client = client
		}
	}
}

// WithTimeout bounds a single HTTP request.
func WithTimeout(d time.Duration) ResolverOpt {
	return func(r *Resolver) {
		r.client = &http.Client{Timeout: d}
	}
}

func WithRetries(n uint64, initial time.Duration) ResolverOpt {
	return func(r *Resolver) {
		r.maxRetries = n
		if initial > 0 {
			r.initialInterval = initial
		}
	}
}

func WithMaxBody(n int64) ResolverOpt {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBody = n
		}
	}
}

func WithLogger(logger *zap.Logger) ResolverOpt {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver fetches metadata over HTTP, rewriting content-addressed locators through a gateway.
// It keeps no state between calls.
type Resolver struct {
	client          *http.Client
	gateway         string
	maxRetries      uint64
	initialInterval time.Duration
	maxBody         int64
	logger          *zap.Logger
}

func NewResolver(opts ...ResolverOpt) *Resolver {
	r := &Resolver{
		client:          &http.Client{Timeout: DefaultTimeout},
		gateway:         DefaultGateway,
		maxRetries:      2,
		initialInterval: 250 * time.Millisecond,
		maxBody:         DefaultMaxBody,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve loads the document behind locator.
func (r *Resolver) Resolve(ctx context.Context, locator string) (Document, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return Document{}, fmt.Errorf("%w: empty locator", ErrUnavailable)
	}

	if raw, ok, err := decodeDataURI(locator); ok {
		if err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return parseDocument(raw)
	}

	target, err := r.URL(locator)
	if err != nil {
		return Document{}, err
	}

	raw, err := r.fetch(ctx, target)
	if err != nil {
		return Document{}, fmt.Errorf("%w: fetch %s: %v", ErrUnavailable, target, err)
	}
	return parseDocument(raw)
}

// URL maps a locator onto the HTTP URL it is fetched from.
func (r *Resolver) URL(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	lower := strings.ToLower(locator)

	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		if _, err := url.Parse(locator); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return locator, nil
	case strings.HasPrefix(lower, ipfsScheme):
		rest := locator[len(ipfsScheme):]
		rest = strings.TrimPrefix(rest, "ipfs/")
		return r.gatewayURL(rest)
	default:
		return r.gatewayURL(strings.TrimPrefix(locator, "/ipfs/"))
	}
}

func (r *Resolver) gatewayURL(contentPath string) (string, error) {
	id, rest, _ := strings.Cut(contentPath, "/")
	c, err := cid.Decode(id)
	if err != nil {
		return "", fmt.Errorf("%w: unsupported locator %q: %v", ErrUnavailable, contentPath, err)
	}
	out := r.gateway + "/ipfs/" + c.String()
	if rest != "" {
		out += "/" + rest
	}
	return out, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (r *Resolver) fetch(ctx context.Context, target string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		out, err := r.get(ctx, target)
		if err == nil {
			body = out
			return nil
		}
		if !retryable(ctx, err) {
			return backoff.Permanent(err)
		}
		r.logger.Debug("metadata fetch failed, retrying",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (r *Resolver) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > r.maxBody {
		return nil, backoff.Permanent(fmt.Errorf("document exceeds %d bytes", r.maxBody))
	}
	return body, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code == http.StatusTooManyRequests || status.code >= 500
	}
	return true
}

func decodeDataURI(locator string) ([]byte, bool, error) {
	lower := strings.ToLower(locator)
	switch {
	case strings.HasPrefix(lower, dataJSONBase64):
		raw, err := base64.StdEncoding.DecodeString(locator[len(dataJSONBase64):])
		if err != nil {
			return nil, true, fmt.Errorf("decode data uri: %w", err)
		}
		return raw, true, nil
	case strings.HasPrefix(lower, dataJSONPlain):
		raw, err := url.PathUnescape(locator[len(dataJSONPlain):])
		if err != nil {
			return nil, true, fmt.Errorf("decode data uri: %w", err)
		}
		return []byte(raw), true, nil
	default:
		return nil, false, nil
	}
}

func parseDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: parse document: %v", ErrUnavailable, err)
	}
	return doc, nil
}
