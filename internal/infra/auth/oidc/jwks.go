package oidc

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"sync"
	"time"
)

const (
	defaultFetchTimeout   = 5 * time.Second
	defaultRefetchBackoff = 30 * time.Second
)

// jwksCache holds the issuer's signing keys for the process lifetime.
// There is no TTL: the only invalidation is an unknown key ID, which
// triggers a single-flight refetch. A short backoff between refetches
// keeps a flood of unknown-kid tokens from hammering the issuer.
type jwksCache struct {
	url          string
	httpClient   *http.Client
	fetchTimeout time.Duration
	backoff      time.Duration
	now          func() time.Time

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	lastFetchAt time.Time

	refreshMu sync.Mutex
	refreshCh chan struct{}
	lastErr   error
}

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func newJWKSCache(url string, httpClient *http.Client) *jwksCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &jwksCache{
		url:          url,
		httpClient:   httpClient,
		fetchTimeout: defaultFetchTimeout,
		backoff:      defaultRefetchBackoff,
		now:          time.Now,
		keys:         map[string]*rsa.PublicKey{},
	}
}

// getKey returns the public key for kid, refetching the key set once if the
// kid is unknown. The refetch is bounded by fetchTimeout; a timeout surfaces
// as an error, which the verifier treats as a denial.
func (c *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, errors.New("kid is required")
	}
	if key := c.lookup(kid); key != nil {
		return key, nil
	}
	if !c.mayRefetch() {
		return nil, errors.New("jwks key not found")
	}
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	if key := c.lookup(kid); key != nil {
		return key, nil
	}
	return nil, errors.New("jwks key not found")
}

func (c *jwksCache) lookup(kid string) *rsa.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys[kid]
}

func (c *jwksCache) mayRefetch() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastFetchAt.IsZero() || c.now().Sub(c.lastFetchAt) >= c.backoff
}

// refresh coalesces concurrent callers: one fetch runs, the rest wait for
// its outcome or their own context, so in-flight verifications are never
// blocked past their deadline.
func (c *jwksCache) refresh(ctx context.Context) error {
	ch, leader := c.beginRefresh()
	if !leader {
		return c.waitRefresh(ctx, ch)
	}
	err := c.doRefresh(ctx)
	c.finishRefresh(err, ch)
	return err
}

func (c *jwksCache) beginRefresh() (chan struct{}, bool) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if c.refreshCh != nil {
		return c.refreshCh, false
	}
	ch := make(chan struct{})
	c.refreshCh = ch
	return ch, true
}

func (c *jwksCache) waitRefresh(ctx context.Context, ch chan struct{}) error {
	select {
	case <-ch:
		c.refreshMu.Lock()
		defer c.refreshMu.Unlock()
		return c.lastErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *jwksCache) finishRefresh(err error, ch chan struct{}) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	c.lastErr = err
	close(ch)
	c.refreshCh = nil
}

func (c *jwksCache) doRefresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	keys, err := c.fetch(ctx)
	c.mu.Lock()
	c.lastFetchAt = c.now()
	if err == nil {
		c.keys = keys
	}
	c.mu.Unlock()
	return err
}

func (c *jwksCache) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("jwks fetch failed")
	}
	var payload jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	keys := make(map[string]*rsa.PublicKey, len(payload.Keys))
	for _, key := range payload.Keys {
		if key.Kty != "RSA" || key.Kid == "" {
			continue
		}
		pub, err := jwkToRSAPublicKey(key)
		if err != nil {
			continue
		}
		keys[key.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("jwks contains no usable keys")
	}
	return keys, nil
}

func jwkToRSAPublicKey(key jwkKey) (*rsa.PublicKey, error) {
	if key.N == "" || key.E == "" {
		return nil, errors.New("missing rsa params")
	}
	nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes).Int64()
	if e <= 0 || e > int64(^uint32(0)) {
		return nil, errors.New("invalid rsa exponent")
	}
	return &rsa.PublicKey{N: n, E: int(e)}, nil
}
