package api

import (
	"bytes"
	"container/list"
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/mr-tron/base58"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/observability"
)

// Request signing headers.
const (
	HeaderSigner    = "X-OTC-Signer"
	HeaderSignature = "X-OTC-Signature"
	// HeaderTimestamp is the unix time (seconds) the request was signed at.
	HeaderTimestamp = "X-OTC-Timestamp"
	// HeaderNonce is unique per signed request.
	HeaderNonce = "X-OTC-Nonce"

	// MaxTimestampSkew bounds the distance between the signed timestamp and server time.
	MaxTimestampSkew = 2 * time.Minute

	// Nonces are remembered well past the skew window so a captured request
	// cannot be resent while its timestamp is still fresh.
	nonceWindow          = 10 * time.Minute
	defaultNonceCapacity = 65536
)

type contextKey string

const contextKeySigner contextKey = "otc_signer"

var (
	errMissingSignature = errors.New("missing signer, signature, timestamp or nonce header")
	errBadSigner        = errors.New("signer is not a valid public key")
	errBadSignature     = errors.New("signature does not verify")
	errBadTimestamp     = errors.New("timestamp is not unix seconds")
	errStaleTimestamp   = errors.New("timestamp outside allowed skew")
	errNonceReused      = errors.New("nonce already used")
)

// SigningMessage is the byte string a caller signs: method, path, timestamp,
// nonce and body joined by newlines.
func SigningMessage(method, path, timestamp, nonce string, body []byte) []byte {
	head := strings.Join([]string{strings.ToUpper(method), path, timestamp, nonce}, "\n")
	msg := make([]byte, 0, len(head)+len(body)+1)
	msg = append(msg, head...)
	msg = append(msg, '\n')
	msg = append(msg, body...)
	return msg
}

// SignRequest sets the signing headers on req with the current time and a fresh
// nonce. The body must already be attached and is re-buffered so it can still be sent.
func SignRequest(req *http.Request, key ed25519.PrivateKey) error {
	return signRequest(req, key, time.Now(), uuid.NewString())
}

func signRequest(req *http.Request, key ed25519.PrivateKey, at time.Time, nonce string) error {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	ts := strconv.FormatInt(at.Unix(), 10)
	pub := key.Public().(ed25519.PublicKey)
	sig := ed25519.Sign(key, SigningMessage(req.Method, req.URL.Path, ts, nonce, body))

	req.Header.Set(HeaderSigner, base58.Encode(pub))
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, base58.Encode(sig))
	return nil
}

// SignerFromContext returns the verified signer stored by requireSigner.
func SignerFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(contextKeySigner).(domain.Identity)
	return id, ok
}

// authenticator verifies signed requests and rejects stale or replayed ones.
type authenticator struct {
	clock  clock.Clock
	nonces *nonceCache
}

func newAuthenticator(clk clock.Clock, nonceCapacity int) *authenticator {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &authenticator{
		clock:  clk,
		nonces: newNonceCache(nonceWindow, nonceCapacity),
	}
}

// verify checks the signature headers against the buffered body. The nonce is
// only recorded once the signature verifies.
func (a *authenticator) verify(r *http.Request, body []byte) (domain.Identity, error) {
	signerHeader := strings.TrimSpace(r.Header.Get(HeaderSigner))
	sigHeader := strings.TrimSpace(r.Header.Get(HeaderSignature))
	tsHeader := strings.TrimSpace(r.Header.Get(HeaderTimestamp))
	nonce := strings.TrimSpace(r.Header.Get(HeaderNonce))
	if signerHeader == "" || sigHeader == "" || tsHeader == "" || nonce == "" {
		return domain.Identity{}, errMissingSignature
	}

	signer, err := domain.ParseIdentity(signerHeader)
	if err != nil {
		return domain.Identity{}, errBadSigner
	}
	secs, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return domain.Identity{}, errBadTimestamp
	}
	sig, err := base58.Decode(sigHeader)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return domain.Identity{}, errBadSignature
	}

	msg := SigningMessage(r.Method, r.URL.Path, tsHeader, nonce, body)
	if !ed25519.Verify(ed25519.PublicKey(signer.Bytes()), msg, sig) {
		return domain.Identity{}, errBadSignature
	}

	now := a.clock.Now()
	skew := now.Sub(time.Unix(secs, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxTimestampSkew {
		return domain.Identity{}, errStaleTimestamp
	}

	if a.nonces.Seen(signer.String()+"|"+nonce, now) {
		return domain.Identity{}, errNonceReused
	}
	return signer, nil
}

// requireSigner rejects requests that are not signed by an ed25519 key.
// The body is buffered and restored for the handler.
func (s *Server) requireSigner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
		if err != nil {
			writeProblem(w, http.StatusRequestEntityTooLarge, "BodyTooLarge", err.Error())
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		signer, err := s.auth.verify(r, body)
		if err != nil {
			observability.RecordAuthFailure(authFailureReason(err))
			writeProblem(w, http.StatusUnauthorized, "Unauthenticated", err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), contextKeySigner, signer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, errMissingSignature):
		return "missing_signature"
	case errors.Is(err, errBadTimestamp), errors.Is(err, errStaleTimestamp):
		return "stale_timestamp"
	case errors.Is(err, errNonceReused):
		return "replayed_nonce"
	default:
		return "invalid_signature"
	}
}

// nonceCache remembers recently used nonces for ttl, holding at most capacity entries.
type nonceCache struct {
	ttl      time.Duration
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

type nonceEntry struct {
	key string
	at  time.Time
}

func newNonceCache(ttl time.Duration, capacity int) *nonceCache {
	if capacity <= 0 {
		capacity = defaultNonceCapacity
	}
	return &nonceCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Seen reports whether key was recorded within the window, recording it if not.
func (c *nonceCache) Seen(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired(now.Add(-c.ttl))
	if _, ok := c.entries[key]; ok {
		return true
	}
	for c.order.Len() >= c.capacity {
		c.evictFront()
	}
	c.entries[key] = c.order.PushBack(nonceEntry{key: key, at: now})
	return false
}

// Len returns the number of remembered nonces.
func (c *nonceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *nonceCache) evictExpired(cutoff time.Time) {
	for {
		front := c.order.Front()
		if front == nil || front.Value.(nonceEntry).at.After(cutoff) {
			return
		}
		c.evictFront()
	}
}

func (c *nonceCache) evictFront() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.order.Remove(front)
	delete(c.entries, front.Value.(nonceEntry).key)
}
