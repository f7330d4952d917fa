// Package idempotency replays stored responses for retried mutating requests
// carrying an Idempotency-Key header, so a client retry of a checkout or
// wallet POST never runs the operation twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long completed records are retained for replay.
const DefaultTTL = 24 * time.Hour

// State describes what the store found when a key was claimed.
type State int

const (
	// StateNew means the key was unclaimed and the request should proceed.
	StateNew State = iota
	// StateReplay means a completed response is stored and should be returned as-is.
	StateReplay
	// StateInFlight means another request holding the same key has not finished.
	StateInFlight
)

// Record is the persisted outcome for a claimed key.
type Record struct {
	Key            string
	Fingerprint    string
	Completed      bool
	ResponseStatus int
	ResponseHeader map[string][]string
	ResponseBody   []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      time.Time
}

// Claim is the result of attempting to take ownership of a key.
type Claim struct {
	State  State
	Record Record
}

// Response carries the handler output to persist for future replays.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Store persists key claims and their completed responses.
type Store interface {
	// Claim takes ownership of the key or reports the stored outcome.
	Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error)
	// Complete stores the response so later retries replay it.
	Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	// Forget releases the claim so the client may retry after a failure.
	Forget(ctx context.Context, key, fingerprint string) error
	// PurgeExpired deletes records past their retention window.
	PurgeExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrKeyReused indicates the key was presented with a different request payload.
var ErrKeyReused = errors.New("idempotency: key reused for a different request")

func recordID(key string) string {
	return hashHex([]byte(strings.TrimSpace(key)))
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// storableHeader drops hop-by-hop and length-sensitive headers before persisting.
func storableHeader(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	kept := make(map[string][]string, len(header))
	for name, values := range header {
		switch strings.ToLower(name) {
		case "content-length", "date", "connection", "keep-alive", "transfer-encoding", "upgrade", "te", "trailer":
			continue
		}
		copied := make([]string, len(values))
		copy(copied, values)
		kept[http.CanonicalHeaderKey(name)] = copied
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
