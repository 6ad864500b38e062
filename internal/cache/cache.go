// Package cache memoizes analysis results by content fingerprint and makes
// sure a fingerprint is computed at most once at a time.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"lintdeck/internal/model"
)

// DefaultMaxEntries bounds the number of fingerprints kept.
const DefaultMaxEntries = 256

// ComputeFunc produces the findings for one fingerprint.
type ComputeFunc func(ctx context.Context) ([]model.Finding, error)

// Results is a bounded, coalescing result cache. Completed results never
// expire on their own; the least recently used fingerprints are evicted
// once the bound is reached.
type Results struct {
	entries *lru.Cache[string, []model.Finding]
	flight  singleflight.Group
}

func New(maxEntries int) *Results {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, []model.Finding](maxEntries)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &Results{entries: entries}
}

// GetOrCompute returns the stored findings for fingerprint, or runs fn.
// Concurrent callers for the same fingerprint wait for the running fn and
// share its result. Errors are returned to every waiter and not stored.
// fn runs detached from the cancellation of whichever caller started it; a
// caller whose ctx ends stops waiting without affecting the others.
func (r *Results) GetOrCompute(ctx context.Context, fingerprint string, fn ComputeFunc) ([]model.Finding, error) {
	if v, ok := r.entries.Get(fingerprint); ok {
		return v, nil
	}
	return r.do(ctx, fingerprint, func(ctx context.Context) ([]model.Finding, error) {
		if v, ok := r.entries.Get(fingerprint); ok {
			return v, nil
		}
		findings, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if findings == nil {
			findings = []model.Finding{}
		}
		r.entries.Add(fingerprint, findings)
		return findings, nil
	})
}

// Coalesce runs fn with the same at-most-once-concurrently guarantee but
// does not store the result.
func (r *Results) Coalesce(ctx context.Context, key string, fn ComputeFunc) ([]model.Finding, error) {
	return r.do(ctx, "transient:"+key, fn)
}

func (r *Results) do(ctx context.Context, key string, fn ComputeFunc) ([]model.Finding, error) {
	shared := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(key, func() (any, error) {
		return fn(shared)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		findings, _ := res.Val.([]model.Finding)
		return findings, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the stored findings without touching recency.
func (r *Results) Peek(fingerprint string) ([]model.Finding, bool) {
	return r.entries.Peek(fingerprint)
}

// Len returns the number of stored fingerprints.
func (r *Results) Len() int { return r.entries.Len() }

// Purge drops every stored result.
func (r *Results) Purge() { r.entries.Purge() }

// Fingerprint identifies one analysis input: the file, the tool filter and
// the file's content.
func Fingerprint(path, tool string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(tool))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
