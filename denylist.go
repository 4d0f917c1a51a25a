package auth

import (
	"context"
	"sync"
	"time"
)

// RefreshDenylist records refresh token ids that must no longer be honored.
// Entries only need to live until the token's natural expiry.
//
// Claim marks tokenID as used and reports whether this call was the first to
// do so. The check and the mark are a single atomic step. Revoke marks
// tokenID unconditionally.
type RefreshDenylist interface {
	Claim(ctx context.Context, tokenID string, until time.Time) (bool, error)
	Revoke(ctx context.Context, tokenID string, until time.Time) error
}

// MemoryDenylist is a process local RefreshDenylist.
type MemoryDenylist struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]time.Time
}

var _ RefreshDenylist = (*MemoryDenylist)(nil)

// NewMemoryDenylist creates an empty MemoryDenylist.
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

// WithClock injects the clock, mainly for tests.
func (d *MemoryDenylist) WithClock(now func() time.Time) *MemoryDenylist {
	if now != nil {
		d.now = now
	}
	return d
}

// Revoke implements RefreshDenylist.
func (d *MemoryDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.put(tokenID, until, d.now())
	return nil
}

// Claim implements RefreshDenylist.
func (d *MemoryDenylist) Claim(ctx context.Context, tokenID string, until time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if exp, ok := d.entries[tokenID]; ok && exp.After(now) {
		return false, nil
	}
	d.put(tokenID, until, now)
	return true, nil
}

func (d *MemoryDenylist) put(tokenID string, until, now time.Time) {
	if !until.After(now) {
		return
	}
	d.entries[tokenID] = until

	for id, exp := range d.entries {
		if !exp.After(now) {
			delete(d.entries, id)
		}
	}
}

// IsRevoked reports whether tokenID is currently denied.
func (d *MemoryDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !exp.After(d.now()) {
		delete(d.entries, tokenID)
		return false, nil
	}
	return true, nil
}

// Len returns the number of live entries.
func (d *MemoryDenylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
