// Package localcart is the device-local holding area for selections made before login.
package localcart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"shopvisit/internal/kv"
	"shopvisit/internal/model"
)

const (
	// CartKey holds catalog selections with their visit slot.
	CartKey = "local_cart"
	// InquiriesKey holds visit enquiries composed while logged out.
	InquiriesKey = "pending_inquiries"
)

var ErrMissingCatalog = errors.New("local cart entry has no catalog id")

// Cart is a set of entries keyed by catalog id, persisted as one value under a fixed key.
type Cart struct {
	store kv.Storage
	key   string
	now   func() time.Time

	mu sync.Mutex
	// claimed maps catalog id to the AddedAt of the entry handed out by Drain.
	claimed map[string]time.Time
}

// New returns a cart persisted under key in store.
func New(store kv.Storage, key string) *Cart {
	return &Cart{
		store:   store,
		key:     key,
		now:     time.Now,
		claimed: make(map[string]time.Time),
	}
}

// Key returns the storage key of the cart.
func (c *Cart) Key() string {
	return c.key
}

// Add stores an entry, replacing any entry for the same catalog item.
func (c *Cart) Add(ctx context.Context, entry model.LocalCartEntry) (model.LocalCartEntry, error) {
	if entry.CatalogID == "" {
		entry.CatalogID = entry.Slot.CatalogID
	}
	entry.CatalogID = strings.TrimSpace(entry.CatalogID)
	if entry.CatalogID == "" {
		return model.LocalCartEntry{}, ErrMissingCatalog
	}
	entry.Slot.CatalogID = entry.CatalogID
	if entry.AddedAt.IsZero() {
		entry.AddedAt = c.now().UTC().Round(0)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return model.LocalCartEntry{}, err
	}
	entries[entry.CatalogID] = entry
	if err := c.save(ctx, entries); err != nil {
		return model.LocalCartEntry{}, err
	}
	return entry, nil
}

// Remove drops the entry of a catalog item. Removing a missing item is a no-op.
func (c *Cart) Remove(ctx context.Context, catalogID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := entries[catalogID]; !ok {
		return nil
	}
	delete(entries, catalogID)
	return c.save(ctx, entries)
}

// List returns entries ordered by the time they were added. Entries being merged are hidden.
func (c *Cart) List(ctx context.Context) ([]model.LocalCartEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return sorted(c.unclaimed(entries)), nil
}

// Clear removes every entry.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Remove(ctx, c.key); err != nil {
		return fmt.Errorf("clear %s: %w", c.key, err)
	}
	return nil
}

// Batch is a set of entries handed out by Drain.
type Batch struct {
	Key     string
	Entries []model.LocalCartEntry
}

// Drain hands out all visible entries and hides them from List and later Drain
// calls until Settle or Release. Nothing is deleted until Settle.
func (c *Cart) Drain(ctx context.Context) (*Batch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	batch := &Batch{Key: c.key, Entries: sorted(c.unclaimed(entries))}
	for _, e := range batch.Entries {
		c.claimed[e.CatalogID] = e.AddedAt
	}
	return batch, nil
}

// Settle deletes the drained entries in a single write. Entries re-added while the
// batch was out are kept.
func (c *Cart) Settle(ctx context.Context, batch *Batch) error {
	if batch == nil || len(batch.Entries) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return err
	}
	for _, drained := range batch.Entries {
		if cur, ok := entries[drained.CatalogID]; ok && cur.AddedAt.Equal(drained.AddedAt) {
			delete(entries, drained.CatalogID)
		}
	}
	if err := c.save(ctx, entries); err != nil {
		return err
	}
	for _, drained := range batch.Entries {
		if at, ok := c.claimed[drained.CatalogID]; ok && at.Equal(drained.AddedAt) {
			delete(c.claimed, drained.CatalogID)
		}
	}
	return nil
}

// Release hands drained entries back without deleting them, making them visible
// to List and the next Drain.
func (c *Cart) Release(batch *Batch) {
	if batch == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, drained := range batch.Entries {
		if at, ok := c.claimed[drained.CatalogID]; ok && at.Equal(drained.AddedAt) {
			delete(c.claimed, drained.CatalogID)
		}
	}
}

func (c *Cart) unclaimed(entries map[string]model.LocalCartEntry) []model.LocalCartEntry {
	out := make([]model.LocalCartEntry, 0, len(entries))
	for id, e := range entries {
		if at, ok := c.claimed[id]; ok && at.Equal(e.AddedAt) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (c *Cart) load(ctx context.Context) (map[string]model.LocalCartEntry, error) {
	entries := make(map[string]model.LocalCartEntry)

	data, err := c.store.Get(ctx, c.key)
	if errors.Is(err, kv.ErrNotFound) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.key, err)
	}

	var list []model.LocalCartEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.key, err)
	}
	// Older values may hold duplicates; the latest selection wins.
	for _, e := range list {
		if prev, ok := entries[e.CatalogID]; ok && prev.AddedAt.After(e.AddedAt) {
			continue
		}
		entries[e.CatalogID] = e
	}
	return entries, nil
}

func (c *Cart) save(ctx context.Context, entries map[string]model.LocalCartEntry) error {
	if len(entries) == 0 {
		if err := c.store.Remove(ctx, c.key); err != nil {
			return fmt.Errorf("save %s: %w", c.key, err)
		}
		return nil
	}

	list := make([]model.LocalCartEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	data, err := json.Marshal(sorted(list))
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.store.Set(ctx, c.key, data); err != nil {
		return fmt.Errorf("save %s: %w", c.key, err)
	}
	return nil
}

func sorted(entries []model.LocalCartEntry) []model.LocalCartEntry {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AddedAt.Equal(entries[j].AddedAt) {
			return entries[i].CatalogID < entries[j].CatalogID
		}
		return entries[i].AddedAt.Before(entries[j].AddedAt)
	})
	return entries
}
