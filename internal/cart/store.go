package cart

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// Entry is one cart line as held by a Store.
type Entry struct {
	ItemID   uuid.UUID
	Count    int
	Selected bool
}

// Store is a single owner's cart. Implementations are bound to the owner at
// construction time, so callers pick the representation once per request.
type Store interface {
	// Add accumulates count onto an existing entry or inserts a new one.
	Add(ctx context.Context, itemID uuid.UUID, count int, selected bool) error
	// Update overwrites count and selected.
	Update(ctx context.Context, itemID uuid.UUID, count int, selected bool) error
	// Remove is a no-op when the entry does not exist.
	Remove(ctx context.Context, itemID uuid.UUID) error
	SetAllSelected(ctx context.Context, selected bool) error
	Entries(ctx context.Context) ([]Entry, error)
}

// Selected filters entries down to the ones flagged for checkout.
func Selected(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Selected {
			out = append(out, entry)
		}
	}
	return out
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ItemID.String() < entries[j].ItemID.String()
	})
}
