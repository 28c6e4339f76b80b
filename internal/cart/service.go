package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type itemLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error)
}

// Line is a cart entry joined with live catalog data. Price is the current
// catalog price, not a snapshot.
type Line struct {
	ItemID          uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	DefaultImageURL string          `json:"default_image_url"`
	Price           decimal.Decimal `json:"price"`
	Count           int             `json:"count"`
	Selected        bool            `json:"selected"`
}

// MutationInput is the body of add and update requests.
type MutationInput struct {
	ItemID   uuid.UUID
	Count    int
	Selected bool
}

// Service validates cart mutations and renders carts for either representation.
type Service interface {
	UserStore(userID uuid.UUID) (*RedisStore, error)
	Add(ctx context.Context, store Store, input MutationInput) (Entry, error)
	Update(ctx context.Context, store Store, input MutationInput) (Entry, error)
	Remove(ctx context.Context, store Store, itemID uuid.UUID) error
	SelectAll(ctx context.Context, store Store, selected bool) error
	Read(ctx context.Context, store Store) ([]Line, error)
	Merge(ctx context.Context, anon *CookieStore, auth Store) (int, error)
}

type service struct {
	backend redisBackend
	items   itemLoader
	logg    *logger.Logger
}

// NewService builds a cart service over the redis backend and the item catalog.
func NewService(backend redisBackend, items itemLoader, logg *logger.Logger) (Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("redis backend required")
	}
	if items == nil {
		return nil, fmt.Errorf("item loader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{backend: backend, items: items, logg: logg}, nil
}

func (s *service) UserStore(userID uuid.UUID) (*RedisStore, error) {
	store, err := NewRedisStore(s.backend, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "cart owner required")
	}
	return store, nil
}

func (s *service) Add(ctx context.Context, store Store, input MutationInput) (Entry, error) {
	if err := s.validate(ctx, input); err != nil {
		return Entry{}, err
	}
	if err := store.Add(ctx, input.ItemID, input.Count, input.Selected); err != nil {
		return Entry{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart entry")
	}
	return s.stored(ctx, store, input), nil
}

// stored re-reads the entry so callers see the accumulated count. The write
// already succeeded, so a failed read falls back to echoing the input.
func (s *service) stored(ctx context.Context, store Store, input MutationInput) Entry {
	echo := Entry{ItemID: input.ItemID, Count: input.Count, Selected: input.Selected}
	entries, err := store.Entries(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "item_id", input.ItemID.String()), "re-read cart entry after add failed")
		return echo
	}
	for _, entry := range entries {
		if entry.ItemID == input.ItemID {
			return entry
		}
	}
	return echo
}

func (s *service) Update(ctx context.Context, store Store, input MutationInput) (Entry, error) {
	if err := s.validate(ctx, input); err != nil {
		return Entry{}, err
	}
	if err := store.Update(ctx, input.ItemID, input.Count, input.Selected); err != nil {
		return Entry{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart entry")
	}
	return Entry{ItemID: input.ItemID, Count: input.Count, Selected: input.Selected}, nil
}

func (s *service) Remove(ctx context.Context, store Store, itemID uuid.UUID) error {
	if itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if err := store.Remove(ctx, itemID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart entry")
	}
	return nil
}

func (s *service) SelectAll(ctx context.Context, store Store, selected bool) error {
	if err := store.SetAllSelected(ctx, selected); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "select cart entries")
	}
	return nil
}

// Read joins entries with the catalog. Entries whose item disappeared are left out.
func (s *service) Read(ctx context.Context, store Store) ([]Line, error) {
	entries, err := store.Entries(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart")
	}
	if len(entries) == 0 {
		return []Line{}, nil
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ItemID)
	}
	catalog, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(entries))
	for _, entry := range entries {
		item, ok := catalog[entry.ItemID]
		if !ok {
			continue
		}
		lines = append(lines, Line{
			ItemID:          item.ID,
			Name:            item.Name,
			DefaultImageURL: item.DefaultImageURL,
			Price:           item.Price,
			Count:           entry.Count,
			Selected:        entry.Selected,
		})
	}
	return lines, nil
}

func (s *service) validate(ctx context.Context, input MutationInput) error {
	if input.ItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if input.Count < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "count must be at least 1").
			WithDetails(map[string]any{"count": input.Count})
	}
	if _, err := s.items.FindByID(ctx, input.ItemID); err != nil {
		return err
	}
	return nil
}
