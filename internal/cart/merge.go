package cart

import (
	"context"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Merge folds the anonymous cart into the authenticated one. Anonymous
// entries overwrite count and selection (last write wins, no summing) and the
// anonymous cart is cleared so the handler expires the cookie. With nothing to
// merge it does nothing.
func (s *service) Merge(ctx context.Context, anon *CookieStore, auth Store) (int, error) {
	if anon == nil || anon.Len() == 0 {
		return 0, nil
	}
	entries, err := anon.Entries(ctx)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if err := auth.Update(ctx, entry.ItemID, entry.Count, entry.Selected); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart entry")
		}
	}
	anon.Clear()

	ctx = s.logg.WithField(ctx, "merged_entries", len(entries))
	s.logg.Info(ctx, "anonymous cart merged")
	return len(entries), nil
}
