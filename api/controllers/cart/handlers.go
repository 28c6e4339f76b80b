package cart

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CartFetch renders the caller's cart joined with live catalog data.
func CartFetch(svc cartsvc.Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		cart, err := openCart(r, svc, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := svc.Read(r.Context(), cart.store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, lines)
	}
}

// CartAdd accumulates a quantity onto the caller's cart.
func CartAdd(svc cartsvc.Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return mutate(svc, cfg, logg, http.StatusCreated, cartsvc.Service.Add)
}

// CartUpdate overwrites the quantity and selection of one entry.
func CartUpdate(svc cartsvc.Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return mutate(svc, cfg, logg, http.StatusOK, cartsvc.Service.Update)
}

type mutation func(svc cartsvc.Service, ctx context.Context, store cartsvc.Store, input cartsvc.MutationInput) (cartsvc.Entry, error)

func mutate(svc cartsvc.Service, cfg config.CartConfig, logg *logger.Logger, status int, apply mutation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		var body mutationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := openCart(r, svc, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := apply(svc, r.Context(), cart.store, cartsvc.MutationInput{
			ItemID:   body.ItemID,
			Count:    body.Count,
			Selected: body.selected(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := WriteCookie(w, cart.cookie, cfg); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, entryResponse{ItemID: entry.ItemID, Count: entry.Count, Selected: entry.Selected})
	}
}

// CartRemove deletes one entry; removing an absent entry succeeds.
func CartRemove(svc cartsvc.Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		var body removeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := openCart(r, svc, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), cart.store, body.ItemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := WriteCookie(w, cart.cookie, cfg); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

// CartSelectAll flips the selection flag on every entry.
func CartSelectAll(svc cartsvc.Service, cfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		var body selectionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := openCart(r, svc, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SelectAll(r.Context(), cart.store, *body.Selected); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := WriteCookie(w, cart.cookie, cfg); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"selected": *body.Selected})
	}
}
