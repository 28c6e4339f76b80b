package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/comments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// ItemComments lists the public reviews of a single item.
func ItemComments(svc comments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "comments service unavailable"))
			return
		}

		itemID, err := validators.ParseUUIDParam(chi.URLParam(r, "itemId"), "itemId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := svc.ItemComments(ctx, itemID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if list == nil {
			list = []comments.ItemComment{}
		}

		responses.WriteSuccess(w, map[string]any{"comments": list})
	}
}
