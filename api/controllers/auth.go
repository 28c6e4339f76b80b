package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/controllers/cart"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// AuthLogin wires the login endpoint into the HTTP layer. A successful login
// folds the anonymous cookie cart into the user's cart.
func AuthLogin(svc auth.Service, carts cartsvc.Service, cartCfg config.CartConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		signedIn(w, r, result, carts, cartCfg, logg)
		responses.WriteSuccess(w, result)
	}
}

// signedIn hands the access token back and merges the anonymous cart. Merge
// failures are logged and never fail the login.
func signedIn(w http.ResponseWriter, r *http.Request, result *auth.LoginResponse, carts cartsvc.Service, cartCfg config.CartConfig, logg *logger.Logger) {
	w.Header().Set(middleware.TokenHeader, result.AccessToken)
	if carts == nil || result.User == nil {
		return
	}

	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithUserID(ctx, result.User.ID.String())
	}
	anon := cart.AnonymousCart(r, cartCfg)
	if anon.Len() == 0 {
		// expired or tampered cookies decode empty; stop the browser resending them
		if cart.HasCookie(r, cartCfg) {
			cart.ExpireCookie(w, cartCfg)
		}
		return
	}

	store, err := carts.UserStore(result.User.ID)
	if err != nil {
		if logg != nil {
			logg.Error(ctx, "open user cart for merge", err)
		}
		return
	}
	if _, err := carts.Merge(ctx, anon, store); err != nil {
		if logg != nil {
			logg.Error(ctx, "merge anonymous cart", err)
		}
		return
	}
	if err := cart.WriteCookie(w, anon, cartCfg); err != nil && logg != nil {
		logg.Error(ctx, "clear cart cookie", err)
	}
}
