package cart

import (
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var now = func() time.Time { return time.Now().UTC() }

// requestCart is the cart a request operates on. cookie is nil for
// authenticated users.
type requestCart struct {
	store  cartsvc.Store
	cookie *cartsvc.CookieStore
}

func openCart(r *http.Request, svc cartsvc.Service, cfg config.CartConfig) (requestCart, error) {
	if userID, ok := middleware.UserUUIDFromContext(r.Context()); ok {
		store, err := svc.UserStore(userID)
		if err != nil {
			return requestCart{}, err
		}
		return requestCart{store: store}, nil
	}
	cookie := AnonymousCart(r, cfg)
	return requestCart{store: cookie, cookie: cookie}, nil
}

// AnonymousCart decodes the request's cart cookie; a missing or untrusted cookie yields an empty cart.
func AnonymousCart(r *http.Request, cfg config.CartConfig) *cartsvc.CookieStore {
	value := ""
	if c, err := r.Cookie(cookieName(cfg)); err == nil {
		value = c.Value
	}
	return cartsvc.NewCookieStore(value, now())
}

// WriteCookie sends the anonymous cart back when it changed. An empty cart expires the cookie.
func WriteCookie(w http.ResponseWriter, cookie *cartsvc.CookieStore, cfg config.CartConfig) error {
	if cookie == nil || !cookie.Dirty() {
		return nil
	}
	current := now()
	value, err := cookie.Encode(current, cfg.CookieTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart cookie")
	}

	if value == "" {
		ExpireCookie(w, cfg)
		return nil
	}
	out := baseCookie(cfg, value)
	out.MaxAge = int(cfg.CookieTTL.Seconds())
	out.Expires = current.Add(cfg.CookieTTL)
	http.SetCookie(w, out)
	return nil
}

// HasCookie reports whether the request carries a cart cookie at all, valid or not.
func HasCookie(r *http.Request, cfg config.CartConfig) bool {
	_, err := r.Cookie(cookieName(cfg))
	return err == nil
}

// ExpireCookie tells the browser to drop the cart cookie.
func ExpireCookie(w http.ResponseWriter, cfg config.CartConfig) {
	out := baseCookie(cfg, "")
	out.MaxAge = -1
	out.Expires = time.Unix(0, 0)
	http.SetCookie(w, out)
}

func baseCookie(cfg config.CartConfig, value string) *http.Cookie {
	return &http.Cookie{
		Name:     cookieName(cfg),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieName(cfg config.CartConfig) string {
	if cfg.CookieName == "" {
		return "cart"
	}
	return cfg.CookieName
}
