package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/arrowtech/storefront/api/responses"
	pkgerrors "github.com/arrowtech/storefront/pkg/errors"
	"github.com/arrowtech/storefront/pkg/logger"
)

// CartIDHeader carries the shopper's cart identifier.
const CartIDHeader = "X-Cart-Id"

var cartIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// CartContext attaches the X-Cart-Id header to the request context. When required is
// set a missing header is rejected; a malformed one is always rejected.
func CartContext(logg *logger.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cartID := strings.TrimSpace(r.Header.Get(CartIDHeader))
			if cartID == "" {
				if required {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "X-Cart-Id header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if !cartIDPattern.MatchString(cartID) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid X-Cart-Id header"))
				return
			}

			ctx := WithCartID(r.Context(), cartID)
			if logg != nil {
				ctx = logg.WithCartID(ctx, cartID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
