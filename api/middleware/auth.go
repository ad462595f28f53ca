package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/auction-engine/api/responses"
	pkgAuth "github.com/angelmondragon/auction-engine/pkg/auth"
	"github.com/angelmondragon/auction-engine/pkg/config"
	pkgerrors "github.com/angelmondragon/auction-engine/pkg/errors"
	"github.com/angelmondragon/auction-engine/pkg/logger"
)

const accessTokenQueryParam = "access_token"

// AuthOptions tune where Auth looks for credentials.
type AuthOptions struct {
	// AllowQueryToken accepts ?access_token= when no Authorization header is
	// sent. Browsers cannot set headers on websocket upgrades.
	AllowQueryToken bool
}

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, opts AuthOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r, opts)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID.String())
			ctx = WithRole(ctx, string(claims.Role))
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				ctx = logg.WithActorRole(ctx, string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request, opts AuthOptions) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw != "" {
		if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
			raw = strings.TrimSpace(raw[7:])
		}
		return raw
	}
	if opts.AllowQueryToken {
		return strings.TrimSpace(r.URL.Query().Get(accessTokenQueryParam))
	}
	return ""
}
