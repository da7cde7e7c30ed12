package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/reloop/marketplace/internal/token"
)

const UserIDKey = "userID"

// RequireAuth gates protected routes on a bearer access token. The gate
// trusts the signature alone and never touches the database, so an access
// token stays valid until natural expiry.
func RequireAuth(codec *token.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access Denied")
			}

			if len(codec.Secret) == 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "Server Error")
			}

			claims, err := codec.Verify(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access Denied")
			}

			userID, err := strconv.ParseUint(claims.Subject, 10, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access Denied")
			}

			c.Set(UserIDKey, uint(userID))
			return next(c)
		}
	}
}

// bearerToken accepts "Bearer <token>" and the legacy "JWT <token>" scheme.
func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	switch parts[0] {
	case "Bearer", "JWT":
		return parts[1]
	}
	return ""
}

func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(UserIDKey).(uint)
	return id, ok
}
