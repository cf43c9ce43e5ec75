package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/parcelbase/parcelbase/internal/auth"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/service"
	"github.com/parcelbase/parcelbase/internal/types"
)

// AuthenticateMiddleware validates the bearer token, loads the user and puts
// the user id and role in the request context. The token may also arrive as
// the access_token query parameter, which browsers need for WebSockets.
func AuthenticateMiddleware(provider auth.Provider, users service.UserService, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortWithError(c, ierr.NewError("missing bearer token").
				WithHint("Please sign in").
				Mark(ierr.ErrUnauthorized))
			return
		}

		claims, err := provider.ValidateToken(token)
		if err != nil {
			log.Debugw("rejected token", "error", err)
			abortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		u, err := users.Authorize(ctx, claims.UserID)
		if err != nil {
			abortWithError(c, err)
			return
		}

		ctx = types.SetUserID(ctx, u.ID)
		ctx = types.SetUserRole(ctx, u.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role
func RequireAdmin(c *gin.Context) {
	if !types.IsAdmin(c.Request.Context()) {
		abortWithError(c, ierr.NewError("admin role required").
			WithHint("Only admins can do this").
			Mark(ierr.ErrPermissionDenied))
		return
	}
	c.Next()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader(types.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("access_token")
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(ierr.HTTPStatusFromErr(err), NewErrorResponse(err))
}
