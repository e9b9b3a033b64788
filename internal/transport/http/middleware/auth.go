package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/security"
)

// ErrorBody matches handlers.ErrorBody.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   ErrorBody `json:"error"`
	TraceID string    `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrorBody{Code: code, Message: message},
		TraceID: GetTraceID(c),
	}
}

// ActorVerifier turns a bearer token into a verified actor.
type ActorVerifier interface {
	Verify(token string) (security.Actor, error)
}

// PermissionChecker answers whether a user may perform an action on a route.
type PermissionChecker interface {
	CheckUserPermission(ctx context.Context, userID int64, action, routePath, method string) bool
}

// RequireActor validates the Authorization header and stores the actor on the context.
func RequireActor(verifier ActorVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "AUTH_NOT_CONFIGURED", "authentication not configured"))
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "UNAUTHENTICATED", "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "UNAUTHENTICATED", "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		actor, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			message := "invalid actor token"
			if errors.Is(err, security.ErrExpiredActorToken) {
				message = "actor token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "UNAUTHENTICATED", message))
			return
		}

		SetActor(c, actor)
		c.Next()
	}
}

// RequirePermission denies the request unless the actor holds action on the
// matched route pattern. Must run after RequireActor.
func RequirePermission(checker PermissionChecker, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "UNAUTHENTICATED", "authentication required"))
			return
		}

		route := c.FullPath()
		if checker == nil || route == "" ||
			!checker.CheckUserPermission(c.Request.Context(), actor.UserID, action, route, c.Request.Method) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "PERMISSION_DENIED", "insufficient permissions"))
			return
		}

		c.Next()
	}
}
