package echoapi

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/learnlink/backend/core/account"
	"github.com/learnlink/backend/core/session"
)

const claimsContextKey = "session"

// newJWTConfig returns the JWT auth middleware config, verifying tokens the way issuer signs them.
func newJWTConfig(issuer *session.Issuer) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    issuer.SigningKey(),
		SigningMethod: issuer.SigningMethod(),
		ContextKey:    claimsContextKey,
		Claims:        new(session.Claims),
	}
}

func getContextClaims(ctx echo.Context) (*session.Claims, error) {
	if token, ok := ctx.Get(claimsContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*session.Claims); ok {
			return claims, nil
		}
	}
	return nil, errUnauthorized
}

// roleMiddleware only lets through sessions holding one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// ownerOrAdminMiddleware only lets through the account named by the `:id` param, or a superadmin.
func ownerOrAdminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.AccountID == ctx.Param("id") || claims.Role == account.RoleSuperAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
