package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")

	validationFailedText      = "Validation failed"
	conflictText              = "Conflict"
	notFoundText              = "Not found."
	accountNotFoundText       = "Account not found or inactive."
	userNotFoundText          = "User not found."
	invalidCredentialsText    = "Invalid credentials."
	invalidOrExpiredTokenText = "Invalid or expired token."
	internalServerErrorText   = http.StatusText(http.StatusInternalServerError)
)

// ErrorResponse is the body of field-level failures (400 validation, 409 conflict).
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case *core.ValidationError:
			code = http.StatusBadRequest
			if origErr.HasErrors() {
				message = ErrorResponse{Message: validationFailedText, Errors: origErr.Fields}
			} else {
				message = origErr.Error()
			}
		case *core.ConflictError:
			code = http.StatusConflict
			message = ErrorResponse{Message: conflictText, Errors: map[string]string{origErr.Field: origErr.Message}}
		default:
			switch cause {
			case account.ErrNotFound:
				code = http.StatusNotFound
				message = notFoundText
			case account.ErrInvalidCredentials:
				code = http.StatusUnauthorized
				message = invalidCredentialsText
			case account.ErrInvalidOrExpiredToken:
				code = http.StatusBadRequest
				message = invalidOrExpiredTokenText
			default: // any other error is a server error
				code = http.StatusInternalServerError
				message = internalServerErrorText
				if ctx.Echo().Debug {
					message = err.Error()
				}

				args := []interface{}{errors.Wrap(err, internalServerErrorText)}
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					args = append(args, account.Account{ID: claims.AccountID, Email: claims.Email, Role: claims.Role})
				}
				logger.Error(internalServerErrorText, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
