package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
	"github.com/trezcool/qsnap/core/question"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "account not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// domainErrorCodes maps the domain errors to their HTTP status; the error text is the response message.
var domainErrorCodes = map[error]int{
	account.ErrNotFound:     http.StatusNotFound,
	account.ErrNotStudent:   http.StatusBadRequest,
	account.ErrInvalidUnits: http.StatusBadRequest,

	question.ErrNotFound:             http.StatusNotFound,
	question.ErrInsufficientBalance:  http.StatusPaymentRequired,
	question.ErrMissingAttachment:    http.StatusBadRequest,
	question.ErrInvalidAttachment:    http.StatusBadRequest,
	question.ErrAttachmentTooLarge:   http.StatusRequestEntityTooLarge,
	question.ErrMissingMeetingURL:    http.StatusBadRequest,
	question.ErrEmptyReply:           http.StatusBadRequest,
	question.ErrConfirmationRequired: http.StatusBadRequest,
	question.ErrKindMismatch:         http.StatusBadRequest,
	question.ErrAlreadyClaimed:       http.StatusConflict,
	question.ErrInvalidTransition:    http.StatusConflict,
	question.ErrConflict:             http.StatusConflict,
	question.ErrNotAssignedTutor:     http.StatusForbidden,
	question.ErrWrongOverride:        http.StatusForbidden,
	question.ErrForbidden:            http.StatusForbidden,

	core.ErrIntentNotFound: http.StatusNotFound,
	core.ErrIntentUsed:     http.StatusConflict,
}

// domainErrorCode looks cause up without hashing it: not every error type is comparable.
func domainErrorCode(cause error) (int, bool) {
	for domainErr, code := range domainErrorCodes {
		if cause == domainErr {
			return code, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
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
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if c, ok := domainErrorCode(cause); ok {
				code = c
				message = cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			if cause == core.ErrStoreUnavailable {
				code = http.StatusServiceUnavailable
			}
			msg := http.StatusText(code)
			message = msg

			var acc account.Account
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				acc.ID = claims.Subject
				acc.Role = claims.Role
			}
			logger.Error(msg, errors.Wrap(err, msg), acc)

			if ctx.Echo().Debug {
				message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
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
