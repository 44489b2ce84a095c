package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
)

type paymentApi struct {
	svc      core.PaymentService
	accSvc   *account.Service
	validate *validator.Validate
	logger   core.Logger
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *paymentApi) {
	pg := g.Group("/payments")
	pg.POST("/checkout", api.checkout, jwt, roleMiddleware(account.RoleStudent))
	// the intent id is the capability: the payment provider redirects here without a session
	pg.POST("/callback", api.callback)
}

// Handlers

func (api *paymentApi) checkout(ctx echo.Context) error {
	var data CheckoutRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckoutRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	acc, err := getContextAccount(ctx, api.accSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	intent, err := api.svc.CreateTopUpIntent(ctx.Request().Context(), acc.ID, data.Units)
	if err != nil {
		return errors.Wrap(err, "creating top-up intent")
	}
	return ctx.JSON(http.StatusCreated, intent)
}

func (api *paymentApi) callback(ctx echo.Context) error {
	var data PaymentCallbackRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentCallbackRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	intent, err := api.svc.CompleteTopUp(ctx.Request().Context(), data.IntentID)
	if err != nil {
		return errors.Wrap(err, "completing top-up")
	}
	balance, err := api.accSvc.CreditTopUp(ctx.Request().Context(), intent.AccountID, intent.Units)
	if err != nil {
		// the intent is spent: keep what is needed to credit it by hand
		api.logger.Error("crediting paid top-up", err, map[string]interface{}{
			"intent":  intent.ID,
			"account": intent.AccountID,
			"units":   intent.Units,
		})
		return errors.Wrap(err, "crediting top-up")
	}
	return ctx.JSON(http.StatusOK, BalanceResponse{RemainingMinutes: balance})
}
