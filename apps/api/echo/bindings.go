package echoapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
	"github.com/trezcool/qsnap/core/question"
)

const statusParam = "status"

// StatusFilter binds the `status` query param: repeated and/or comma separated.
type StatusFilter struct {
	Statuses []question.Status
}

func (sf *StatusFilter) Bind(ctx echo.Context) error {
	for _, val := range ctx.QueryParams()[statusParam] {
		for _, s := range strings.Split(val, ",") {
			status := question.Status(core.CleanString(s, true /* lower */))
			if status == "" {
				continue
			}
			if !status.Valid() {
				return core.NewValidationError(nil, core.FieldError{Field: statusParam, Error: "invalid status"})
			}
			sf.Statuses = append(sf.Statuses, status)
		}
	}
	return nil
}

type (
	LoginRequest struct {
		ID       string `json:"id" validate:"required"`
		Password string `json:"password" validate:"required"`
		Role     string `json:"role" validate:"required,allroles"`
	}

	LoginResponse struct {
		Token   string          `json:"token"`
		Account account.Account `json:"account"`
	}

	ConfirmRequest struct {
		MeetingURL string `json:"meeting_url" validate:"omitempty,url"`
	}

	CompleteRequest struct {
		Confirm bool `json:"confirm"`
	}

	DeleteQuestionRequest struct {
		Password string `json:"password"`
	}

	CheckoutRequest struct {
		Units int `json:"units" validate:"omitempty,min=1,max=100"`
	}

	PaymentCallbackRequest struct {
		IntentID string `json:"intent_id" validate:"required"`
	}

	BalanceResponse struct {
		RemainingMinutes int `json:"remaining_minutes"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.ID = core.CleanString(lr.ID)
	lr.Role = core.CleanString(lr.Role, true /* lower */)
	return validate.Struct(lr)
}

func (cr *ConfirmRequest) Validate(validate *validator.Validate) error {
	cr.MeetingURL = core.CleanString(cr.MeetingURL)
	return validate.Struct(cr)
}

func (cr *CheckoutRequest) Validate(validate *validator.Validate) error {
	if cr.Units == 0 {
		cr.Units = 1
	}
	return validate.Struct(cr)
}

func (pr *PaymentCallbackRequest) Validate(validate *validator.Validate) error {
	pr.IntentID = core.CleanString(pr.IntentID)
	return validate.Struct(pr)
}
