package core

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrIntentNotFound = errors.New("payment not found")
	ErrIntentUsed     = errors.New("payment has already been applied")
)

type (
	// TopUpIntent is a pending purchase of top-up units.
	TopUpIntent struct {
		ID          string `json:"id"`
		AccountID   string `json:"-"`
		Units       int    `json:"units"`
		RedirectURL string `json:"redirect_url"`
	}

	// PaymentService is any payment provider able to sell top-up units.
	PaymentService interface {
		// CreateTopUpIntent starts a checkout for `units` top-up units and returns where to redirect the buyer.
		CreateTopUpIntent(ctx context.Context, accountID string, units int) (TopUpIntent, error)
		// CompleteTopUp marks a paid intent as applied. An intent can only be completed once.
		CompleteTopUp(ctx context.Context, intentID string) (TopUpIntent, error)
	}
)
