// Package paymentsvc holds the payment providers selling top-up units.
package paymentsvc

import (
	"context"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/qsnap/core"
)

var errInvalidUnits = errors.New("at least one top-up unit is required")

type intent struct {
	core.TopUpIntent
	used bool
}

// dummyService checks out instantly: the redirect url leads straight back to the frontend as a paid purchase.
type dummyService struct {
	mu        sync.Mutex
	intents   map[string]*intent
	returnURL string
}

var _ core.PaymentService = (*dummyService)(nil)

func NewDummyService(conf *core.Config) core.PaymentService {
	return &dummyService{
		intents:   make(map[string]*intent),
		returnURL: conf.Server.FrontendBaseURL + "/post",
	}
}

func (svc *dummyService) CreateTopUpIntent(_ context.Context, accountID string, units int) (core.TopUpIntent, error) {
	if units < 1 {
		return core.TopUpIntent{}, errInvalidUnits
	}

	ti := core.TopUpIntent{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Units:     units,
	}
	q := make(url.Values)
	q.Set("checkout", "success")
	q.Set("intent", ti.ID)
	ti.RedirectURL = svc.returnURL + "?" + q.Encode()

	svc.mu.Lock()
	svc.intents[ti.ID] = &intent{TopUpIntent: ti}
	svc.mu.Unlock()
	return ti, nil
}

func (svc *dummyService) CompleteTopUp(_ context.Context, intentID string) (core.TopUpIntent, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	it, ok := svc.intents[intentID]
	if !ok {
		return core.TopUpIntent{}, core.ErrIntentNotFound
	}
	if it.used {
		return core.TopUpIntent{}, core.ErrIntentUsed
	}
	it.used = true
	return it.TopUpIntent, nil
}
