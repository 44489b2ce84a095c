package paymentsvc

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/tests"
)

func TestDummyService(t *testing.T) {
	ctx := context.Background()
	svc := NewDummyService(testutil.NewConfig())

	_, err := svc.CreateTopUpIntent(ctx, "amani", 0)
	assert.Error(t, err)

	ti, err := svc.CreateTopUpIntent(ctx, "amani", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, ti.ID)
	assert.Equal(t, 2, ti.Units)

	u, err := url.Parse(ti.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "localhost:3000", u.Host)
	assert.Equal(t, "/post", u.Path)
	assert.Equal(t, "success", u.Query().Get("checkout"))
	assert.Equal(t, ti.ID, u.Query().Get("intent"))

	_, err = svc.CompleteTopUp(ctx, "unknown")
	assert.Equal(t, core.ErrIntentNotFound, err)

	// concurrent callbacks: a purchase is applied once
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		applied  int
		rejected int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done, err := svc.CompleteTopUp(ctx, ti.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.Equal(t, core.ErrIntentUsed, err)
				rejected++
				return
			}
			assert.Equal(t, "amani", done.AccountID)
			assert.Equal(t, 2, done.Units)
			applied++
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, applied)
	assert.Equal(t, 4, rejected)
}
