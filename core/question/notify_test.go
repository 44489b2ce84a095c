package question_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/qsnap/core/question"
	"github.com/trezcool/qsnap/tests"
)

func receive(t *testing.T, updates <-chan []Question) []Question {
	t.Helper()
	select {
	case list, ok := <-updates:
		require.True(t, ok, "updates closed")
		return list
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}
	return nil
}

func TestPoller_Watch(t *testing.T) {
	f := setup(t)
	poller := NewPoller(f.svc, 5*time.Millisecond, testutil.Logger{})

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()

	updates, err := poller.Watch(ctx, f.tutor)
	require.NoError(t, err)
	assert.Empty(t, receive(t, updates))

	q := f.create(t, KindImageCorrection)
	list := receive(t, updates)
	require.Len(t, list, 1)
	assert.Equal(t, StatusPending, list[0].Status)

	_, err = f.svc.Claim(f.ctx, f.tutor, q.ID)
	require.NoError(t, err)
	list = receive(t, updates)
	require.Len(t, list, 1)
	assert.Equal(t, StatusInProgress, list[0].Status)

	// no change, no update
	select {
	case <-updates:
		t.Fatal("unexpected update without change")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case _, ok := <-updates:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("updates not closed after cancel")
	}
}

func TestPoller_Watch_studentOnlySeesOwn(t *testing.T) {
	f := setup(t)
	poller := NewPoller(f.svc, 5*time.Millisecond, testutil.Logger{})
	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()

	other := testutil.CreateAccount(t, f.db, "zawadi", "s3cr3t-pwd", "student")
	updates, err := poller.Watch(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, receive(t, updates))

	f.create(t, KindImageCorrection)
	select {
	case <-updates:
		t.Fatal("student received another student's question")
	case <-time.After(50 * time.Millisecond):
	}

	_, err = poller.Watch(ctx, f.admin)
	assert.NoError(t, err)
}
