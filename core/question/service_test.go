package question_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/qsnap/core/account"
	. "github.com/trezcool/qsnap/core/question"
	"github.com/trezcool/qsnap/storage/database/inmem"
	"github.com/trezcool/qsnap/tests"
)

type fixture struct {
	ctx     context.Context
	db      *inmemdb.DB
	svc     *Service
	student account.Account
	tutor   account.Account
	tutor2  account.Account
	admin   account.Account
}

func setup(t *testing.T, studentMinutes ...int) *fixture {
	f := &fixture{ctx: context.Background(), db: inmemdb.Open()}
	f.svc = NewService(f.db, testutil.NewConfig())
	f.student = testutil.CreateAccount(t, f.db, "amani", "s3cr3t-pwd", account.RoleStudent, studentMinutes...)
	f.tutor = testutil.CreateAccount(t, f.db, "baraka", "t3ach-m3", account.RoleTutor)
	f.tutor2 = testutil.CreateAccount(t, f.db, "chausiku", "t3ach-m3", account.RoleTutor)
	f.admin = testutil.CreateAccount(t, f.db, "root", "adm1n-pwd", account.RoleAdmin)
	return f
}

func (f *fixture) create(t *testing.T, kind Kind) Question {
	q, err := f.svc.Create(f.ctx, f.student, NewQuestion{Kind: kind, Image: testutil.Image})
	require.NoError(t, err)
	return q
}

func (f *fixture) balance(t *testing.T, id string) int {
	b, err := f.db.GetBalance(f.ctx, id)
	require.NoError(t, err)
	return b
}

func (f *fixture) answers(t *testing.T, id string) int {
	n, err := f.db.GetAnswerCount(f.ctx, id)
	require.NoError(t, err)
	return n
}

func TestService_Create(t *testing.T) {
	f := setup(t)

	q := f.create(t, KindImageCorrection)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, StatusPending, q.Status)
	assert.Equal(t, "amani", q.StudentID)
	assert.False(t, q.CreatedAt.IsZero())
	assert.Empty(t, q.TutorID)
	assert.Nil(t, q.ResolvedAt)
	assert.Equal(t, 105, f.balance(t, "amani"))

	stored, err := f.db.GetQuestion(f.ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q, stored)
}

func TestService_Create_insufficientBalance(t *testing.T) {
	f := setup(t, 10)

	_, err := f.svc.Create(f.ctx, f.student, NewQuestion{Kind: KindAudioCall, Image: testutil.Image})
	assert.Equal(t, ErrInsufficientBalance, err)
	assert.Equal(t, 10, f.balance(t, "amani"))

	qs, err := f.svc.ListForStudent(f.ctx, "amani")
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestService_Create_exactCost(t *testing.T) {
	f := setup(t, 15)

	f.create(t, KindVideoCall)
	assert.Equal(t, 0, f.balance(t, "amani"))

	_, err := f.svc.Create(f.ctx, f.student, NewQuestion{Kind: KindVideoCall, Image: testutil.Image})
	assert.Equal(t, ErrInsufficientBalance, err)
}

func TestService_Create_attachment(t *testing.T) {
	tests := []struct {
		name    string
		image   string
		wantErr error
	}{
		{name: "missing", image: "", wantErr: ErrMissingAttachment},
		{name: "blank", image: "   ", wantErr: ErrMissingAttachment},
		{name: "empty data url", image: "data:image/png;base64,", wantErr: ErrMissingAttachment},
		{name: "not base64", image: "data:image/png;base64,@@@", wantErr: ErrInvalidAttachment},
		{name: "too large", image: strings.Repeat("QUFB", 1024), wantErr: ErrAttachmentTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			_, err := f.svc.Create(f.ctx, f.student, NewQuestion{Kind: KindImageCorrection, Image: tt.image})
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, 120, f.balance(t, "amani"), "no debit on rejected attachment")
		})
	}
}

func TestService_Create_notStudent(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Create(f.ctx, f.tutor, NewQuestion{Kind: KindImageCorrection, Image: testutil.Image})
	assert.Equal(t, ErrForbidden, err)
}

// failingStore fails question inserts after the debit went through.
type failingStore struct {
	*inmemdb.DB
}

func (failingStore) CreateQuestion(context.Context, Question) (Question, error) {
	return Question{}, errors.New("disk full")
}

func TestService_Create_isAtomic(t *testing.T) {
	f := setup(t)
	svc := NewService(failingStore{f.db}, testutil.NewConfig())

	_, err := svc.Create(f.ctx, f.student, NewQuestion{Kind: KindImageCorrection, Image: testutil.Image})
	require.Error(t, err)
	assert.Equal(t, 120, f.balance(t, "amani"), "debit must roll back with the failed insert")
}

func TestService_Claim(t *testing.T) {
	f := setup(t)
	q := f.create(t, KindImageCorrection)

	claimed, err := f.svc.Claim(f.ctx, f.tutor, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, claimed.Status)
	assert.Equal(t, "baraka", claimed.TutorID)

	_, err = f.svc.Claim(f.ctx, f.tutor2, q.ID)
	assert.Equal(t, ErrAlreadyClaimed, err)

	got, err := f.svc.Get(f.ctx, f.tutor2, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "baraka", got.TutorID)

	call := f.create(t, KindAudioCall)
	_, err = f.svc.Claim(f.ctx, f.tutor, call.ID)
	assert.Equal(t, ErrKindMismatch, err)

	_, err = f.svc.Claim(f.ctx, f.tutor, "nope")
	assert.Equal(t, ErrNotFound, errors.Cause(err))

	_, err = f.svc.Claim(f.ctx, f.student, q.ID)
	assert.Equal(t, ErrForbidden, err)
}

func TestService_Claim_concurrent(t *testing.T) {
	f := setup(t)
	tutors := []account.Account{f.tutor, f.tutor2}
	for i := 0; i < 6; i++ {
		acc := testutil.CreateAccount(t, f.db, "tutor"+string(rune('a'+i)), "t3ach-m3", account.RoleTutor)
		tutors = append(tutors, acc)
	}
	q := f.create(t, KindImageCorrection)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  int
	)
	for _, tutor := range tutors {
		wg.Add(1)
		go func(tutor account.Account) {
			defer wg.Done()
			_, err := f.svc.Claim(f.ctx, tutor, q.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, tutor.ID)
				return
			}
			assert.Equal(t, ErrAlreadyClaimed, err)
			losers++
		}(tutor)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, len(tutors)-1, losers)

	got, err := f.db.GetQuestion(f.ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, winners[0], got.TutorID)
}

func TestService_Confirm(t *testing.T) {
	f := setup(t)
	call := f.create(t, KindVideoCall)

	_, err := f.svc.Confirm(f.ctx, f.tutor, call.ID, "  ")
	assert.Equal(t, ErrMissingMeetingURL, err)

	got, err := f.db.GetQuestion(f.ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	confirmed, err := f.svc.Confirm(f.ctx, f.tutor, call.ID, "https://meet.example.com/abc")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, confirmed.Status)
	assert.Equal(t, "baraka", confirmed.TutorID)
	assert.Equal(t, "https://meet.example.com/abc", confirmed.MeetingURL)

	_, err = f.svc.Confirm(f.ctx, f.tutor2, call.ID, "https://meet.example.com/xyz")
	assert.Equal(t, ErrAlreadyClaimed, err)

	img := f.create(t, KindImageCorrection)
	_, err = f.svc.Confirm(f.ctx, f.tutor, img.ID, "https://meet.example.com/abc")
	assert.Equal(t, ErrKindMismatch, err)
}

func TestService_Reply(t *testing.T) {
	f := setup(t)
	q := f.create(t, KindImageCorrection)

	// not claimed yet
	_, err := f.svc.Reply(f.ctx, f.tutor, q.ID, Reply{Text: "x = 2"})
	assert.Equal(t, ErrInvalidTransition, err)

	_, err = f.svc.Claim(f.ctx, f.tutor, q.ID)
	require.NoError(t, err)

	_, err = f.svc.Reply(f.ctx, f.tutor2, q.ID, Reply{Text: "x = 3"})
	assert.Equal(t, ErrNotAssignedTutor, err)
	got, err := f.db.GetQuestion(f.ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, 0, f.answers(t, "chausiku"))
	assert.Equal(t, 0, f.answers(t, "baraka"))

	_, err = f.svc.Reply(f.ctx, f.tutor, q.ID, Reply{})
	assert.Equal(t, ErrEmptyReply, err)

	now := time.Now().UTC().Truncate(time.Second)
	restore := SetNow(now)
	defer restore()

	resolved, err := f.svc.Reply(f.ctx, f.tutor, q.ID, Reply{Text: "x = 2", Image: testutil.Image})
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, resolved.Status)
	assert.Equal(t, "x = 2", resolved.ReplyText)
	assert.Equal(t, testutil.Image, resolved.ReplyImage)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, now.Equal(*resolved.ResolvedAt))
	assert.Equal(t, 1, f.answers(t, "baraka"))

	// already terminal
	restore()
	_, err = f.svc.Reply(f.ctx, f.tutor, q.ID, Reply{Text: "again"})
	assert.Equal(t, ErrInvalidTransition, err)
	assert.Equal(t, 1, f.answers(t, "baraka"))
	got, err = f.db.GetQuestion(f.ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, now.Equal(*got.ResolvedAt), "resolved_at is set once")
	assert.Equal(t, "x = 2", got.ReplyText)
}

func TestService_Complete(t *testing.T) {
	f := setup(t)
	call := f.create(t, KindAudioCall)
	_, err := f.svc.Confirm(f.ctx, f.tutor, call.ID, "https://meet.example.com/abc")
	require.NoError(t, err)

	_, err = f.svc.Complete(f.ctx, f.tutor, call.ID, false)
	assert.Equal(t, ErrConfirmationRequired, err)

	_, err = f.svc.Complete(f.ctx, f.tutor2, call.ID, true)
	assert.Equal(t, ErrNotAssignedTutor, err)

	done, err := f.svc.Complete(f.ctx, f.tutor, call.ID, true)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, done.Status)
	assert.NotNil(t, done.ResolvedAt)
	assert.Equal(t, 1, f.answers(t, "baraka"))

	_, err = f.svc.Complete(f.ctx, f.tutor, call.ID, true)
	assert.Equal(t, ErrInvalidTransition, err)
	assert.Equal(t, 1, f.answers(t, "baraka"))
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	pending := f.create(t, KindImageCorrection)
	inProgress := f.create(t, KindImageCorrection)
	resolved := f.create(t, KindImageCorrection)
	_, err := f.svc.Claim(f.ctx, f.tutor, inProgress.ID)
	require.NoError(t, err)
	_, err = f.svc.Claim(f.ctx, f.tutor, resolved.ID)
	require.NoError(t, err)
	_, err = f.svc.Reply(f.ctx, f.tutor, resolved.ID, Reply{Text: "done"})
	require.NoError(t, err)

	_, err = f.svc.Delete(f.ctx, pending.ID, "wrong")
	assert.Equal(t, ErrWrongOverride, err)
	got, err := f.db.GetQuestion(f.ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	for _, id := range []string{pending.ID, inProgress.ID} {
		deleted, err := f.svc.Delete(f.ctx, id, testutil.OverrideSecret)
		require.NoError(t, err)
		assert.Equal(t, StatusDeleted, deleted.Status)
	}

	_, err = f.svc.Delete(f.ctx, pending.ID, testutil.OverrideSecret)
	assert.Equal(t, ErrInvalidTransition, err)
	_, err = f.svc.Claim(f.ctx, f.tutor2, pending.ID)
	assert.Equal(t, ErrInvalidTransition, err)

	_, err = f.svc.Delete(f.ctx, resolved.ID, testutil.OverrideSecret)
	assert.Equal(t, ErrInvalidTransition, err)
}

func TestService_Hide(t *testing.T) {
	f := setup(t)
	q := f.create(t, KindImageCorrection)

	other := testutil.CreateAccount(t, f.db, "zawadi", "s3cr3t-pwd", account.RoleStudent)
	_, err := f.svc.Hide(f.ctx, other, q.ID)
	assert.Equal(t, ErrNotFound, err)

	hidden, err := f.svc.Hide(f.ctx, f.tutor, q.ID)
	require.NoError(t, err)
	assert.True(t, hidden.HideForTutor)
	assert.False(t, hidden.HideForStudent)
	assert.Equal(t, StatusPending, hidden.Status)

	tutorList, err := f.svc.ListForTutor(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, tutorList)
	studentList, err := f.svc.ListForStudent(f.ctx, "amani")
	require.NoError(t, err)
	assert.Len(t, studentList, 1)

	_, err = f.svc.Hide(f.ctx, f.student, q.ID)
	require.NoError(t, err)
	studentList, err = f.svc.ListForStudent(f.ctx, "amani")
	require.NoError(t, err)
	assert.Empty(t, studentList)

	_, err = f.svc.Hide(f.ctx, f.admin, q.ID)
	assert.Equal(t, ErrForbidden, err)
}

func TestService_Get(t *testing.T) {
	f := setup(t, 500)
	q := f.create(t, KindImageCorrection)
	other := testutil.CreateAccount(t, f.db, "zawadi", "s3cr3t-pwd", account.RoleStudent)

	got, err := f.svc.Get(f.ctx, f.student, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.ID)

	_, err = f.svc.Get(f.ctx, other, q.ID)
	assert.Equal(t, ErrNotFound, err)

	_, err = f.svc.Get(f.ctx, f.tutor, q.ID)
	assert.NoError(t, err)
}

func TestService_List(t *testing.T) {
	f := setup(t, 500)
	other := testutil.CreateAccount(t, f.db, "zawadi", "s3cr3t-pwd", account.RoleStudent)

	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration, student account.Account) Question {
		restore := SetNow(now.Add(-d))
		defer restore()
		q, err := f.svc.Create(f.ctx, student, NewQuestion{Kind: KindImageCorrection, Image: testutil.Image})
		require.NoError(t, err)
		return q
	}
	tooOld := at(31*24*time.Hour, f.student)
	oldest := at(29*24*time.Hour, f.student)
	middle := at(2*time.Hour, other)
	newest := at(time.Hour, f.student)
	deleted := at(30*time.Minute, f.student)
	_, err := f.svc.Delete(f.ctx, deleted.ID, testutil.OverrideSecret)
	require.NoError(t, err)

	restore := SetNow(now)
	defer restore()

	ids := func(qs []Question) []string {
		res := make([]string, 0, len(qs))
		for _, q := range qs {
			res = append(res, q.ID)
		}
		return res
	}

	studentList, err := f.svc.ListForStudent(f.ctx, "amani")
	require.NoError(t, err)
	assert.Equal(t, []string{newest.ID, oldest.ID}, ids(studentList))

	tutorList, err := f.svc.ListForTutor(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{oldest.ID, middle.ID, newest.ID}, ids(tutorList))
	assert.NotContains(t, ids(tutorList), tooOld.ID)

	_, err = f.svc.Claim(f.ctx, f.tutor, middle.ID)
	require.NoError(t, err)
	pendingList, err := f.svc.ListForTutor(f.ctx, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, []string{oldest.ID, newest.ID}, ids(pendingList))

	viaRole, err := f.svc.List(f.ctx, f.tutor, StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, []string{middle.ID}, ids(viaRole))
}
