package question

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
	"github.com/trezcool/qsnap/core/metering"
)

const defaultListWindow = 30 * 24 * time.Hour

var (
	// mockable
	nowFunc   = time.Now
	newIDFunc = uuid.NewString

	// errors
	ErrNotFound             = errors.New("question not found")
	ErrConflict             = errors.New("question was modified concurrently")
	ErrInsufficientBalance  = errors.New("not enough remaining minutes, please purchase more time")
	ErrMissingAttachment    = errors.New("an image of the question is required")
	ErrAttachmentTooLarge   = errors.New("the image is too large")
	ErrInvalidAttachment    = errors.New("the image could not be decoded")
	ErrMissingMeetingURL    = errors.New("a meeting url is required to confirm a call")
	ErrEmptyReply           = errors.New("a reply text or image is required")
	ErrAlreadyClaimed       = errors.New("this question has already been taken by another tutor")
	ErrNotAssignedTutor     = errors.New("this question is assigned to another tutor")
	ErrConfirmationRequired = errors.New("completing a call must be explicitly confirmed")
	ErrWrongOverride        = errors.New("invalid administrator password")
	ErrForbidden            = errors.New("you are not allowed to perform this action")
)

type (
	// Repository is the question half of the ledger store.
	Repository interface {
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestion(ctx context.Context, id string) (Question, error)
		// UpdateQuestion applies `patch` only while its guards hold; ErrConflict otherwise.
		UpdateQuestion(ctx context.Context, id string, patch Patch) (Question, error)
		QueryQuestions(ctx context.Context, filter QueryFilter) ([]Question, error)
	}

	// Store is the ledger store: both halves behind one transaction boundary.
	Store interface {
		account.Repository
		Repository
		core.Transactor
	}

	Service struct {
		store         Store
		policy        metering.Policy
		listWindow    time.Duration
		maxImageBytes int
		checkOverride func(secret string) bool
	}
)

func NewService(store Store, conf *core.Config) *Service {
	svc := &Service{
		store:         store,
		policy:        metering.NewPolicy(conf.Metering),
		listWindow:    conf.Metering.ListWindow,
		maxImageBytes: conf.Metering.MaxImageBytes,
		checkOverride: conf.CheckOverrideSecret,
	}
	if svc.listWindow <= 0 {
		svc.listWindow = defaultListWindow
	}
	return svc
}

func (svc *Service) checkImage(payload string, required bool) error {
	if strings.TrimSpace(payload) == "" {
		if required {
			return ErrMissingAttachment
		}
		return nil
	}
	data, err := core.DecodeImage(payload)
	if err != nil {
		return ErrInvalidAttachment
	}
	if len(data) == 0 {
		return ErrMissingAttachment
	}
	if svc.maxImageBytes > 0 && len(data) > svc.maxImageBytes {
		return ErrAttachmentTooLarge
	}
	return nil
}

// Create admits a question from `student`: the cost is debited and the question inserted as one unit.
func (svc *Service) Create(ctx context.Context, student account.Account, nq NewQuestion) (Question, error) {
	if !student.IsStudent() {
		return Question{}, ErrForbidden
	}
	if !nq.Kind.Valid() {
		return Question{}, ErrKindMismatch
	}
	// checked before any debit
	if err := svc.checkImage(nq.Image, true); err != nil {
		return Question{}, err
	}

	var created Question
	err := svc.store.WithinTx(ctx, func(ctx context.Context) error {
		acc, err := svc.store.GetAccount(ctx, student.ID)
		if err != nil {
			return errors.Wrap(err, "getting account")
		}
		balance := acc.Balance()
		if !svc.policy.CanAdmit(balance) {
			return ErrInsufficientBalance
		}
		if err = svc.store.SetBalance(ctx, acc.ID, svc.policy.ChargeQuestion(balance)); err != nil {
			return errors.Wrap(err, "debiting balance")
		}

		grade := nq.Grade
		if grade == "" {
			grade = acc.Grade
		}
		created, err = svc.store.CreateQuestion(ctx, Question{
			ID:           newIDFunc(),
			StudentID:    acc.ID,
			StudentGrade: grade,
			Kind:         nq.Kind,
			Status:       StatusPending,
			Image:        strings.TrimSpace(nq.Image),
			CreatedAt:    nowFunc().UTC(),
		})
		return errors.Wrap(err, "creating question")
	})
	if err != nil {
		return Question{}, err
	}
	return created, nil
}

// Claim assigns a pending image-correction question to `tutor`.
func (svc *Service) Claim(ctx context.Context, tutor account.Account, id string) (Question, error) {
	if !tutor.IsTutor() {
		return Question{}, ErrForbidden
	}
	return svc.take(ctx, tutor, id, EventClaim, Patch{})
}

// Confirm accepts a pending call question: `tutor` is assigned and the meeting url attached.
func (svc *Service) Confirm(ctx context.Context, tutor account.Account, id, meetingURL string) (Question, error) {
	if !tutor.IsTutor() {
		return Question{}, ErrForbidden
	}
	meetingURL = core.CleanString(meetingURL)
	return svc.take(ctx, tutor, id, EventConfirm, Patch{MeetingURL: &meetingURL})
}

// take moves a pending question to in-progress for `tutor`, with a compare-and-swap on the pending status.
func (svc *Service) take(ctx context.Context, tutor account.Account, id string, ev Event, patch Patch) (Question, error) {
	var updated Question
	err := svc.store.WithinTx(ctx, func(ctx context.Context) error {
		q, err := svc.store.GetQuestion(ctx, id)
		if err != nil {
			return err
		}
		to, err := Transition(q.Status, q.Kind, ev)
		if err != nil {
			if err == ErrInvalidTransition && q.TutorID != "" {
				return ErrAlreadyClaimed
			}
			return err
		}
		if ev == EventConfirm && (patch.MeetingURL == nil || *patch.MeetingURL == "") {
			return ErrMissingMeetingURL
		}

		patch.Status = &to
		patch.TutorID = strPtr(tutor.ID)
		patch.IfStatus = StatusPending
		updated, err = svc.store.UpdateQuestion(ctx, id, patch)
		if errors.Cause(err) == ErrConflict {
			return ErrAlreadyClaimed
		}
		return err
	})
	if err != nil {
		return Question{}, err
	}
	return updated, nil
}

// Reply resolves an in-progress image-correction question with the answer of its assigned tutor.
func (svc *Service) Reply(ctx context.Context, tutor account.Account, id string, reply Reply) (Question, error) {
	if !tutor.IsTutor() {
		return Question{}, ErrForbidden
	}
	if reply.Text == "" && reply.Image == "" {
		return Question{}, ErrEmptyReply
	}
	if err := svc.checkImage(reply.Image, false); err != nil {
		return Question{}, err
	}
	return svc.resolve(ctx, tutor, id, EventReply, Patch{ReplyText: &reply.Text, ReplyImage: &reply.Image})
}

// Complete resolves an in-progress call question. `confirmed` must be true.
func (svc *Service) Complete(ctx context.Context, tutor account.Account, id string, confirmed bool) (Question, error) {
	if !tutor.IsTutor() {
		return Question{}, ErrForbidden
	}
	if !confirmed {
		return Question{}, ErrConfirmationRequired
	}
	return svc.resolve(ctx, tutor, id, EventComplete, Patch{})
}

// resolve moves an in-progress question to resolved and credits the answer to `tutor`.
func (svc *Service) resolve(ctx context.Context, tutor account.Account, id string, ev Event, patch Patch) (Question, error) {
	var updated Question
	err := svc.store.WithinTx(ctx, func(ctx context.Context) error {
		q, err := svc.store.GetQuestion(ctx, id)
		if err != nil {
			return err
		}
		to, err := Transition(q.Status, q.Kind, ev)
		if err != nil {
			return err
		}
		if q.TutorID != tutor.ID {
			return ErrNotAssignedTutor
		}

		now := nowFunc().UTC()
		patch.Status = &to
		patch.ResolvedAt = &now
		patch.IfStatus = StatusInProgress
		patch.IfTutorID = tutor.ID
		updated, err = svc.store.UpdateQuestion(ctx, id, patch)
		if err != nil {
			if errors.Cause(err) == ErrConflict {
				return ErrInvalidTransition
			}
			return err
		}
		return errors.Wrap(svc.store.IncrementAnswerCount(ctx, tutor.ID), "crediting answer")
	})
	if err != nil {
		return Question{}, err
	}
	return updated, nil
}

// Delete marks a non-terminal question as deleted. `secret` is the administrative override password.
func (svc *Service) Delete(ctx context.Context, id, secret string) (Question, error) {
	if !svc.checkOverride(secret) {
		return Question{}, ErrWrongOverride
	}

	var updated Question
	err := svc.store.WithinTx(ctx, func(ctx context.Context) error {
		q, err := svc.store.GetQuestion(ctx, id)
		if err != nil {
			return err
		}
		to, err := Transition(q.Status, q.Kind, EventDelete)
		if err != nil {
			return err
		}
		updated, err = svc.store.UpdateQuestion(ctx, id, Patch{Status: &to, IfStatus: q.Status})
		if errors.Cause(err) == ErrConflict {
			return ErrInvalidTransition
		}
		return err
	})
	if err != nil {
		return Question{}, err
	}
	return updated, nil
}

// Hide removes a question from the list of the actor's role. The status is left unchanged.
func (svc *Service) Hide(ctx context.Context, actor account.Account, id string) (Question, error) {
	var updated Question
	err := svc.store.WithinTx(ctx, func(ctx context.Context) error {
		q, err := svc.store.GetQuestion(ctx, id)
		if err != nil {
			return err
		}
		var patch Patch
		switch {
		case actor.IsStudent():
			if q.StudentID != actor.ID {
				return ErrNotFound
			}
			patch.HideForStudent = boolPtr(true)
		case actor.IsTutor():
			patch.HideForTutor = boolPtr(true)
		default:
			return ErrForbidden
		}
		updated, err = svc.store.UpdateQuestion(ctx, id, patch)
		return err
	})
	if err != nil {
		return Question{}, err
	}
	return updated, nil
}

// Get returns question `id`. Students only see their own questions.
func (svc *Service) Get(ctx context.Context, actor account.Account, id string) (Question, error) {
	q, err := svc.store.GetQuestion(ctx, id)
	if err != nil {
		return Question{}, err
	}
	if actor.IsStudent() && q.StudentID != actor.ID {
		return Question{}, ErrNotFound
	}
	return q, nil
}

// ListForStudent returns the recent questions of `studentID`, newest first.
func (svc *Service) ListForStudent(ctx context.Context, studentID string, statuses ...Status) ([]Question, error) {
	return svc.store.QueryQuestions(ctx, QueryFilter{
		StudentID:               studentID,
		Statuses:                statuses,
		ExcludeDeleted:          true,
		ExcludeHiddenForStudent: true,
		CreatedFrom:             nowFunc().UTC().Add(-svc.listWindow),
	})
}

// ListForTutor returns the recent questions of all students, oldest first.
func (svc *Service) ListForTutor(ctx context.Context, statuses ...Status) ([]Question, error) {
	return svc.store.QueryQuestions(ctx, QueryFilter{
		Statuses:              statuses,
		ExcludeDeleted:        true,
		ExcludeHiddenForTutor: true,
		CreatedFrom:           nowFunc().UTC().Add(-svc.listWindow),
		Ascending:             true,
	})
}

// List returns the list matching the role of `actor`.
func (svc *Service) List(ctx context.Context, actor account.Account, statuses ...Status) ([]Question, error) {
	switch {
	case actor.IsStudent():
		return svc.ListForStudent(ctx, actor.ID, statuses...)
	case actor.IsTutor(), actor.IsAdmin():
		return svc.ListForTutor(ctx, statuses...)
	}
	return nil, ErrForbidden
}
