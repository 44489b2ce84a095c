package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/qsnap/core/question"
)

func (db *DB) CreateQuestion(ctx context.Context, q question.Question) (question.Question, error) {
	err := db.write(ctx, func(t *tables) error {
		if _, exists := t.questions[q.ID]; exists {
			return errors.Errorf("duplicate question id %q", q.ID)
		}
		t.questions[q.ID] = q
		return nil
	})
	return q, err
}

func (db *DB) GetQuestion(ctx context.Context, id string) (q question.Question, err error) {
	err = db.read(ctx, func(t *tables) error {
		var ok bool
		if q, ok = t.questions[id]; !ok {
			return question.ErrNotFound
		}
		return nil
	})
	return q, err
}

func (db *DB) UpdateQuestion(ctx context.Context, id string, patch question.Patch) (q question.Question, err error) {
	err = db.write(ctx, func(t *tables) error {
		orig, ok := t.questions[id]
		if !ok {
			return question.ErrNotFound
		}
		if !patch.Holds(orig) {
			return question.ErrConflict
		}
		q = patch.Apply(orig)
		t.questions[id] = q
		return nil
	})
	return q, err
}

func (db *DB) QueryQuestions(ctx context.Context, filter question.QueryFilter) ([]question.Question, error) {
	qs := make([]question.Question, 0)
	err := db.read(ctx, func(t *tables) error {
		for _, q := range t.questions {
			if filter.Match(q) {
				qs = append(qs, q)
			}
		}
		return nil
	})

	sort.Slice(qs, func(i, j int) bool {
		a, b := qs[i], qs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if filter.Ascending {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return qs, err
}
