package sqlxdb

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/qsnap/core/question"
)

const questionColumns = "id, student_id, student_grade, request_type, status, image_b64, meeting_url, " +
	"tutor_reply_text, tutor_reply_image_b64, tutor_id, created_at, resolved_at, hide_for_student, hide_for_tutor"

type questionRow struct {
	ID             string      `db:"id"`
	StudentID      string      `db:"student_id"`
	StudentGrade   string      `db:"student_grade"`
	RequestType    string      `db:"request_type"`
	Status         string      `db:"status"`
	ImageB64       string      `db:"image_b64"`
	MeetingURL     null.String `db:"meeting_url"`
	ReplyText      null.String `db:"tutor_reply_text"`
	ReplyImageB64  null.String `db:"tutor_reply_image_b64"`
	TutorID        null.String `db:"tutor_id"`
	CreatedAt      time.Time   `db:"created_at"`
	ResolvedAt     null.Time   `db:"resolved_at"`
	HideForStudent bool        `db:"hide_for_student"`
	HideForTutor   bool        `db:"hide_for_tutor"`
}

// optString maps "" to NULL.
func optString(s string) null.String {
	return null.NewString(s, s != "")
}

func newQuestionRow(q question.Question) questionRow {
	return questionRow{
		ID:             q.ID,
		StudentID:      q.StudentID,
		StudentGrade:   q.StudentGrade,
		RequestType:    string(q.Kind),
		Status:         string(q.Status),
		ImageB64:       q.Image,
		MeetingURL:     optString(q.MeetingURL),
		ReplyText:      optString(q.ReplyText),
		ReplyImageB64:  optString(q.ReplyImage),
		TutorID:        optString(q.TutorID),
		CreatedAt:      q.CreatedAt,
		ResolvedAt:     null.TimeFromPtr(q.ResolvedAt),
		HideForStudent: q.HideForStudent,
		HideForTutor:   q.HideForTutor,
	}
}

func (row questionRow) question() question.Question {
	q := question.Question{
		ID:             row.ID,
		StudentID:      row.StudentID,
		StudentGrade:   row.StudentGrade,
		Kind:           question.Kind(row.RequestType),
		Status:         question.Status(row.Status),
		Image:          row.ImageB64,
		MeetingURL:     row.MeetingURL.String,
		ReplyText:      row.ReplyText.String,
		ReplyImage:     row.ReplyImageB64.String,
		TutorID:        row.TutorID.String,
		CreatedAt:      row.CreatedAt.UTC(),
		HideForStudent: row.HideForStudent,
		HideForTutor:   row.HideForTutor,
	}
	if row.ResolvedAt.Valid {
		t := row.ResolvedAt.Time.UTC()
		q.ResolvedAt = &t
	}
	return q
}

func (s *Store) CreateQuestion(ctx context.Context, q question.Question) (question.Question, error) {
	row := newQuestionRow(q)
	stmt := `
		INSERT INTO qsnap_questions (` + questionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + questionColumns
	err := s.exec(ctx).GetContext(ctx, &row, stmt,
		row.ID, row.StudentID, row.StudentGrade, row.RequestType, row.Status, row.ImageB64, row.MeetingURL,
		row.ReplyText, row.ReplyImageB64, row.TutorID, row.CreatedAt, row.ResolvedAt, row.HideForStudent, row.HideForTutor)
	if err != nil {
		return question.Question{}, wrapErr(err, "inserting question")
	}
	return row.question(), nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (question.Question, error) {
	if _, err := uuid.Parse(id); err != nil {
		return question.Question{}, question.ErrNotFound
	}

	var row questionRow
	q := "SELECT " + questionColumns + " FROM qsnap_questions WHERE id = $1" + s.forUpdate(ctx)
	if err := s.exec(ctx).GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return question.Question{}, question.ErrNotFound
		}
		return question.Question{}, wrapErr(err, "selecting question")
	}
	return row.question(), nil
}

// UpdateQuestion writes the set fields of patch with a single conditional UPDATE:
// the guards are part of the WHERE clause, so concurrent writers cannot both pass them.
func (s *Store) UpdateQuestion(ctx context.Context, id string, patch question.Patch) (question.Question, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.TutorID != nil {
		set("tutor_id", optString(*patch.TutorID))
	}
	if patch.ReplyText != nil {
		set("tutor_reply_text", optString(*patch.ReplyText))
	}
	if patch.ReplyImage != nil {
		set("tutor_reply_image_b64", optString(*patch.ReplyImage))
	}
	if patch.MeetingURL != nil {
		set("meeting_url", optString(*patch.MeetingURL))
	}
	if patch.ResolvedAt != nil {
		set("resolved_at", patch.ResolvedAt.UTC())
	}
	if patch.HideForStudent != nil {
		set("hide_for_student", *patch.HideForStudent)
	}
	if patch.HideForTutor != nil {
		set("hide_for_tutor", *patch.HideForTutor)
	}

	if len(sets) == 0 {
		q, err := s.GetQuestion(ctx, id)
		if err != nil {
			return question.Question{}, err
		}
		if !patch.Holds(q) {
			return question.Question{}, question.ErrConflict
		}
		return q, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return question.Question{}, question.ErrNotFound
	}

	where := []string{"id = ?"}
	args = append(args, id)
	if patch.IfStatus != "" {
		where = append(where, "status = ?")
		args = append(args, string(patch.IfStatus))
	}
	if patch.IfTutorID != "" {
		where = append(where, "tutor_id = ?")
		args = append(args, patch.IfTutorID)
	}

	exec := s.exec(ctx)
	stmt := exec.Rebind("UPDATE qsnap_questions SET " + strings.Join(sets, ", ") +
		" WHERE " + strings.Join(where, " AND ") + " RETURNING " + questionColumns)

	var row questionRow
	if err := exec.GetContext(ctx, &row, stmt, args...); err != nil {
		if err != sql.ErrNoRows {
			return question.Question{}, wrapErr(err, "updating question")
		}
		// missing row or failed guard
		if _, err = s.GetQuestion(ctx, id); err != nil {
			return question.Question{}, err
		}
		return question.Question{}, question.ErrConflict
	}
	return row.question(), nil
}

func (s *Store) QueryQuestions(ctx context.Context, filter question.QueryFilter) ([]question.Question, error) {
	var (
		where []string
		args  []interface{}
	)
	cond := func(c string, vals ...interface{}) {
		where = append(where, c)
		args = append(args, vals...)
	}
	if filter.StudentID != "" {
		cond("student_id = ?", filter.StudentID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		cond("status IN (?)", statuses)
	}
	if filter.ExcludeDeleted {
		cond("status <> ?", string(question.StatusDeleted))
	}
	if filter.ExcludeHiddenForStudent {
		cond("hide_for_student = FALSE")
	}
	if filter.ExcludeHiddenForTutor {
		cond("hide_for_tutor = FALSE")
	}
	if !filter.CreatedFrom.IsZero() {
		cond("created_at >= ?", filter.CreatedFrom.UTC())
	}

	q := "SELECT " + questionColumns + " FROM qsnap_questions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.Ascending {
		q += " ORDER BY created_at ASC, id ASC"
	} else {
		q += " ORDER BY created_at DESC, id ASC"
	}

	// expand the IN clause
	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, wrapErr(err, "building questions query")
	}
	exec := s.exec(ctx)

	rows := make([]questionRow, 0)
	if err = exec.SelectContext(ctx, &rows, exec.Rebind(q), args...); err != nil {
		return nil, wrapErr(err, "selecting questions")
	}

	qs := make([]question.Question, 0, len(rows))
	for _, row := range rows {
		qs = append(qs, row.question())
	}
	return qs, nil
}
