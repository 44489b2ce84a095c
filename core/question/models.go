package question

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/qsnap/core"
)

// Kind is the type of help a student requests.
type Kind string

const (
	KindImageCorrection Kind = "image_correction"
	KindAudioCall       Kind = "audio_call"
	KindVideoCall       Kind = "video_call"
)

var AllKinds = []Kind{KindImageCorrection, KindAudioCall, KindVideoCall}

func (k Kind) IsCall() bool {
	return k == KindAudioCall || k == KindVideoCall
}

func (k Kind) Valid() bool {
	for _, kind := range AllKinds {
		if k == kind {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusDeleted    Status = "deleted"
)

var AllStatuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusDeleted}

// IsTerminal reports whether no event moves a question out of s.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusDeleted
}

func (s Status) Valid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Question struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	StudentGrade   string     `json:"student_grade"`
	Kind           Kind       `json:"request_type"`
	Status         Status     `json:"status"`
	Image          string     `json:"image"`
	MeetingURL     string     `json:"meeting_url,omitempty"`
	ReplyText      string     `json:"tutor_reply_text,omitempty"`
	ReplyImage     string     `json:"tutor_reply_image,omitempty"`
	TutorID        string     `json:"tutor_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`            // UTC
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"` // UTC
	HideForStudent bool       `json:"hide_for_student"`
	HideForTutor   bool       `json:"hide_for_tutor"`
}

// NewQuestion contains information needed to submit a Question.
type NewQuestion struct {
	Grade string `json:"grade" validate:"max=50"`
	Kind  Kind   `json:"request_type" validate:"required,requestkind"`
	Image string `json:"image"` // base64 or data URL; checked by the service
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Grade = core.CleanString(nq.Grade)
	nq.Kind = Kind(core.CleanString(string(nq.Kind), true /* lower */))
	return validate.Struct(nq)
}

// Reply is a tutor's answer to an image-correction question.
type Reply struct {
	Text  string `json:"text" validate:"max=10000"`
	Image string `json:"image"`
}

func (r *Reply) Validate(validate *validator.Validate) error {
	r.Text = core.CleanString(r.Text)
	r.Image = core.CleanString(r.Image)
	return validate.Struct(r)
}

// Patch is a sparse update of a Question: only non-nil fields are written.
// The update only applies while the guards hold.
type Patch struct {
	Status         *Status
	TutorID        *string
	ReplyText      *string
	ReplyImage     *string
	MeetingURL     *string
	ResolvedAt     *time.Time
	HideForStudent *bool
	HideForTutor   *bool

	// guards
	IfStatus  Status // zero value: any status
	IfTutorID string // zero value: any tutor
}

// Holds reports whether the guards of p hold for q.
func (p Patch) Holds(q Question) bool {
	if p.IfStatus != "" && q.Status != p.IfStatus {
		return false
	}
	if p.IfTutorID != "" && q.TutorID != p.IfTutorID {
		return false
	}
	return true
}

// Apply returns q with the fields of p written.
func (p Patch) Apply(q Question) Question {
	if p.Status != nil {
		q.Status = *p.Status
	}
	if p.TutorID != nil {
		q.TutorID = *p.TutorID
	}
	if p.ReplyText != nil {
		q.ReplyText = *p.ReplyText
	}
	if p.ReplyImage != nil {
		q.ReplyImage = *p.ReplyImage
	}
	if p.MeetingURL != nil {
		q.MeetingURL = *p.MeetingURL
	}
	if p.ResolvedAt != nil {
		t := p.ResolvedAt.UTC()
		q.ResolvedAt = &t
	}
	if p.HideForStudent != nil {
		q.HideForStudent = *p.HideForStudent
	}
	if p.HideForTutor != nil {
		q.HideForTutor = *p.HideForTutor
	}
	return q
}

// QueryFilter applies AND operation on its set fields.
type QueryFilter struct {
	StudentID               string
	Statuses                []Status
	ExcludeDeleted          bool
	ExcludeHiddenForStudent bool
	ExcludeHiddenForTutor   bool
	CreatedFrom             time.Time
	// Ascending orders by created_at oldest first; newest first otherwise.
	Ascending bool
}

// Match reports whether q passes the filter.
func (qf QueryFilter) Match(q Question) bool {
	if qf.StudentID != "" && q.StudentID != qf.StudentID {
		return false
	}
	if len(qf.Statuses) > 0 {
		found := false
		for _, s := range qf.Statuses {
			if q.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.ExcludeDeleted && q.Status == StatusDeleted {
		return false
	}
	if qf.ExcludeHiddenForStudent && q.HideForStudent {
		return false
	}
	if qf.ExcludeHiddenForTutor && q.HideForTutor {
		return false
	}
	if !qf.CreatedFrom.IsZero() && q.CreatedAt.Before(qf.CreatedFrom) {
		return false
	}
	return true
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
