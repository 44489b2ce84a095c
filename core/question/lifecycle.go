package question

import "github.com/pkg/errors"

// Event is a lifecycle action applied to an existing Question.
type Event string

const (
	EventClaim    Event = "claim"
	EventConfirm  Event = "confirm"
	EventReply    Event = "reply"
	EventComplete Event = "complete"
	EventDelete   Event = "delete"
)

var (
	ErrInvalidTransition = errors.New("this action is not allowed in the question's current status")
	ErrKindMismatch      = errors.New("this action is not available for this request type")
)

type edge struct {
	from  Status
	event Event
}

var transitions = map[edge]Status{
	{StatusPending, EventClaim}:       StatusInProgress,
	{StatusPending, EventConfirm}:     StatusInProgress,
	{StatusInProgress, EventReply}:    StatusResolved,
	{StatusInProgress, EventComplete}: StatusResolved,
	{StatusPending, EventDelete}:      StatusDeleted,
	{StatusInProgress, EventDelete}:   StatusDeleted,
}

// nil: any kind
var eventKinds = map[Event]func(Kind) bool{
	EventClaim:    func(k Kind) bool { return k == KindImageCorrection },
	EventReply:    func(k Kind) bool { return k == KindImageCorrection },
	EventConfirm:  Kind.IsCall,
	EventComplete: Kind.IsCall,
}

// Transition returns the status a question of kind `kind` in status `from` moves to on `ev`.
func Transition(from Status, kind Kind, ev Event) (Status, error) {
	if accepts, ok := eventKinds[ev]; ok && !accepts(kind) {
		return from, ErrKindMismatch
	}
	if from.IsTerminal() {
		return from, ErrInvalidTransition
	}
	to, ok := transitions[edge{from, ev}]
	if !ok {
		return from, ErrInvalidTransition
	}
	return to, nil
}
