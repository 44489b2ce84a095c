package question

import (
	"context"
	"time"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
)

// Source delivers the list of questions visible to an account whenever it changes.
type Source interface {
	// Watch sends the current list right away, then each changed list until ctx is done.
	Watch(ctx context.Context, viewer account.Account) (<-chan []Question, error)
}

// Poller is a Source re-reading the lists on a fixed interval.
type Poller struct {
	svc      *Service
	interval time.Duration
	logger   core.Logger
}

var _ Source = (*Poller)(nil)

func NewPoller(svc *Service, interval time.Duration, logger core.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{svc: svc, interval: interval, logger: logger}
}

func (p *Poller) Watch(ctx context.Context, viewer account.Account) (<-chan []Question, error) {
	last, err := p.svc.List(ctx, viewer)
	if err != nil {
		return nil, err
	}

	updates := make(chan []Question, 1)
	updates <- last

	go func() {
		defer close(updates)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				list, err := p.svc.List(ctx, viewer)
				if err != nil {
					if ctx.Err() == nil {
						p.logger.Warn("polling questions", err, viewer)
					}
					continue
				}
				if sameSnapshot(last, list) {
					continue
				}
				last = list
				select {
				case updates <- list:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return updates, nil
}

// sameSnapshot compares the fields that change during a question's life; images are never rewritten.
func sameSnapshot(a, b []Question) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Status != y.Status || x.TutorID != y.TutorID || x.MeetingURL != y.MeetingURL ||
			x.ReplyText != y.ReplyText || x.HideForStudent != y.HideForStudent || x.HideForTutor != y.HideForTutor ||
			(x.ResolvedAt == nil) != (y.ResolvedAt == nil) {
			return false
		}
	}
	return true
}
