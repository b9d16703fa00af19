// Package scheduler turns selected campaigns into display attempts, either
// immediately or after the campaign's delay, without ever blocking the
// caller. At most one message surface is active at a time; the gate is
// checked when a display fires, not when it is scheduled, so concurrently
// delayed campaigns race for it and the loser is dropped, never queued.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"notifly-go/internal/model"
	"notifly-go/internal/observability"
)

// Renderer is the egress to the UI layer. Fire-and-forget: the scheduler
// does not await a result. The correlation id is a fresh message-instance
// identifier used only for click/impression correlation, independent of the
// campaign id.
type Renderer interface {
	RenderCampaign(url string, modalProps map[string]any, correlationID string)
}

type Scheduler struct {
	renderer Renderer
	metrics  *observability.Metrics

	active atomic.Bool // is a message surface currently shown

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func New(renderer Renderer, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		renderer: renderer,
		metrics:  metrics,
		timers:   map[string]*time.Timer{},
	}
}

// Schedule displays the campaign now, or after its delay via a timer. Many
// delays may be in flight at once; none of them ties up a caller.
func (s *Scheduler) Schedule(c model.Campaign) {
	s.metrics.MessagesScheduled.Inc()
	if c.Delay <= 0 {
		s.display(c)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	id := uuid.NewString()
	s.timers[id] = time.AfterFunc(time.Duration(c.Delay)*time.Second, func() {
		s.mu.Lock()
		delete(s.timers, id)
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			s.display(c)
		}
	})
	log.Debug().Str("campaign_id", c.ID).Int64("delay_s", c.Delay).Msg("display deferred")
}

func (s *Scheduler) display(c model.Campaign) {
	if !s.active.CompareAndSwap(false, true) {
		log.Debug().Str("campaign_id", c.ID).Msg("message surface busy, dropping display attempt")
		s.metrics.MessagesDropped.Inc()
		return
	}
	correlationID := uuid.NewString()
	log.Info().
		Str("campaign_id", c.ID).
		Str("correlation_id", correlationID).
		Msg("rendering in-app message")
	s.metrics.MessagesDisplayed.Inc()
	s.renderer.RenderCampaign(c.Message.HTMLURL, c.Message.ModalProperties, correlationID)
}

// MessageClosed releases the single-active-surface gate. Called by the host
// when the rendered message is dismissed.
func (s *Scheduler) MessageClosed() {
	s.active.Store(false)
}

// Active reports whether a message surface is currently shown.
func (s *Scheduler) Active() bool {
	return s.active.Load()
}

// Close cancels every pending delayed display. Displays already fired are
// unaffected.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
