package document

import (
	"log/slog"
	"sync"
	"time"
)

type Step string

const (
	StepStarting   Step = "starting"
	StepValidating Step = "validating"
	StepProcessing Step = "processing"
	StepExtracting Step = "extracting"
	StepIndexing   Step = "indexing"
	StepSaving     Step = "saving"
	StepCompleted  Step = "completed"
	StepError      Step = "error"
)

func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepError
}

// Event is one progress update as sent to SSE clients.
type Event struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Step      Step      `json:"step,omitempty"`
	Message   string    `json:"message,omitempty"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

const subscriberBuffer = 16

// Tracker owns the progress sessions of in-flight uploads, keyed by the
// client-supplied progress id.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*Session
	grace    time.Duration
	log      *slog.Logger
}

func NewTracker(grace time.Duration, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	if grace <= 0 {
		grace = 30 * time.Second
	}
	return &Tracker{
		sessions: make(map[string]*Session),
		grace:    grace,
		log:      log.With("component", "progress"),
	}
}

// Start returns the live session for id, creating it if needed. A session
// that already finished is replaced.
func (t *Tracker) Start(id string) *Session {
	if id == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[id]; ok && !s.finished() {
		return s
	}
	s := newSession(id, t)
	t.sessions[id] = s
	return s
}

// Subscribe streams the session's events. The last event is replayed
// first. The channel is closed once the session reaches a terminal step;
// cancel detaches early.
func (t *Tracker) Subscribe(id string) (<-chan Event, func()) {
	t.mu.Lock()
	s, ok := t.sessions[id]
	if !ok {
		s = newSession(id, t)
		t.sessions[id] = s
	}
	t.mu.Unlock()
	return s.subscribe()
}

// Len reports the number of tracked sessions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *Tracker) remove(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.sessions[s.id]; ok && cur == s {
		delete(t.sessions, s.id)
	}
}

type Session struct {
	id      string
	tracker *Tracker

	mu     sync.Mutex
	last   *Event
	subs   map[int]chan Event
	nextID int
	done   bool
}

func newSession(id string, t *Tracker) *Session {
	return &Session{id: id, tracker: t, subs: make(map[int]chan Event)}
}

func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Update publishes a step. Safe on a nil session. Updates after a terminal
// step are ignored.
func (s *Session) Update(step Step, message string, progress int, data any) {
	if s == nil {
		return
	}
	ev := Event{
		Type:      "progress",
		ID:        s.id,
		Step:      step,
		Message:   message,
		Progress:  progress,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.last = &ev
	for _, ch := range s.subs {
		deliver(ch, ev)
	}
	if step.Terminal() {
		s.done = true
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
	}
	s.mu.Unlock()

	if step.Terminal() {
		s.tracker.log.Debug("progress.finished", "progress_id", s.id, "step", step)
		time.AfterFunc(s.tracker.grace, func() { s.tracker.remove(s) })
	}
}

func (s *Session) Complete(message string, data any) {
	s.Update(StepCompleted, message, 100, data)
}

func (s *Session) Fail(message string) {
	if s == nil {
		return
	}
	s.Update(StepError, message, s.lastProgress(), nil)
}

func (s *Session) lastProgress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return 0
	}
	return s.last.Progress
}

func (s *Session) finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	if s.last != nil {
		ch <- *s.last
	}
	if s.done {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
			idle := len(s.subs) == 0 && s.last == nil
			s.mu.Unlock()
			if idle {
				s.tracker.remove(s)
			}
		})
	}
	return ch, cancel
}

// deliver never blocks the publisher: a full buffer drops its oldest event.
func deliver(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
