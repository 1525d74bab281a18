package document

import (
	"testing"
	"time"
)

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("channel not closed")
		}
	}
}

func TestTrackerSubscribeReceivesUpdatesUntilTerminal(t *testing.T) {
	tr := NewTracker(time.Hour, nil)
	s := tr.Start("p1")
	ch, cancel := tr.Subscribe("p1")
	defer cancel()

	s.Update(StepValidating, "validating", 10, nil)
	s.Update(StepExtracting, "extracting", 30, nil)
	s.Complete("done", nil)
	s.Update(StepSaving, "late", 90, nil)

	events := collect(t, ch)
	if len(events) != 3 {
		t.Fatalf("events = %+v", events)
	}
	last := events[2]
	if last.Step != StepCompleted || last.Progress != 100 || last.Type != "progress" || last.ID != "p1" {
		t.Errorf("last = %+v", last)
	}
}

func TestTrackerReplaysLastEvent(t *testing.T) {
	tr := NewTracker(time.Hour, nil)
	s := tr.Start("p1")
	s.Update(StepIndexing, "indexing", 80, nil)

	ch, cancel := tr.Subscribe("p1")
	defer cancel()
	s.Fail("boom")

	events := collect(t, ch)
	if len(events) != 2 || events[0].Step != StepIndexing || events[1].Step != StepError {
		t.Fatalf("events = %+v", events)
	}
	if events[1].Progress != 80 || events[1].Message != "boom" {
		t.Errorf("error event = %+v", events[1])
	}
}

func TestTrackerSubscribeAfterFinish(t *testing.T) {
	tr := NewTracker(time.Hour, nil)
	s := tr.Start("p1")
	s.Complete("done", nil)

	ch, _ := tr.Subscribe("p1")
	events := collect(t, ch)
	if len(events) != 1 || events[0].Step != StepCompleted {
		t.Errorf("events = %+v", events)
	}
}

func TestTrackerSubscribeBeforeStart(t *testing.T) {
	tr := NewTracker(time.Hour, nil)
	ch, cancel := tr.Subscribe("early")
	defer cancel()

	s := tr.Start("early")
	s.Complete("done", nil)

	if events := collect(t, ch); len(events) != 1 {
		t.Errorf("events = %+v", events)
	}
}

func TestTrackerRemovesAfterGrace(t *testing.T) {
	tr := NewTracker(10*time.Millisecond, nil)
	tr.Start("p1").Complete("done", nil)

	deadline := time.Now().Add(time.Second)
	for tr.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTrackerCancelRemovesIdleSession(t *testing.T) {
	tr := NewTracker(time.Hour, nil)
	ch, cancel := tr.Subscribe("idle")
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	if tr.Len() != 0 {
		t.Errorf("sessions = %d", tr.Len())
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	tr := NewTracker(time.Hour, nil)
	s := tr.Start("p1")
	ch, cancel := tr.Subscribe("p1")
	defer cancel()

	for i := 0; i < subscriberBuffer*3; i++ {
		s.Update(StepExtracting, "page", i, nil)
	}
	s.Complete("done", nil)

	events := collect(t, ch)
	if len(events) > subscriberBuffer || events[len(events)-1].Step != StepCompleted {
		t.Errorf("got %d events, last %+v", len(events), events[len(events)-1])
	}
}

func TestNilSessionIsSafe(t *testing.T) {
	var s *Session
	s.Update(StepStarting, "x", 0, nil)
	s.Complete("x", nil)
	s.Fail("x")
	if NewTracker(0, nil).Start("") != nil {
		t.Error("empty id should not start a session")
	}
}
