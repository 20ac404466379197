package events

import (
	"testing"
	"time"
)

// receiveOrTimeout reads one event from ch or fails the test after a timeout.
func receiveOrTimeout(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestSubscribeReceivesTopicEvents(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 8)

	bus.Publish(TopicTask, TaskStartedEvent{ID: "parse", Attempt: 1})

	ev := receiveOrTimeout(t, ch)
	if ev.EventType() != EventTypeTaskStarted {
		t.Errorf("EventType = %q, want %q", ev.EventType(), EventTypeTaskStarted)
	}
	if ev.TaskID() != "parse" {
		t.Errorf("TaskID = %q, want %q", ev.TaskID(), "parse")
	}
}

func TestSubscribeDoesNotReceiveOtherTopics(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	taskCh := bus.Subscribe(TopicTask, 8)

	bus.Publish(TopicRun, LevelStartedEvent{Index: 0, Tasks: []string{"a"}})

	select {
	case ev := <-taskCh:
		t.Fatalf("unexpected event on task topic: %v", ev)
	case <-time.After(50 * time.Millisecond):
		// Expected: nothing delivered
	}
}

func TestSubscribeAllReceivesEveryTopic(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.SubscribeAll(8)

	bus.Publish(TopicTask, TaskSucceededEvent{ID: "a", Attempt: 1})
	bus.Publish(TopicRun, LevelFinishedEvent{Index: 0})

	first := receiveOrTimeout(t, ch)
	second := receiveOrTimeout(t, ch)

	if first.EventType() != EventTypeTaskSucceeded {
		t.Errorf("first event = %q, want %q", first.EventType(), EventTypeTaskSucceeded)
	}
	if second.EventType() != EventTypeLevelFinished {
		t.Errorf("second event = %q, want %q", second.EventType(), EventTypeLevelFinished)
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 1)

	// Second publish should be dropped, not block.
	bus.Publish(TopicTask, TaskStartedEvent{ID: "a", Attempt: 1})
	done := make(chan struct{})
	go func() {
		bus.Publish(TopicTask, TaskStartedEvent{ID: "b", Attempt: 1})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on full subscriber buffer")
	}

	ev := receiveOrTimeout(t, ch)
	if ev.TaskID() != "a" {
		t.Errorf("buffered event = %q, want %q", ev.TaskID(), "a")
	}
}

func TestPublishOnNilBus(t *testing.T) {
	var bus *Bus
	// Must not panic.
	bus.Publish(TopicTask, TaskStartedEvent{ID: "a", Attempt: 1})
	bus.Close()
}

func TestCloseClosesSubscriberChannels(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicTask, 4)
	all := bus.SubscribeAll(4)

	bus.Close()
	bus.Close() // Idempotent

	if _, ok := <-ch; ok {
		t.Error("topic channel not closed")
	}
	if _, ok := <-all; ok {
		t.Error("all-topics channel not closed")
	}

	// Publishing after close must not panic.
	bus.Publish(TopicTask, TaskStartedEvent{ID: "a", Attempt: 1})
}

func TestSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	bus := NewBus()
	bus.Close()

	ch := bus.Subscribe(TopicTask, 4)
	if _, ok := <-ch; ok {
		t.Error("expected closed channel from Subscribe after Close")
	}
}
