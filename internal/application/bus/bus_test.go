package bus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/clinvera/regflow/internal/domain/event"
)

// collector gathers delivered events behind a mutex
type collector struct {
	mu     sync.Mutex
	events []*event.Event
}

func (c *collector) handler(ctx context.Context, evt *event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *collector) snapshot() []*event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*event.Event, len(c.events))
	copy(out, c.events)
	return out
}

// waitFor polls until the collector holds n events or the deadline passes
func (c *collector) waitFor(t *testing.T, n int) []*event.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(c.snapshot()))
	return nil
}

func TestEventBus_PublishAndSubscribe(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	var col collector
	b.Subscribe(event.TypeWorkflowCreated, col.handler)

	b.Publish(context.Background(), event.NewEvent(event.TypeWorkflowCreated, "wf-1", nil))

	got := col.waitFor(t, 1)
	if got[0].WorkflowID != "wf-1" {
		t.Errorf("WorkflowID = %v, want wf-1", got[0].WorkflowID)
	}
}

func TestEventBus_TypeFiltering(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	var created, completed collector
	b.Subscribe(event.TypeWorkflowCreated, created.handler)
	b.Subscribe(event.TypeWorkflowCompleted, completed.handler)

	ctx := context.Background()
	b.Publish(ctx, event.NewEvent(event.TypeWorkflowCreated, "wf-1", nil))
	b.Publish(ctx, event.NewEvent(event.TypeWorkflowCompleted, "wf-1", nil))
	b.Publish(ctx, event.NewEvent(event.TypeWorkflowCreated, "wf-2", nil))

	created.waitFor(t, 2)
	got := completed.waitFor(t, 1)
	if got[0].Type != event.TypeWorkflowCompleted {
		t.Errorf("Type = %v, want %v", got[0].Type, event.TypeWorkflowCompleted)
	}
}

func TestEventBus_WorkflowScopedSubscription(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	var scoped collector
	b.SubscribeWorkflow(event.TypeTaskCompleted, "wf-1", scoped.handler)

	ctx := context.Background()
	b.Publish(ctx, event.NewTaskEvent(event.TypeTaskCompleted, "wf-1", "t-1", nil))
	b.Publish(ctx, event.NewTaskEvent(event.TypeTaskCompleted, "wf-2", "t-2", nil))
	b.Publish(ctx, event.NewTaskEvent(event.TypeTaskCompleted, "wf-1", "t-3", nil))

	got := scoped.waitFor(t, 2)
	// Give the wf-2 event a moment to arrive if the filter were broken
	time.Sleep(20 * time.Millisecond)
	got = scoped.snapshot()
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	for _, evt := range got {
		if evt.WorkflowID != "wf-1" {
			t.Errorf("received event for %s, want wf-1 only", evt.WorkflowID)
		}
	}
}

func TestEventBus_PerSubscriberOrdering(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	var col collector
	b.Subscribe(event.TypeTaskUpdated, col.handler)

	ctx := context.Background()
	const n = 50
	for i := 0; i < n; i++ {
		evt := event.NewTaskEvent(event.TypeTaskUpdated, "wf-1", "t-1", map[string]interface{}{"seq": i})
		b.Publish(ctx, evt)
	}

	got := col.waitFor(t, n)
	for i, evt := range got {
		if seq := evt.GetPayloadInt("seq"); seq != i {
			t.Fatalf("event %d has seq %d, delivery out of publish order", i, seq)
		}
	}
}

func TestEventBus_SubscriberErrorIsolation(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	var healthy collector
	b.Subscribe(event.TypeWorkflowUpdated, func(ctx context.Context, evt *event.Event) error {
		return fmt.Errorf("handler failed")
	})
	b.Subscribe(event.TypeWorkflowUpdated, healthy.handler)

	b.Publish(context.Background(), event.NewEvent(event.TypeWorkflowUpdated, "wf-1", nil))

	// The failing subscriber must not prevent delivery to the healthy one
	healthy.waitFor(t, 1)
}

func TestEventBus_SubscriberPanicRecovered(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	var healthy collector
	b.Subscribe(event.TypeWorkflowUpdated, func(ctx context.Context, evt *event.Event) error {
		panic("subscriber exploded")
	})
	b.Subscribe(event.TypeWorkflowUpdated, healthy.handler)

	ctx := context.Background()
	b.Publish(ctx, event.NewEvent(event.TypeWorkflowUpdated, "wf-1", nil))
	b.Publish(ctx, event.NewEvent(event.TypeWorkflowUpdated, "wf-1", nil))

	healthy.waitFor(t, 2)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	var col collector
	sub := b.Subscribe(event.TypeWorkflowCreated, col.handler)

	ctx := context.Background()
	b.Publish(ctx, event.NewEvent(event.TypeWorkflowCreated, "wf-1", nil))
	col.waitFor(t, 1)

	b.Unsubscribe(sub)
	b.Publish(ctx, event.NewEvent(event.TypeWorkflowCreated, "wf-2", nil))

	time.Sleep(50 * time.Millisecond)
	if got := col.snapshot(); len(got) != 1 {
		t.Errorf("got %d events after unsubscribe, want 1", len(got))
	}

	// Double unsubscribe is a no-op
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)
}

func TestEventBus_Close(t *testing.T) {
	b := NewEventBus()

	var col collector
	b.Subscribe(event.TypeWorkflowCreated, col.handler)

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err == nil {
		t.Error("second Close() should report an error")
	}

	// Publishing after close is dropped, not panicking
	b.Publish(context.Background(), event.NewEvent(event.TypeWorkflowCreated, "wf-1", nil))
	time.Sleep(20 * time.Millisecond)
	if got := col.snapshot(); len(got) != 0 {
		t.Errorf("got %d events after close, want 0", len(got))
	}
}

func TestEventBus_SlowSubscriberDropsNotBlocks(t *testing.T) {
	b := NewEventBus(WithBufferSize(1))
	defer b.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var col collector
	b.Subscribe(event.TypeWorkflowUpdated, func(ctx context.Context, evt *event.Event) error {
		col.handler(ctx, evt)
		if evt.GetPayloadInt("seq") == 0 {
			close(started)
			<-release
		}
		return nil
	})

	ctx := context.Background()
	b.Publish(ctx, event.NewEvent(event.TypeWorkflowUpdated, "wf-1", map[string]interface{}{"seq": 0}))
	<-started

	// The handler is stuck on seq 0 and the queue holds one slot. Publishing
	// past capacity must drop events instead of stalling the caller.
	done := make(chan struct{})
	go func() {
		for i := 1; i <= 5; i++ {
			b.Publish(ctx, event.NewEvent(event.TypeWorkflowUpdated, "wf-1", map[string]interface{}{"seq": i}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a stuck subscriber")
	}

	close(release)
	time.Sleep(50 * time.Millisecond)
	if got := col.snapshot(); len(got) >= 6 {
		t.Errorf("got %d events, want overflow events dropped", len(got))
	}
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	b := NewEventBus(WithBufferSize(1024))
	defer b.Close()

	var col collector
	b.Subscribe(event.TypeTaskUpdated, col.handler)

	ctx := context.Background()
	var wg sync.WaitGroup
	const publishers = 8
	const perPublisher = 25
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				b.Publish(ctx, event.NewTaskEvent(event.TypeTaskUpdated, fmt.Sprintf("wf-%d", p), "t", nil))
			}
		}(p)
	}
	wg.Wait()

	col.waitFor(t, publishers*perPublisher)
}
