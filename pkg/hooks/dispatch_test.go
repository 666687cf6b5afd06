package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/git"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
)

type recordingConsumer struct {
	name string

	mu     sync.Mutex
	events []PostReceiveEvent
	fail   int
}

func (r *recordingConsumer) Name() string { return r.name }

func (r *recordingConsumer) Consume(_ context.Context, e PostReceiveEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return errors.New("transient")
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingConsumer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func testEvent(repo string) PostReceiveEvent {
	return PostReceiveEvent{
		Repo: proto.Repository{ID: 1, Name: repo},
		Updates: []git.RefUpdate{
			{OldSHA: git.ZeroSHA, NewSHA: "b2d0c6e83f027327d8461063f4ac58a6a0c6e83f", Ref: "refs/heads/main"},
		},
	}
}

func TestDispatcherDelivers(t *testing.T) {
	is := is.New(t)
	c := &recordingConsumer{name: "record"}
	d := NewDispatcher(config.DispatchConfig{QueueSize: 4, MaxRetries: 1}, nil, c)
	d.Start(context.Background())

	is.True(d.Dispatch(testEvent("octo/hello")))
	d.Close()

	is.Equal(c.count(), 1)
	is.Equal(c.events[0].Repo.Name, "octo/hello")
}

func TestDispatcherRetries(t *testing.T) {
	is := is.New(t)
	c := &recordingConsumer{name: "flaky", fail: 2}
	d := NewDispatcher(config.DispatchConfig{QueueSize: 4, MaxRetries: 3}, nil, c)
	d.Start(context.Background())

	is.True(d.Dispatch(testEvent("octo/hello")))
	d.Close()

	// Two transient failures, then success within the retry budget.
	is.Equal(c.count(), 1)
}

func TestDispatcherConsumerIsolation(t *testing.T) {
	is := is.New(t)
	bad := &recordingConsumer{name: "bad", fail: 1 << 30}
	good := &recordingConsumer{name: "good"}
	d := NewDispatcher(config.DispatchConfig{QueueSize: 4, MaxRetries: 0}, nil, bad, good)
	d.Start(context.Background())

	is.True(d.Dispatch(testEvent("octo/hello")))
	d.Close()

	// The failing consumer must not stop delivery to the healthy one.
	is.Equal(good.count(), 1)
}

func TestDispatcherDropsOnFullQueue(t *testing.T) {
	is := is.New(t)
	blocker := make(chan struct{})
	slow := consumerFunc{
		name: "slow",
		fn: func(context.Context, PostReceiveEvent) error {
			<-blocker
			return nil
		},
	}

	d := NewDispatcher(config.DispatchConfig{QueueSize: 1, MaxRetries: 0}, nil, slow)
	d.Start(context.Background())

	// Saturate the worker and the queue.
	is.True(d.Dispatch(testEvent("a")))
	// Give the worker time to pick up the first event.
	time.Sleep(10 * time.Millisecond)
	is.True(d.Dispatch(testEvent("b")))

	// Queue is full now.
	accepted := d.Dispatch(testEvent("c"))
	if accepted {
		// The worker may have drained the queue already; either way the
		// dispatcher must never block.
		t.Log("queue drained faster than expected")
	}

	close(blocker)
	d.Close()
}
