package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/git"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/webhook"
)

type recordingAnalyzer struct {
	mu    sync.Mutex
	repos []string
	err   error
}

func (a *recordingAnalyzer) AnalyzeRepository(_ context.Context, repo proto.Repository, _ []git.RefUpdate) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.repos = append(a.repos, repo.Name)
	return a.err
}

type recordingTrigger struct {
	mu      sync.Mutex
	updates [][]git.RefUpdate
}

func (w *recordingTrigger) TriggerWorkflows(_ context.Context, _ proto.Repository, updates []git.RefUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updates = append(w.updates, updates)
	return nil
}

func TestDispatcherFansOutToAnalyzerAndWorkflows(t *testing.T) {
	is := is.New(t)

	analyzer := &recordingAnalyzer{err: errors.New("stats store down")}
	trigger := &recordingTrigger{}
	d := NewDispatcher(config.DispatchConfig{QueueSize: 4, MaxRetries: 0}, nil,
		AnalyzerConsumer(analyzer),
		WorkflowConsumer(trigger),
	)
	d.Start(context.Background())

	event := testEvent("octo/hello")
	is.True(d.Dispatch(event))
	d.Close()

	// The failing analyzer was invoked and did not block workflow delivery.
	is.Equal(analyzer.repos, []string{"octo/hello"})
	is.Equal(len(trigger.updates), 1)
	is.Equal(trigger.updates[0], event.Updates)
}

func TestRefActivityCountsUpdateKinds(t *testing.T) {
	is := is.New(t)
	a := NewRefActivity(nil)

	repo := proto.Repository{ID: 7, Name: "octo/activity"}
	is.NoErr(a.AnalyzeRepository(context.Background(), repo, []git.RefUpdate{
		{OldSHA: git.ZeroSHA, NewSHA: "b2d0c6e83f027327d8461063f4ac58a6a0c6e83f", Ref: "refs/heads/main"},
		{OldSHA: git.ZeroSHA, NewSHA: "b2d0c6e83f027327d8461063f4ac58a6a0c6e83f", Ref: "refs/tags/v1.0.0"},
		{OldSHA: "b2d0c6e83f027327d8461063f4ac58a6a0c6e83f", NewSHA: git.ZeroSHA, Ref: "refs/heads/old"},
	}))

	is.Equal(testutil.ToFloat64(refUpdateCounter.WithLabelValues("octo/activity", "branch")), 1.0)
	is.Equal(testutil.ToFloat64(refUpdateCounter.WithLabelValues("octo/activity", "tag")), 1.0)
	is.Equal(testutil.ToFloat64(refUpdateCounter.WithLabelValues("octo/activity", "delete")), 1.0)
}

type recordingEventSender struct {
	payloads []webhook.EventPayload
}

func (r *recordingEventSender) SendEvent(_ context.Context, p webhook.EventPayload) error {
	r.payloads = append(r.payloads, p)
	return nil
}

func TestWorkflowNotifierSkipsDeletedRefs(t *testing.T) {
	is := is.New(t)

	sender := &recordingEventSender{}
	w := NewWorkflowNotifier(sender, "http://example.com")

	repo := proto.Repository{ID: 7, Name: "octo/hello"}
	is.NoErr(w.TriggerWorkflows(context.Background(), repo, []git.RefUpdate{
		{OldSHA: git.ZeroSHA, NewSHA: "b2d0c6e83f027327d8461063f4ac58a6a0c6e83f", Ref: "refs/heads/main"},
		{OldSHA: "b2d0c6e83f027327d8461063f4ac58a6a0c6e83f", NewSHA: git.ZeroSHA, Ref: "refs/heads/old"},
	}))

	is.Equal(len(sender.payloads), 1)
	run, ok := sender.payloads[0].(webhook.WorkflowRunEvent)
	is.True(ok)
	is.Equal(run.Event(), webhook.EventWorkflowRun)
	is.Equal(run.Ref, "refs/heads/main")
	is.Equal(run.After, "b2d0c6e83f027327d8461063f4ac58a6a0c6e83f")
	is.Equal(run.Repository.HTTPURL, "http://example.com/octo/hello.git")
}
