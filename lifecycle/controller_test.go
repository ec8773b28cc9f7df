package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/contextos/ctxos/api"
)

type fakeClient struct {
	mu sync.Mutex

	submitID  string
	submitErr error

	answersErr error

	retrieves []*api.Prompt
	retErr    error
	retCalls  int
}

func (f *fakeClient) SubmitPrompt(ctx context.Context, text string, schemaIDs []string) (string, error) {
	return f.submitID, f.submitErr
}

func (f *fakeClient) SubmitAnswers(ctx context.Context, id string, answers []api.QuestionAnswer) error {
	return f.answersErr
}

func (f *fakeClient) RetrievePrompt(ctx context.Context, id string) (*api.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retErr != nil {
		return nil, f.retErr
	}
	idx := f.retCalls
	f.retCalls++
	if idx >= len(f.retrieves) {
		idx = len(f.retrieves) - 1
	}
	return f.retrieves[idx], nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retCalls
}

const eventWait = 2 * time.Second

func newTestController(client Client, attempts uint) (*Controller, chan Event) {
	events := make(chan Event, 128)
	ctrl := New(client,
		func(ev Event) { events <- ev },
		WithInterval(time.Millisecond),
		WithAttempts(attempts),
	)
	return ctrl, events
}

func nextEvent(t *testing.T, events chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestSubmitHappyPath(t *testing.T) {
	client := &fakeClient{
		submitID: "p1",
		retrieves: []*api.Prompt{
			{ID: "p1", Status: api.StatusProcessing},
			{ID: "p1", Status: api.StatusCompleted, EnrichedPrompt: "done"},
		},
	}
	ctrl, events := newTestController(client, 10)

	gen := ctrl.Submit(context.Background(), "text", []string{"s1"})
	if gen == "" || gen != ctrl.Generation() {
		t.Fatalf("generation mismatch: %q vs %q", gen, ctrl.Generation())
	}

	submitted, ok := nextEvent(t, events).(Submitted)
	if !ok || submitted.PromptID != "p1" {
		t.Fatalf("expected Submitted{p1}, got %#v", submitted)
	}
	if submitted.Generation() != gen {
		t.Errorf("event generation = %q, want %q", submitted.Generation(), gen)
	}

	first, ok := nextEvent(t, events).(PollUpdate)
	if !ok || first.Attempt != 1 || first.Prompt.Status != api.StatusProcessing {
		t.Fatalf("expected first PollUpdate processing, got %#v", first)
	}

	second, ok := nextEvent(t, events).(PollUpdate)
	if !ok || second.Attempt != 2 || second.Prompt.Status != api.StatusCompleted {
		t.Fatalf("expected second PollUpdate completed, got %#v", second)
	}

	completed, ok := nextEvent(t, events).(Completed)
	if !ok {
		t.Fatalf("expected Completed, got %#v", completed)
	}
	if completed.QuestionsPending {
		t.Error("QuestionsPending set without questions")
	}
	if completed.Prompt.EnrichedPrompt != "done" {
		t.Errorf("EnrichedPrompt = %q", completed.Prompt.EnrichedPrompt)
	}
}

func TestSubmitFailureEmitsFailed(t *testing.T) {
	client := &fakeClient{
		submitErr: &api.Error{Kind: api.KindNetwork, Message: "Failed to submit prompt"},
	}
	ctrl, events := newTestController(client, 5)
	ctrl.Submit(context.Background(), "text", nil)

	failed, ok := nextEvent(t, events).(Failed)
	if !ok {
		t.Fatalf("expected Failed, got %#v", failed)
	}
	if failed.Err == nil || failed.Err.Error() != "Failed to submit prompt" {
		t.Errorf("Failed.Err = %v", failed.Err)
	}
}

func TestCompletedWithQuestionsPending(t *testing.T) {
	client := &fakeClient{
		submitID: "p1",
		retrieves: []*api.Prompt{{
			ID:               "p1",
			Status:           api.StatusCompleted,
			QuestionsAnswers: []api.QuestionAnswer{{Question: "Who?"}},
		}},
	}
	ctrl, events := newTestController(client, 5)
	ctrl.Submit(context.Background(), "text", nil)

	nextEvent(t, events) // Submitted
	nextEvent(t, events) // PollUpdate
	completed, ok := nextEvent(t, events).(Completed)
	if !ok || !completed.QuestionsPending {
		t.Fatalf("expected Completed with QuestionsPending, got %#v", completed)
	}
}

func TestPollBudgetExhaustionEmitsTimedOut(t *testing.T) {
	client := &fakeClient{
		submitID:  "p1",
		retrieves: []*api.Prompt{{ID: "p1", Status: api.StatusProcessing}},
	}
	const attempts = 4
	ctrl, events := newTestController(client, attempts)
	ctrl.Submit(context.Background(), "text", nil)

	nextEvent(t, events) // Submitted
	for i := 1; i <= attempts; i++ {
		update, ok := nextEvent(t, events).(PollUpdate)
		if !ok || update.Attempt != i {
			t.Fatalf("expected PollUpdate attempt %d, got %#v", i, update)
		}
	}
	if _, ok := nextEvent(t, events).(TimedOut); !ok {
		t.Fatal("expected TimedOut after budget exhaustion")
	}
	if got := client.calls(); got != attempts {
		t.Errorf("retrieve calls = %d, want %d", got, attempts)
	}
}

func TestServerFailureStatusEmitsFailed(t *testing.T) {
	client := &fakeClient{
		submitID:  "p1",
		retrieves: []*api.Prompt{{ID: "p1", Status: api.StatusFailed}},
	}
	ctrl, events := newTestController(client, 5)
	ctrl.Submit(context.Background(), "text", nil)

	nextEvent(t, events) // Submitted
	nextEvent(t, events) // PollUpdate
	failed, ok := nextEvent(t, events).(Failed)
	if !ok {
		t.Fatalf("expected Failed, got %#v", failed)
	}
	if failed.Err.Error() != "Prompt processing failed" {
		t.Errorf("Failed.Err = %v", failed.Err)
	}
	if client.calls() != 1 {
		t.Errorf("retries after terminal failure: %d calls", client.calls())
	}
}

func TestRetrieveErrorAbortsImmediately(t *testing.T) {
	client := &fakeClient{
		submitID: "p1",
		retErr:   &api.Error{Kind: api.KindAuth, Message: "Invalid API key"},
	}
	ctrl, events := newTestController(client, 5)
	ctrl.Submit(context.Background(), "text", nil)

	nextEvent(t, events) // Submitted
	failed, ok := nextEvent(t, events).(Failed)
	if !ok {
		t.Fatalf("expected Failed, got %#v", failed)
	}
	if !api.IsAuth(failed.Err) {
		t.Errorf("auth kind lost through the poll loop: %v", failed.Err)
	}
}

func TestSubmitAnswersAcceptedRestartsPolling(t *testing.T) {
	client := &fakeClient{
		retrieves: []*api.Prompt{
			{ID: "p1", Status: api.StatusCompleted, EnrichedPrompt: "regenerated"},
		},
	}
	ctrl, events := newTestController(client, 5)
	ctrl.SubmitAnswers(context.Background(), "p1", []api.QuestionAnswer{{Question: "Who?", Answer: "devs"}})

	accepted, ok := nextEvent(t, events).(AnswersAccepted)
	if !ok || accepted.PromptID != "p1" {
		t.Fatalf("expected AnswersAccepted{p1}, got %#v", accepted)
	}
	nextEvent(t, events) // PollUpdate
	completed, ok := nextEvent(t, events).(Completed)
	if !ok || completed.Prompt.EnrichedPrompt != "regenerated" {
		t.Fatalf("expected Completed with regenerated prompt, got %#v", completed)
	}
}

func TestSubmitAnswersRejected(t *testing.T) {
	client := &fakeClient{
		answersErr: &api.Error{Kind: api.KindNetwork, Message: "Failed to submit answers"},
	}
	ctrl, events := newTestController(client, 5)
	ctrl.SubmitAnswers(context.Background(), "p1", nil)

	rejected, ok := nextEvent(t, events).(AnswersRejected)
	if !ok {
		t.Fatalf("expected AnswersRejected, got %#v", rejected)
	}
	if client.calls() != 0 {
		t.Errorf("polling started after rejected answers: %d calls", client.calls())
	}
}

func TestNewCycleSupersedesGeneration(t *testing.T) {
	client := &fakeClient{
		submitID:  "p1",
		retrieves: []*api.Prompt{{ID: "p1", Status: api.StatusProcessing}},
	}
	ctrl, events := newTestController(client, 1000)

	first := ctrl.Submit(context.Background(), "one", nil)
	nextEvent(t, events) // Submitted for the first cycle
	second := ctrl.Submit(context.Background(), "two", nil)

	if first == second {
		t.Fatal("generations not distinct across cycles")
	}
	if ctrl.Generation() != second {
		t.Errorf("Generation() = %q, want %q", ctrl.Generation(), second)
	}

	// Anything still arriving from the first cycle is identifiable as stale.
	deadline := time.After(eventWait)
	for {
		select {
		case ev := <-events:
			if ev.Generation() == first {
				continue
			}
			if _, ok := ev.(Submitted); ok && ev.Generation() == second {
				return
			}
		case <-deadline:
			t.Fatal("never saw the second cycle's Submitted event")
		}
	}
}

func TestCancelSilencesCycle(t *testing.T) {
	client := &fakeClient{
		submitID:  "p1",
		retrieves: []*api.Prompt{{ID: "p1", Status: api.StatusProcessing}},
	}
	ctrl, events := newTestController(client, 1000)
	ctrl.Submit(context.Background(), "text", nil)
	nextEvent(t, events) // Submitted
	ctrl.Cancel()

	// Drain anything emitted before the cancel landed, then expect quiet.
	time.Sleep(20 * time.Millisecond)
	for len(events) > 0 {
		<-events
	}
	time.Sleep(50 * time.Millisecond)
	select {
	case ev := <-events:
		t.Fatalf("event after cancel: %#v", ev)
	default:
	}
}
