// Package lifecycle drives a remote prompt through
// submit -> poll -> (optional Q&A round-trip) -> completed/failed.
//
// The controller runs each cycle on its own goroutine and reports progress
// through an event sink, so the UI layer can forward events into its message
// loop. Every cycle carries a generation token; consumers discard events
// whose generation no longer matches the controller's current one, which
// keeps a stale poll from overwriting state after the user has moved on.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/contextos/ctxos/api"
)

const (
	// DefaultInterval is the fixed delay between poll attempts.
	DefaultInterval = 2 * time.Second
	// DefaultAttempts bounds a poll cycle; with DefaultInterval this is a
	// 60-second budget.
	DefaultAttempts = 30
)

// Client is the remote surface the controller needs.
type Client interface {
	SubmitPrompt(ctx context.Context, text string, schemaIDs []string) (string, error)
	RetrievePrompt(ctx context.Context, id string) (*api.Prompt, error)
	SubmitAnswers(ctx context.Context, id string, answers []api.QuestionAnswer) error
}

// Event is implemented by every controller notification.
type Event interface {
	Generation() string
}

// Gen is the cycle token embedded in every event.
type Gen string

func (g Gen) Generation() string { return string(g) }

// Submitted reports a successful submission with the server-assigned id.
type Submitted struct {
	Gen
	PromptID string
}

// PollUpdate carries one poll response, applied to state wholesale.
type PollUpdate struct {
	Gen
	Attempt int
	Prompt  *api.Prompt
}

// Completed reports a finished prompt. QuestionsPending is set when the
// server attached a non-empty clarifying question list.
type Completed struct {
	Gen
	Prompt           *api.Prompt
	QuestionsPending bool
}

// Failed reports a remote failure anywhere in the cycle.
type Failed struct {
	Gen
	Err error
}

// TimedOut reports poll-budget exhaustion.
type TimedOut struct {
	Gen
}

// AnswersAccepted reports a successful answer submission; a fresh poll
// cycle follows on the same prompt id.
type AnswersAccepted struct {
	Gen
	PromptID string
}

// AnswersRejected keeps the Q&A panel open so the user can retry.
type AnswersRejected struct {
	Gen
	Err error
}

// Controller owns at most one active cycle. Starting a new cycle cancels
// the previous one.
type Controller struct {
	client   Client
	emit     func(Event)
	interval time.Duration
	attempts uint

	mu     sync.Mutex
	gen    string
	cancel context.CancelFunc
}

// Option tunes a Controller.
type Option func(*Controller)

// WithInterval overrides the fixed poll delay.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithAttempts overrides the poll attempt budget.
func WithAttempts(n uint) Option {
	return func(c *Controller) { c.attempts = n }
}

// New builds a controller delivering events through emit. emit is called
// from the cycle goroutine and must be safe for that.
func New(client Client, emit func(Event), opts ...Option) *Controller {
	c := &Controller{
		client:   client,
		emit:     emit,
		interval: DefaultInterval,
		attempts: DefaultAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generation returns the token of the current cycle, or "" when idle.
func (c *Controller) Generation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Cancel stops the active cycle, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) begin(parent context.Context) (context.Context, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.gen = uuid.NewString()
	return ctx, c.gen
}

// Submit starts a submit-and-poll cycle and returns its generation token.
// Preconditions (non-empty text, auth, schema selection) are the state
// layer's job; by the time Submit runs the call is committed.
func (c *Controller) Submit(parent context.Context, text string, schemaIDs []string) string {
	ctx, gen := c.begin(parent)
	go func() {
		id, err := c.client.SubmitPrompt(ctx, text, schemaIDs)
		if err != nil {
			c.report(ctx, Failed{Gen(gen), err})
			return
		}
		c.report(ctx, Submitted{Gen(gen), id})
		c.poll(ctx, gen, id)
	}()
	return gen
}

// SubmitAnswers posts the full answer list and, on success, restarts
// polling against the same prompt id to pick up the regenerated
// enhancement.
func (c *Controller) SubmitAnswers(parent context.Context, promptID string, answers []api.QuestionAnswer) string {
	ctx, gen := c.begin(parent)
	go func() {
		if err := c.client.SubmitAnswers(ctx, promptID, answers); err != nil {
			c.report(ctx, AnswersRejected{Gen(gen), err})
			return
		}
		c.report(ctx, AnswersAccepted{Gen(gen), promptID})
		c.poll(ctx, gen, promptID)
	}()
	return gen
}

var errStillProcessing = errors.New("prompt still processing")

// poll retrieves the prompt at a fixed interval until it completes, fails,
// or the attempt budget runs out. Any remote failure aborts immediately.
func (c *Controller) poll(ctx context.Context, gen, id string) {
	attempt := 0
	err := retry.Do(
		func() error {
			attempt++
			prompt, err := c.client.RetrievePrompt(ctx, id)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			c.report(ctx, PollUpdate{Gen(gen), attempt, prompt})

			switch prompt.Status {
			case api.StatusCompleted:
				c.report(ctx, Completed{
					Gen:              Gen(gen),
					Prompt:           prompt,
					QuestionsPending: len(prompt.QuestionsAnswers) > 0,
				})
				return nil
			case api.StatusFailed:
				return retry.Unrecoverable(&api.Error{
					Kind:    api.KindNetwork,
					Message: "Prompt processing failed",
				})
			default:
				return errStillProcessing
			}
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return
	}
	if errors.Is(err, errStillProcessing) {
		c.report(ctx, TimedOut{Gen(gen)})
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	c.report(ctx, Failed{Gen(gen), err})
}

// report drops events for canceled cycles so a superseded poll goroutine
// goes quiet instead of racing the new cycle.
func (c *Controller) report(ctx context.Context, ev Event) {
	if ctx.Err() != nil {
		return
	}
	c.emit(ev)
}
