package service

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultCancelToken = "cancel"
	DefaultSendDelay   = 50 * time.Millisecond
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingMessage
	PhaseDispatching
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingMessage:
		return "awaiting_message"
	case PhaseDispatching:
		return "dispatching"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Payload points at the operator's message; the transport copies it as is.
type Payload struct {
	FromChatID int64
	MessageID  int
}

type Sender interface {
	Copy(ctx context.Context, recipient int64, payload Payload) error
}

type RecipientLister interface {
	IDs() iter.Seq[int64]
}

type Report struct {
	JobID            uuid.UUID
	Recipients       int
	Succeeded        int
	Failed           int
	FailedRecipients []int64
	Cancelled        bool
	Duration         time.Duration
}

type Submission struct {
	Cancelled  bool
	JobID      uuid.UUID
	Recipients int
}

type BroadcastConfig struct {
	Operators   []int64
	SendDelay   time.Duration
	CancelToken string
}

type broadcastSession struct {
	mu     sync.Mutex
	phase  Phase
	cancel context.CancelFunc
}

// BroadcastController keeps one broadcast state machine per operator and runs
// the throttled fan-out. Sends are strictly sequential.
type BroadcastController struct {
	operators   map[int64]struct{}
	recipients  RecipientLister
	sender      Sender
	delay       time.Duration
	cancelToken string
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*broadcastSession
	wg       sync.WaitGroup
}

func NewBroadcastController(cfg BroadcastConfig, recipients RecipientLister, sender Sender, logger *zap.Logger) *BroadcastController {
	operators := make(map[int64]struct{}, len(cfg.Operators))
	for _, id := range cfg.Operators {
		operators[id] = struct{}{}
	}
	if cfg.SendDelay < 0 {
		cfg.SendDelay = DefaultSendDelay
	}
	if cfg.CancelToken == "" {
		cfg.CancelToken = DefaultCancelToken
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BroadcastController{
		operators:   operators,
		recipients:  recipients,
		sender:      sender,
		delay:       cfg.SendDelay,
		cancelToken: cfg.CancelToken,
		logger:      logger,
		sessions:    make(map[int64]*broadcastSession),
	}
}

func (c *BroadcastController) IsOperator(id int64) bool {
	_, ok := c.operators[id]
	return ok
}

func (c *BroadcastController) CancelToken() string {
	return c.cancelToken
}

func (c *BroadcastController) session(operatorID int64) *broadcastSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[operatorID]
	if !ok {
		s = &broadcastSession{}
		c.sessions[operatorID] = s
	}
	return s
}

func (c *BroadcastController) Phase(operatorID int64) Phase {
	if !c.IsOperator(operatorID) {
		return PhaseIdle
	}
	s := c.session(operatorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Begin moves the operator to AwaitingMessage. Calling it again while
// already awaiting is a no-op.
func (c *BroadcastController) Begin(operatorID int64) error {
	if !c.IsOperator(operatorID) {
		return ErrUnauthorized
	}
	s := c.session(operatorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseDispatching {
		return ErrBroadcastBusy
	}
	s.phase = PhaseAwaitingMessage
	return nil
}

// Submit handles the operator's next message while AwaitingMessage. The
// cancellation token returns to Idle; anything else is fanned out to a
// snapshot of the registry on a separate goroutine, and onDone receives the
// report once the operator is back in Idle.
func (c *BroadcastController) Submit(ctx context.Context, operatorID int64, text string, payload Payload, onDone func(Report)) (Submission, error) {
	if !c.IsOperator(operatorID) {
		return Submission{}, ErrUnauthorized
	}
	s := c.session(operatorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseIdle:
		return Submission{}, ErrNoSession
	case PhaseDispatching:
		return Submission{}, ErrBroadcastBusy
	}

	if c.IsCancelToken(text) {
		s.phase = PhaseIdle
		c.logger.Info("broadcast cancelled before dispatch", zap.Int64("operator_id", operatorID))
		return Submission{Cancelled: true}, nil
	}

	recipients := slices.Collect(c.recipients.IDs())
	jobID := uuid.New()
	dispatchCtx, cancel := context.WithCancel(ctx)
	s.phase = PhaseDispatching
	s.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		report := c.dispatch(dispatchCtx, jobID, slices.Values(recipients), payload)
		cancel()

		s.mu.Lock()
		s.phase = PhaseIdle
		s.cancel = nil
		s.mu.Unlock()

		if onDone != nil {
			onDone(report)
		}
	}()

	return Submission{JobID: jobID, Recipients: len(recipients)}, nil
}

// Abort drops a pending broadcast or asks a running one to stop before its
// next send. It reports whether there was anything to abort.
func (c *BroadcastController) Abort(operatorID int64) bool {
	if !c.IsOperator(operatorID) {
		return false
	}
	s := c.session(operatorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseAwaitingMessage:
		s.phase = PhaseIdle
		return true
	case PhaseDispatching:
		if s.cancel != nil {
			s.cancel()
		}
		return true
	}
	return false
}

func (c *BroadcastController) IsCancelToken(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), c.cancelToken)
}

// Wait blocks until every running fan-out has finished.
func (c *BroadcastController) Wait() {
	c.wg.Wait()
}

// Dispatch copies payload to each recipient in turn, waiting the configured
// delay between sends. A failed recipient is counted and skipped.
func (c *BroadcastController) Dispatch(ctx context.Context, recipients iter.Seq[int64], payload Payload) Report {
	return c.dispatch(ctx, uuid.New(), recipients, payload)
}

func (c *BroadcastController) dispatch(ctx context.Context, jobID uuid.UUID, recipients iter.Seq[int64], payload Payload) Report {
	started := time.Now()
	report := Report{JobID: jobID}
	log := c.logger.With(zap.String("job_id", jobID.String()))
	log.Info("broadcast started")

	first := true
	for id := range recipients {
		if !first {
			if err := c.throttle(ctx); err != nil {
				report.Cancelled = true
				break
			}
		}
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		first = false

		report.Recipients++
		if err := c.copyTo(ctx, id, payload); err != nil {
			report.Failed++
			report.FailedRecipients = append(report.FailedRecipients, id)
			log.Debug("broadcast delivery failed", zap.Int64("user_id", id),
				zap.Error(newError(ErrorDeliveryFailed, "copy message", err)))
			continue
		}
		report.Succeeded++
	}

	report.Duration = time.Since(started)
	log.Info("broadcast finished",
		zap.Int("recipients", report.Recipients),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Bool("cancelled", report.Cancelled),
		zap.Duration("duration", report.Duration))
	return report
}

// copyTo turns a panicking sender into an ordinary delivery failure.
func (c *BroadcastController) copyTo(ctx context.Context, recipient int64, payload Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return c.sender.Copy(ctx, recipient, payload)
}

func (c *BroadcastController) throttle(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
