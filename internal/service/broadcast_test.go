package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const operator int64 = 100

type mockSender struct {
	mu       sync.Mutex
	failFor  map[int64]bool
	panicFor map[int64]bool
	sent     []int64
	onSend   func(recipient int64)
}

func (m *mockSender) Copy(_ context.Context, recipient int64, _ Payload) error {
	m.mu.Lock()
	m.sent = append(m.sent, recipient)
	onSend := m.onSend
	m.mu.Unlock()

	if onSend != nil {
		onSend(recipient)
	}
	if m.panicFor[recipient] {
		panic("boom")
	}
	if m.failFor[recipient] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	return nil
}

func (m *mockSender) attempted() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sent)
}

func newController(t *testing.T, users *UserRegistry, sender Sender, delay time.Duration) *BroadcastController {
	t.Helper()
	return NewBroadcastController(BroadcastConfig{
		Operators: []int64{operator},
		SendDelay: delay,
	}, users, sender, zap.NewNop())
}

func registryWith(ids ...int64) *UserRegistry {
	r := NewUserRegistry()
	for _, id := range ids {
		r.Register(id, "")
	}
	return r
}

func submitAndWait(t *testing.T, c *BroadcastController, text string) (Submission, Report) {
	t.Helper()
	done := make(chan Report, 1)
	sub, err := c.Submit(context.Background(), operator, text, Payload{FromChatID: operator, MessageID: 1}, func(r Report) {
		done <- r
	})
	require.NoError(t, err)

	select {
	case r := <-done:
		return sub, r
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast did not finish")
		return sub, Report{}
	}
}

func TestBegin_NonOperatorIgnored(t *testing.T) {
	c := newController(t, registryWith(1), &mockSender{}, 0)

	require.ErrorIs(t, c.Begin(1), ErrUnauthorized)
	require.Equal(t, PhaseIdle, c.Phase(1))

	_, err := c.Submit(context.Background(), 1, "hello", Payload{}, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.False(t, c.Abort(1))
}

func TestSubmit_WithoutBegin(t *testing.T) {
	c := newController(t, registryWith(1), &mockSender{}, 0)

	_, err := c.Submit(context.Background(), operator, "hello", Payload{}, nil)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSubmit_CancelToken(t *testing.T) {
	sender := &mockSender{}
	c := newController(t, registryWith(1, 2), sender, 0)

	for _, token := range []string{"cancel", "CANCEL", " Cancel "} {
		require.NoError(t, c.Begin(operator))
		require.Equal(t, PhaseAwaitingMessage, c.Phase(operator))

		sub, err := c.Submit(context.Background(), operator, token, Payload{}, func(Report) {
			t.Error("dispatch must not run")
		})
		require.NoError(t, err)
		require.True(t, sub.Cancelled)
		require.Equal(t, PhaseIdle, c.Phase(operator))
	}
	c.Wait()
	require.Empty(t, sender.attempted())
}

func TestSubmit_NoUsers(t *testing.T) {
	c := newController(t, NewUserRegistry(), &mockSender{}, 0)
	require.NoError(t, c.Begin(operator))

	sub, report := submitAndWait(t, c, "hello")
	require.Equal(t, 0, sub.Recipients)
	require.Equal(t, 0, report.Succeeded)
	require.Equal(t, 0, report.Failed)
	require.Equal(t, 0, report.Recipients)
	require.False(t, report.Cancelled)
	require.Equal(t, sub.JobID, report.JobID)
	require.Equal(t, PhaseIdle, c.Phase(operator))
}

func TestSubmit_PartialFailure(t *testing.T) {
	sender := &mockSender{failFor: map[int64]bool{2: true}}
	c := newController(t, registryWith(1, 2, 3), sender, time.Millisecond)
	require.NoError(t, c.Begin(operator))

	sub, report := submitAndWait(t, c, "hello")
	require.Equal(t, 3, sub.Recipients)
	require.Equal(t, 2, report.Succeeded)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 3, report.Recipients)
	require.Equal(t, []int64{2}, report.FailedRecipients)
	require.Equal(t, []int64{1, 2, 3}, sender.attempted())
}

func TestSubmit_SnapshotAtDispatch(t *testing.T) {
	users := registryWith(1, 2)
	sender := &mockSender{}
	sender.onSend = func(int64) { users.Register(50, "late") }
	c := newController(t, users, sender, 0)
	require.NoError(t, c.Begin(operator))

	_, report := submitAndWait(t, c, "hello")
	require.Equal(t, 2, report.Recipients)
	require.Equal(t, []int64{1, 2}, sender.attempted())
}

func TestDispatch_PanicCountedAsFailure(t *testing.T) {
	sender := &mockSender{panicFor: map[int64]bool{1: true}}
	c := newController(t, nil, sender, 0)

	report := c.Dispatch(context.Background(), slices.Values([]int64{1, 2}), Payload{})
	require.Equal(t, 1, report.Succeeded)
	require.Equal(t, 1, report.Failed)
}

func TestDispatch_Throttled(t *testing.T) {
	c := newController(t, nil, &mockSender{}, 20*time.Millisecond)

	report := c.Dispatch(context.Background(), slices.Values([]int64{1, 2, 3}), Payload{})
	require.Equal(t, 3, report.Succeeded)
	require.GreaterOrEqual(t, report.Duration, 40*time.Millisecond)
}

func TestBegin_BusyWhileDispatching(t *testing.T) {
	release := make(chan struct{})
	sender := &mockSender{}
	sender.onSend = func(int64) { <-release }
	c := newController(t, registryWith(1), sender, 0)
	require.NoError(t, c.Begin(operator))

	done := make(chan Report, 1)
	_, err := c.Submit(context.Background(), operator, "hello", Payload{}, func(r Report) { done <- r })
	require.NoError(t, err)

	require.Equal(t, PhaseDispatching, c.Phase(operator))
	require.ErrorIs(t, c.Begin(operator), ErrBroadcastBusy)

	close(release)
	<-done
	require.Equal(t, PhaseIdle, c.Phase(operator))
	require.NoError(t, c.Begin(operator))
}

func TestAbort_StopsBetweenSends(t *testing.T) {
	sender := &mockSender{}
	c := newController(t, registryWith(1, 2, 3, 4, 5), sender, time.Hour)
	sent := make(chan struct{}, 5)
	sender.onSend = func(int64) { sent <- struct{}{} }
	require.NoError(t, c.Begin(operator))

	done := make(chan Report, 1)
	_, err := c.Submit(context.Background(), operator, "hello", Payload{}, func(r Report) { done <- r })
	require.NoError(t, err)

	<-sent
	require.True(t, c.Abort(operator))

	report := <-done
	require.True(t, report.Cancelled)
	require.Equal(t, 1, report.Recipients)
	require.Equal(t, 1, report.Succeeded)
	require.Equal(t, []int64{1}, sender.attempted())
	require.Equal(t, PhaseIdle, c.Phase(operator))
}

func TestAbort_AwaitingMessage(t *testing.T) {
	c := newController(t, registryWith(1), &mockSender{}, 0)

	require.False(t, c.Abort(operator))
	require.NoError(t, c.Begin(operator))
	require.True(t, c.Abort(operator))
	require.Equal(t, PhaseIdle, c.Phase(operator))
}
