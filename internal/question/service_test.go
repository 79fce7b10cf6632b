package question

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askbridge/internal/correlation"
	"askbridge/internal/model"
)

type sentText struct {
	channel string
	text    string
	opts    model.SendOptions
}

type fakeSender struct {
	mu      sync.Mutex
	texts   []sentText
	docs    []string
	sendErr error
	sent    chan sentText
	// onSend runs before a text send completes.
	onSend func(text string)
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(chan sentText, 16)}
}

func (f *fakeSender) SendText(_ context.Context, channel, text string, opts model.SendOptions) error {
	if f.onSend != nil {
		f.onSend(text)
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	st := sentText{channel: channel, text: text, opts: opts}
	f.mu.Lock()
	f.texts = append(f.texts, st)
	f.mu.Unlock()
	f.sent <- st
	return nil
}

func (f *fakeSender) SendDocument(_ context.Context, _ string, path string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, path)
	return nil
}

type seqIDs struct {
	mu  sync.Mutex
	ids []string
}

func (s *seqIDs) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id
}

type fakeHistory struct {
	mu     sync.Mutex
	events []string
}

func (h *fakeHistory) add(e string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *fakeHistory) RecordAsked(_ context.Context, id, _ string) error { return h.add("asked:" + id) }
func (h *fakeHistory) RecordAnswered(_ context.Context, id, answer string) error {
	return h.add("answered:" + id + ":" + answer)
}
func (h *fakeHistory) RecordInterrupted(_ context.Context, id string) error {
	return h.add("interrupted:" + id)
}
func (h *fakeHistory) Close() error { return nil }

func (h *fakeHistory) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

type askResult struct {
	answer string
	err    error
}

func TestService_AskRoundTrip(t *testing.T) {
	sender := newFakeSender()
	reg := correlation.NewRegistry()
	hist := &fakeHistory{}
	svc := NewService(Options{
		Recipient: "42",
		Sender:    sender,
		Registry:  reg,
		IDs:       &seqIDs{ids: []string{"q1"}},
		History:   hist,
	})

	done := make(chan askResult, 1)
	go func() {
		a, err := svc.Ask(context.Background(), "Color?")
		done <- askResult{a, err}
	}()

	st := <-sender.sent
	assert.Equal(t, "42", st.channel)
	assert.Equal(t, "#q1\nColor?", st.text)
	assert.True(t, st.opts.ForceReply)

	require.Eventually(t, func() bool { return reg.Outstanding("q1") }, time.Second, time.Millisecond)
	require.True(t, reg.Resolve("q1", "blue"))

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "blue", res.answer)
	assert.Equal(t, []string{"asked:q1", "answered:q1:blue"}, hist.snapshot())
}

func TestService_AskSendFailureLeavesNoEntry(t *testing.T) {
	sender := newFakeSender()
	sender.sendErr = errors.New("network down")
	reg := correlation.NewRegistry()
	svc := NewService(Options{Recipient: "42", Sender: sender, Registry: reg, IDs: &seqIDs{ids: []string{"q1"}}})

	_, err := svc.Ask(context.Background(), "Color?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
	assert.Equal(t, 0, reg.Len())
	_, ok := reg.PeekLast()
	assert.False(t, ok)
}

func TestService_AskReservesIdentityBeforeSending(t *testing.T) {
	sender := newFakeSender()
	reg := correlation.NewRegistry()
	var reservedDuringSend, lastDuringSend bool
	sender.onSend = func(string) {
		reservedDuringSend = reg.Outstanding("q1")
		_, lastDuringSend = reg.PeekLast()
	}
	svc := NewService(Options{Recipient: "42", Sender: sender, Registry: reg, IDs: &seqIDs{ids: []string{"q1"}}})

	done := make(chan askResult, 1)
	go func() {
		a, err := svc.Ask(context.Background(), "Q?")
		done <- askResult{a, err}
	}()
	<-sender.sent
	assert.True(t, reservedDuringSend, "identity should be claimed before the text is sent")
	assert.False(t, lastDuringSend, "unsent question must not be the fallback target")

	require.Eventually(t, func() bool {
		id, ok := reg.PeekLast()
		return ok && id == "q1"
	}, time.Second, time.Millisecond)
	require.True(t, reg.Resolve("q1", "ok"))
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "ok", res.answer)
}

func TestService_AskIdentityCollisionSendsNothing(t *testing.T) {
	sender := newFakeSender()
	reg := correlation.NewRegistry()
	_, err := reg.Register("dup")
	require.NoError(t, err)

	ids := make([]string, maxIdentityAttempts)
	for i := range ids {
		ids[i] = "dup"
	}
	svc := NewService(Options{Recipient: "42", Sender: sender, Registry: reg, IDs: &seqIDs{ids: ids}})

	_, err = svc.Ask(context.Background(), "Q?")
	assert.ErrorIs(t, err, model.ErrIdentityInUse)
	assert.Empty(t, sender.texts)
	assert.Equal(t, 1, reg.Len())
}

func TestService_AskAfterInterruptSendsNothing(t *testing.T) {
	sender := newFakeSender()
	reg := correlation.NewRegistry()
	svc := NewService(Options{Recipient: "42", Sender: sender, Registry: reg, IDs: &seqIDs{ids: []string{"q1"}}})
	svc.Interrupt()

	_, err := svc.Ask(context.Background(), "Q?")
	assert.ErrorIs(t, err, model.ErrRegistryClosed)
	assert.Empty(t, sender.texts)
}

func TestService_AskRejectsEmpty(t *testing.T) {
	svc := NewService(Options{Recipient: "42", Sender: newFakeSender(), Registry: correlation.NewRegistry(), IDs: &seqIDs{}})
	_, err := svc.Ask(context.Background(), "  ")
	assert.ErrorIs(t, err, model.ErrEmptyQuestion)
}

func TestService_AskSkipsOutstandingIdentity(t *testing.T) {
	sender := newFakeSender()
	reg := correlation.NewRegistry()
	_, err := reg.Register("dup")
	require.NoError(t, err)

	svc := NewService(Options{Recipient: "42", Sender: sender, Registry: reg, IDs: &seqIDs{ids: []string{"dup", "fresh"}}})
	go func() { _, _ = svc.Ask(context.Background(), "Q?") }()

	st := <-sender.sent
	assert.Equal(t, "#fresh\nQ?", st.text)
	svc.Interrupt()
}

func TestService_AskIgnoresRequestCancellation(t *testing.T) {
	sender := newFakeSender()
	reg := correlation.NewRegistry()
	svc := NewService(Options{Recipient: "42", Sender: sender, Registry: reg, IDs: &seqIDs{ids: []string{"q1"}}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan askResult, 1)
	go func() {
		a, err := svc.Ask(ctx, "Q?")
		done <- askResult{a, err}
	}()
	<-sender.sent
	require.Eventually(t, func() bool { return reg.Outstanding("q1") }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
		t.Fatal("ask returned on request cancellation; it has no deadline")
	case <-time.After(50 * time.Millisecond):
	}

	reg.Resolve("q1", "late")
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "late", res.answer)
}

func TestService_InterruptReleasesWaiters(t *testing.T) {
	sender := newFakeSender()
	reg := correlation.NewRegistry()
	hist := &fakeHistory{}
	svc := NewService(Options{Recipient: "42", Sender: sender, Registry: reg, IDs: &seqIDs{ids: []string{"q1"}}, History: hist})

	done := make(chan askResult, 1)
	go func() {
		a, err := svc.Ask(context.Background(), "Q?")
		done <- askResult{a, err}
	}()
	<-sender.sent
	require.Eventually(t, func() bool { return reg.Outstanding("q1") }, time.Second, time.Millisecond)

	svc.Interrupt()
	res := <-done
	assert.ErrorIs(t, res.err, model.ErrInterrupted)
	assert.Contains(t, hist.snapshot(), "interrupted:q1")
}

func TestService_NotifyAndSendFile(t *testing.T) {
	sender := newFakeSender()
	reg := correlation.NewRegistry()
	svc := NewService(Options{Recipient: "42", Sender: sender, Registry: reg, IDs: &seqIDs{}})

	require.NoError(t, svc.Notify(context.Background(), "build finished"))
	st := <-sender.sent
	assert.Equal(t, "build finished", st.text)
	assert.False(t, st.opts.ForceReply)
	assert.Equal(t, 0, reg.Len())

	assert.Error(t, svc.Notify(context.Background(), ""))

	require.NoError(t, svc.SendFile(context.Background(), "/tmp/report.txt"))
	assert.Equal(t, []string{"/tmp/report.txt"}, sender.docs)
}
