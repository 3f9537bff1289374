package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quiverhq/quiver-go/internal/async"
	domtask "github.com/quiverhq/quiver-go/internal/domain/task"
)

type mockStatuses struct {
	statuses []domtask.Status
	errs     []error
	calls    int
}

func (m *mockStatuses) TaskStatus(_ context.Context, _ int64) (domtask.Status, error) {
	i := m.calls
	m.calls++
	if i >= len(m.statuses) {
		i = len(m.statuses) - 1
	}
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	return m.statuses[i], err
}

func newFastService(statuses StatusReader) *Service {
	s := New(statuses)
	s.interval = time.Millisecond
	return s
}

func TestWait_PollsUntilPublished(t *testing.T) {
	statuses := &mockStatuses{statuses: []domtask.Status{
		{Status: "notPublished"},
		{Status: "notPublished"},
		{Status: domtask.StatusPublished},
	}}
	s := newFastService(statuses)

	got, err := s.Wait(context.Background(), async.NewToken(), 7)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !got.Published() {
		t.Fatalf("status = %+v, want published", got)
	}
	if statuses.calls != 3 {
		t.Fatalf("polled %d times, want 3", statuses.calls)
	}
}

func TestWait_UnknownStatusNeverTerminates(t *testing.T) {
	// A status value that is neither published nor an error keeps the loop
	// going; only an external deadline stops it.
	statuses := &mockStatuses{statuses: []domtask.Status{{Status: "someFutureState"}}}
	s := newFastService(statuses)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Wait(ctx, async.NewToken(), 7)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait err = %v, want deadline exceeded", err)
	}
	if statuses.calls < 2 {
		t.Fatalf("polled %d times, want repeated polling", statuses.calls)
	}
}

func TestWait_TransportErrorIsTerminal(t *testing.T) {
	boom := errors.New("connection reset")
	statuses := &mockStatuses{
		statuses: []domtask.Status{{}},
		errs:     []error{boom},
	}
	s := newFastService(statuses)

	_, err := s.Wait(context.Background(), async.NewToken(), 7)
	if !errors.Is(err, boom) {
		t.Fatalf("Wait err = %v, want %v", err, boom)
	}
	if statuses.calls != 1 {
		t.Fatalf("polled %d times after error, want 1 (no retry)", statuses.calls)
	}
}

func TestWait_CancelledBeforeFirstPoll(t *testing.T) {
	statuses := &mockStatuses{statuses: []domtask.Status{{Status: domtask.StatusPublished}}}
	s := newFastService(statuses)

	tok := async.NewToken()
	tok.Cancel()

	_, err := s.Wait(context.Background(), tok, 7)
	if !errors.Is(err, async.ErrCancelled) {
		t.Fatalf("Wait err = %v, want ErrCancelled", err)
	}
	if statuses.calls != 0 {
		t.Fatalf("polled %d times after cancellation, want 0", statuses.calls)
	}
}

func TestWait_CancelledDuringSleep(t *testing.T) {
	statuses := &mockStatuses{statuses: []domtask.Status{{Status: "notPublished"}}}
	s := New(statuses) // real 100ms interval: cancellation must interrupt it

	tok := async.NewToken()
	done := make(chan error, 1)
	go func() {
		_, err := s.Wait(context.Background(), tok, 7)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	tok.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, async.ErrCancelled) {
			t.Fatalf("Wait err = %v, want ErrCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}
