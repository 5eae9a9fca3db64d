package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voiceboard-ai/voiceboard/internal/events"
)

type fakeHandle struct {
	mu       sync.Mutex
	done     chan error
	resolved bool
	stopped  bool
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{done: make(chan error, 1)}
}

func (h *fakeHandle) Done() <-chan error { return h.done }

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	h.resolve(nil)
}

func (h *fakeHandle) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resolve(err)
}

func (h *fakeHandle) resolve(err error) {
	if h.resolved {
		return
	}
	h.resolved = true
	h.done <- err
}

func (h *fakeHandle) wasStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

type fakeOutput struct {
	mu      sync.Mutex
	handles []*fakeHandle
}

func (o *fakeOutput) Play(ctx context.Context, req Request) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h := newFakeHandle()
	o.handles = append(o.handles, h)
	return h, nil
}

func (o *fakeOutput) handle(i int) *fakeHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handles[i]
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for playback result")
		return nil
	}
}

func TestPlayWithoutOutput(t *testing.T) {
	p := New(nil)
	if _, err := p.Play(context.Background(), Request{ButtonID: "b1"}); !errors.Is(err, ErrNoOutput) {
		t.Fatalf("err = %v, want ErrNoOutput", err)
	}
}

func TestNaturalCompletion(t *testing.T) {
	out := &fakeOutput{}
	p := New(nil)
	p.SetOutput(out)

	done, err := p.Play(context.Background(), Request{ButtonID: "b1"})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	out.handle(0).finish(nil)
	if err := waitErr(t, done); err != nil {
		t.Fatalf("completion err = %v", err)
	}
}

func TestNewPlaySupersedesCurrent(t *testing.T) {
	out := &fakeOutput{}
	p := New(nil)
	p.SetOutput(out)

	first, err := p.Play(context.Background(), Request{ButtonID: "b1"})
	if err != nil {
		t.Fatalf("first play: %v", err)
	}
	second, err := p.Play(context.Background(), Request{ButtonID: "b2"})
	if err != nil {
		t.Fatalf("second play: %v", err)
	}

	if err := waitErr(t, first); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("first result = %v, want ErrSuperseded", err)
	}
	if !out.handle(0).wasStopped() {
		t.Fatal("first clip should have been stopped")
	}

	out.handle(1).finish(nil)
	if err := waitErr(t, second); err != nil {
		t.Fatalf("second result = %v", err)
	}
}

func TestStaleErrorCannotClobberSuccessor(t *testing.T) {
	out := &fakeOutput{}
	bus := events.New()
	defer bus.Shutdown()
	sub := bus.Subscribe(events.TopicPlaybackState, events.WithSubscriptionBuffer(32))
	defer sub.Close()

	p := New(bus)
	p.SetOutput(out)

	first, err := p.Play(context.Background(), Request{ButtonID: "b1"})
	if err != nil {
		t.Fatalf("first play: %v", err)
	}
	second, err := p.Play(context.Background(), Request{ButtonID: "b2"})
	if err != nil {
		t.Fatalf("second play: %v", err)
	}

	// The superseded clip fails after the successor took the slot. Its
	// error must not surface as an error state.
	out.handle(0).finish(errors.New("decoder blew up"))
	if err := waitErr(t, first); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("first result = %v, want ErrSuperseded", err)
	}

	out.handle(1).finish(nil)
	if err := waitErr(t, second); err != nil {
		t.Fatalf("second result = %v", err)
	}

	deadline := time.After(time.Second)
	var states []events.PlaybackState
	for len(states) < 3 {
		select {
		case env := <-sub.C():
			states = append(states, env.Payload.(events.PlaybackState))
		case <-deadline:
			t.Fatalf("saw only %d state events: %+v", len(states), states)
		}
	}
	for _, s := range states {
		if s.State == events.StateError {
			t.Fatalf("stale failure surfaced as error state: %+v", s)
		}
	}
	last := states[len(states)-1]
	if last.ButtonID != "b2" || last.State != events.StateStopped {
		t.Fatalf("final state = %+v", last)
	}
}

func TestStopReleasesSlot(t *testing.T) {
	out := &fakeOutput{}
	p := New(nil)
	p.SetOutput(out)

	done, err := p.Play(context.Background(), Request{ButtonID: "b1"})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	p.Stop()

	if err := waitErr(t, done); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("result = %v, want ErrSuperseded", err)
	}
	if !out.handle(0).wasStopped() {
		t.Fatal("clip should have been stopped")
	}

	// The slot must be free for the next activation.
	next, err := p.Play(context.Background(), Request{ButtonID: "b2"})
	if err != nil {
		t.Fatalf("play after stop: %v", err)
	}
	out.handle(1).finish(nil)
	if err := waitErr(t, next); err != nil {
		t.Fatalf("result = %v", err)
	}
}

func TestPlaybackErrorSurfaces(t *testing.T) {
	out := &fakeOutput{}
	p := New(nil)
	p.SetOutput(out)

	done, err := p.Play(context.Background(), Request{ButtonID: "b1"})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	boom := errors.New("output gone")
	out.handle(0).finish(boom)

	if err := waitErr(t, done); !errors.Is(err, boom) {
		t.Fatalf("result = %v, want %v", err, boom)
	}
}
