// Package playback owns the single playback slot. At most one clip is
// audible at a time: starting a new clip supersedes whatever is playing,
// and a superseded clip's termination can never clobber the state of its
// successor.
package playback

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/voiceboard-ai/voiceboard/internal/events"
)

var (
	// ErrNoOutput indicates no playback output is connected.
	ErrNoOutput = errors.New("playback: no output connected")
	// ErrSuperseded reports that a newer activation replaced this one.
	ErrSuperseded = errors.New("playback: superseded by newer activation")
)

// Request describes one clip to play.
type Request struct {
	ButtonID string
	Audio    []byte
	MIMEType string
	Volume   float64
	Loop     bool
}

// Handle controls one in-flight clip on an output.
type Handle interface {
	// Done resolves exactly once with nil on natural completion or an
	// error describing why playback failed.
	Done() <-chan error
	// Stop halts the clip. Done still resolves afterwards.
	Stop()
}

// Output renders audio somewhere a listener can hear it. Implementations
// must tolerate Stop being called after the clip already ended.
type Output interface {
	Play(ctx context.Context, req Request) (Handle, error)
}

// Option configures the Player.
type Option func(*Player)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Player) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Player serialises playback onto a single slot. Every Play invalidates
// the previous activation before the new clip starts.
type Player struct {
	bus    *events.Bus
	logger *log.Logger

	mu      sync.Mutex
	output  Output
	token   uint64
	current Handle
}

// New constructs a Player publishing state changes on bus.
func New(bus *events.Bus, opts ...Option) *Player {
	p := &Player{bus: bus, logger: log.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetOutput binds the output that renders audio. Passing nil disconnects;
// any current clip is stopped first.
func (p *Player) SetOutput(out Output) {
	p.mu.Lock()
	p.token++
	current := p.current
	p.current = nil
	p.output = out
	p.mu.Unlock()

	if current != nil {
		current.Stop()
	}
}

// ClearOutput disconnects out if it is still the bound output. A stale
// connection going away must not unbind its replacement.
func (p *Player) ClearOutput(out Output) {
	p.mu.Lock()
	if p.output != out {
		p.mu.Unlock()
		return
	}
	p.token++
	current := p.current
	p.current = nil
	p.output = nil
	p.mu.Unlock()

	if current != nil {
		current.Stop()
	}
}

// Connected reports whether an output is bound.
func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output != nil
}

// Play supersedes any current clip and starts req. The returned channel
// resolves exactly once: nil for natural completion, ErrSuperseded when a
// later Play or Stop takes the slot, or the output's playback error.
func (p *Player) Play(ctx context.Context, req Request) (<-chan error, error) {
	p.mu.Lock()
	out := p.output
	if out == nil {
		p.mu.Unlock()
		return nil, ErrNoOutput
	}
	p.token++
	token := p.token
	previous := p.current
	p.current = nil
	p.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}

	handle, err := out.Play(ctx, req)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.token != token {
		// A competing Play or Stop won the slot while we were starting.
		p.mu.Unlock()
		handle.Stop()
		done := make(chan error, 1)
		done <- ErrSuperseded
		return done, nil
	}
	p.current = handle
	p.mu.Unlock()

	p.publish(events.PlaybackState{ButtonID: req.ButtonID, State: events.StatePlaying})

	done := make(chan error, 1)
	go p.watch(token, req.ButtonID, handle, done)
	return done, nil
}

// watch forwards the handle's termination, unless a newer activation has
// taken the slot, in which case the result is reported as superseded.
func (p *Player) watch(token uint64, buttonID string, handle Handle, done chan<- error) {
	err := <-handle.Done()

	p.mu.Lock()
	stale := p.token != token
	if !stale {
		p.current = nil
	}
	p.mu.Unlock()

	if stale {
		done <- ErrSuperseded
		return
	}

	if err != nil {
		p.logger.Printf("[Playback] button %s failed: %v", buttonID, err)
		p.publish(events.PlaybackState{ButtonID: buttonID, State: events.StateError, Error: err.Error()})
	} else {
		p.publish(events.PlaybackState{ButtonID: buttonID, State: events.StateStopped})
	}
	done <- err
}

// Stop halts the current clip, if any. Safe to call when idle.
func (p *Player) Stop() {
	p.mu.Lock()
	p.token++
	current := p.current
	p.current = nil
	p.mu.Unlock()

	if current != nil {
		current.Stop()
	}
}

func (p *Player) publish(state events.PlaybackState) {
	p.bus.Publish(events.TopicPlaybackState, state)
}
