// Package session owns the simulation lifecycle: it drives the signal
// generator and movement tracker on a fixed real-time cadence, enforces
// the Stopped/Running/Paused state machine, and fans trajectory points
// out to subscribers through a bounded drop-oldest hand-off.
package session

import (
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.trace/internal/imu"
	"github.com/banshee-data/motion.trace/internal/monitoring"
	"github.com/banshee-data/motion.trace/internal/signal"
	"github.com/banshee-data/motion.trace/internal/timeutil"
	"github.com/banshee-data/motion.trace/internal/tracking"
)

// State is the simulation lifecycle state.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// ErrNotRunning is returned by transitions that require a live tick loop.
var ErrNotRunning = errors.New("session is not running")

// Config holds session cadence parameters.
type Config struct {
	// TickInterval is the real-time tick period. Simulated time advances
	// by TickInterval*Speed per tick; the cadence itself never changes
	// with the speed multiplier.
	TickInterval time.Duration

	// Speed is the initial simulated-time multiplier.
	Speed float64

	// SubscriberBuffer is the bounded depth of each subscriber's
	// hand-off queue. When full, the oldest point is dropped.
	SubscriberBuffer int

	// SampleLogSize bounds the raw-sample log kept for saving
	// recordings. Oldest samples are discarded first.
	SampleLogSize int
}

// DefaultConfig returns the stock session cadence.
func DefaultConfig() Config {
	return Config{
		TickInterval:     20 * time.Millisecond,
		Speed:            1.0,
		SubscriberBuffer: 64,
		SampleLogSize:    10000,
	}
}

// Validate checks the config invariants.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("speed must be positive, got %v", c.Speed)
	}
	if c.SubscriberBuffer <= 0 {
		return fmt.Errorf("subscriber_buffer must be positive, got %d", c.SubscriberBuffer)
	}
	if c.SampleLogSize <= 0 {
		return fmt.Errorf("sample_log_size must be positive, got %d", c.SampleLogSize)
	}
	return nil
}

// Status is a point-in-time snapshot of the session for the API.
type Status struct {
	SessionID      string      `json:"session_id"`
	State          State       `json:"state"`
	Mode           signal.Mode `json:"mode"`
	Speed          float64     `json:"speed"`
	Ticks          uint64      `json:"ticks"`
	Points         int         `json:"points"`
	ReplayComplete bool        `json:"replay_complete"`
}

// Session couples one generator and one tracker under a single lifecycle.
// The tick loop runs in its own goroutine; all state transitions are
// synchronous and take effect before the next tick.
type Session struct {
	mu      sync.Mutex
	cfg     Config
	clock   timeutil.Clock
	gen     signal.Generator
	tracker *tracking.Tracker

	id             string
	state          State
	speed          float64
	ticks          uint64
	replayComplete bool

	sampleLog   []imu.SensorSample
	subscribers map[string]chan imu.TrajectoryPoint

	stop chan struct{}
	done chan struct{}
}

// New creates a stopped session. Pass timeutil.RealClock{} outside tests.
func New(gen signal.Generator, tracker *tracking.Tracker, cfg Config, clock timeutil.Clock) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	if gen == nil {
		return nil, fmt.Errorf("session requires a generator")
	}
	if tracker == nil {
		return nil, fmt.Errorf("session requires a tracker")
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Session{
		cfg:         cfg,
		clock:       clock,
		gen:         gen,
		tracker:     tracker,
		id:          uuid.NewString(),
		state:       StateStopped,
		speed:       cfg.Speed,
		subscribers: make(map[string]chan imu.TrajectoryPoint),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Tracker exposes the tracker for read-only snapshot access.
func (s *Session) Tracker() *tracking.Tracker { return s.tracker }

// Status reports the current lifecycle snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		SessionID:      s.id,
		State:          s.state,
		Mode:           s.gen.Mode(),
		Speed:          s.speed,
		Ticks:          s.ticks,
		Points:         s.tracker.Len(),
		ReplayComplete: s.replayComplete,
	}
}

// Start transitions Stopped → Running and launches the tick loop. A
// plain Stop beforehand leaves generator and tracker state intact, so
// starting again continues from where the session left off.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return fmt.Errorf("session already running")
	case StatePaused:
		return fmt.Errorf("session is paused; resume instead")
	}

	s.state = StateRunning
	s.replayComplete = false
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	return nil
}

// Pause suspends ticking without clearing any state.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return ErrNotRunning
	}
	s.state = StatePaused
	return nil
}

// Resume continues a paused session.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return fmt.Errorf("session is not paused")
	}
	s.state = StateRunning
	return nil
}

// Stop halts the tick loop and waits for it to exit. No sample is
// processed after Stop returns. Tracker and generator state survive, so
// only Reset produces a cleared Stopped state.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopped
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	return nil
}

// Reset stops the loop if needed and clears both components. It is
// synchronous: on return the session is Stopped with cleared state.
func (s *Session) Reset() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen.Reset()
	s.tracker.Reset()
	s.ticks = 0
	s.sampleLog = nil
	s.replayComplete = false
	monitoring.Logf("session %s reset", s.id)
	return nil
}

// SetSpeed updates the simulated-time multiplier.
func (s *Session) SetSpeed(speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("speed must be positive, got %v", speed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = speed
	return nil
}

// Speed returns the current simulated-time multiplier.
func (s *Session) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// SetGenerator swaps the signal source without touching tracker state.
// Switching modes mid-session deliberately preserves the trajectory;
// callers wanting a clean start call Reset afterwards.
func (s *Session) SetGenerator(gen signal.Generator) error {
	if gen == nil {
		return fmt.Errorf("generator must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = gen
	s.replayComplete = false
	return nil
}

// Samples returns a copy of the bounded raw-sample log. The log feeds
// saved recordings, so samples keep the exact values the tracker saw.
func (s *Session) Samples() []imu.SensorSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]imu.SensorSample, len(s.sampleLog))
	copy(out, s.sampleLog)
	return out
}

// Subscribe registers a bounded hand-off channel for new trajectory
// points. The subscriber never blocks the tick loop: when its queue is
// full the oldest queued point is dropped. The returned ID is used to
// unsubscribe.
func (s *Session) Subscribe() (string, <-chan imu.TrajectoryPoint) {
	id := randomID()
	ch := make(chan imu.TrajectoryPoint, s.cfg.SubscriberBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Session) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Close stops the session and closes every subscriber channel.
func (s *Session) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return nil
}

// randomID generates a random subscriber ID (8 byte random hex value).
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// run is the tick loop. It owns no state directly; each tick re-checks
// the lifecycle under the session lock so Stop and Pause take effect
// before the next sample.
func (s *Session) run(stop, done chan struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if !s.tick() {
				return
			}
		}
	}
}

// tick produces one sample and processes it into one trajectory point.
// It returns false when the loop should exit (replay exhausted).
func (s *Session) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return true
	}

	dt := s.cfg.TickInterval.Seconds()
	sample, err := s.gen.NextSample(dt, s.speed)
	if err != nil {
		if errors.Is(err, signal.ErrReplayComplete) {
			if !s.replayComplete {
				monitoring.Logf("session %s: replay complete after %d ticks", s.id, s.ticks)
			}
			s.replayComplete = true
			s.state = StateStopped
			return false
		}
		monitoring.Logf("session %s: generator error: %v", s.id, err)
		return true
	}

	point, err := s.tracker.Process(sample)
	if err != nil {
		monitoring.Logf("session %s: dropped sample: %v", s.id, err)
		return true
	}
	s.ticks++

	s.sampleLog = append(s.sampleLog, sample)
	if len(s.sampleLog) > s.cfg.SampleLogSize {
		s.sampleLog = s.sampleLog[len(s.sampleLog)-s.cfg.SampleLogSize:]
	}

	// Bounded drop-oldest fan-out: evict one queued point when a
	// subscriber is full, then retry once. Never blocks the tick.
	for _, ch := range s.subscribers {
		select {
		case ch <- point:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- point:
			default:
			}
		}
	}
	return true
}
