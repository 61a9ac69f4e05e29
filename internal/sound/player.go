package sound

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"timekeeper/internal/apperr"
	"timekeeper/internal/domain"
	"timekeeper/internal/metrics"
)

// minLoopPass is the shortest spacing between looped passes of one clip.
const minLoopPass = 200 * time.Millisecond

// Backend renders one pass of a sound clip.
// Params: playback context (canceled on stop), catalog entry, and resolved resource path.
// Returns: after the clip ends or ctx is canceled; error when playback could not start.
type Backend interface {
	Play(ctx context.Context, sound domain.Sound, path string) error
}

// Player owns one lazily created handle per catalog sound.
// Params: backend, resource directory, logger, and optional metrics.
// Returns: non-blocking play/stop API; alarms and timers each own one player.
type Player struct {
	backend Backend
	dir     string
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	handles map[domain.SoundID]*handle
}

type handle struct {
	sound  domain.Sound
	path   string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPlayer creates player without touching any sound resources.
func NewPlayer(backend Backend, dir string, logger *slog.Logger, m *metrics.Metrics) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		backend: backend,
		dir:     dir,
		logger:  logger,
		metrics: m,
		handles: make(map[domain.SoundID]*handle),
	}
}

// Play restarts sound from the beginning.
// Params: catalog sound ID and loop flag.
// Returns: immediately; playback runs until the clip ends (single) or Stop (loop).
func (p *Player) Play(id domain.SoundID, loop bool) {
	p.mu.Lock()
	h, err := p.handleLocked(id)
	if err != nil {
		p.mu.Unlock()
		p.fail(id, err)
		return
	}
	h.rewindLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.cancel = cancel
	h.done = done
	p.mu.Unlock()

	p.logger.Info("sound play", "sound", id, "loop", loop)
	go p.run(ctx, h, loop, done)
}

func (p *Player) run(ctx context.Context, h *handle, loop bool, done chan struct{}) {
	defer close(done)
	for {
		started := time.Now()
		if err := p.backend.Play(ctx, h.sound, h.path); err != nil && ctx.Err() == nil {
			p.fail(h.sound.ID, err)
			return
		}
		if !loop || ctx.Err() != nil {
			return
		}
		if rest := minLoopPass - time.Since(started); rest > 0 {
			wait := time.NewTimer(rest)
			select {
			case <-ctx.Done():
				wait.Stop()
				return
			case <-wait.C:
			}
		}
	}
}

// Stop pauses and rewinds sound.
// Params: catalog sound ID; never-played IDs are a no-op.
// Returns: immediately.
func (p *Player) Stop(id domain.SoundID) {
	p.mu.Lock()
	h, ok := p.handles[id]
	if ok {
		h.rewindLocked()
	}
	p.mu.Unlock()
	if ok {
		p.logger.Debug("sound stop", "sound", id)
	}
}

// StopAll stops every playing handle and waits for backends to return.
func (p *Player) StopAll() {
	p.mu.Lock()
	waits := make([]chan struct{}, 0, len(p.handles))
	for _, h := range p.handles {
		if h.done != nil {
			waits = append(waits, h.done)
		}
		h.rewindLocked()
	}
	p.mu.Unlock()
	for _, done := range waits {
		<-done
	}
}

// Playing reports whether sound has an uncanceled playback.
func (p *Player) Playing(id domain.SoundID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handles[id]
	if !ok || h.done == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (p *Player) handleLocked(id domain.SoundID) (*handle, error) {
	if h, ok := p.handles[id]; ok {
		return h, nil
	}
	entry, ok := domain.LookupSound(id)
	if !ok {
		return nil, fmt.Errorf("unknown sound %q", id)
	}
	h := &handle{sound: entry, path: filepath.Join(p.dir, entry.Resource)}
	p.handles[id] = h
	return h, nil
}

func (h *handle) rewindLocked() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.done = nil
}

func (p *Player) fail(id domain.SoundID, err error) {
	p.metrics.PlaybackFailed(string(id))
	p.logger.Warn("sound playback failed", "sound", id, "error", apperr.Mark(apperr.KindPlayback, err))
}
