package sound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"timekeeper/internal/domain"
)

// ExecBackend plays clips through an external command.
// Params: command argv; the resource path is appended as last argument.
// Returns: backend that blocks while the command runs.
type ExecBackend struct {
	Command []string
}

// Play runs player command once.
// Params: playback context, sound entry, and resource path.
// Returns: start/exit error; cancellation kills the process and returns nil.
func (b ExecBackend) Play(ctx context.Context, _ domain.Sound, path string) error {
	if len(b.Command) == 0 {
		return errors.New("sound command is empty")
	}
	args := append(append([]string(nil), b.Command[1:]...), path)
	cmd := exec.CommandContext(ctx, b.Command[0], args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run %s: %w", b.Command[0], err)
	}
	return nil
}

// LogBackend records playback in logs only.
// Params: logger and nominal clip length.
// Returns: backend for headless hosts and tests.
type LogBackend struct {
	Logger *slog.Logger
	Clip   time.Duration
}

// Play logs clip start and waits for the nominal clip length.
func (b LogBackend) Play(ctx context.Context, sound domain.Sound, path string) error {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clip := b.Clip
	if clip <= 0 {
		clip = 2 * time.Second
	}
	logger.Debug("sound clip", "sound", sound.ID, "path", path)

	timer := time.NewTimer(clip)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return nil
}
