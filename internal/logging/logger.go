package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"timekeeper/internal/config"

	"github.com/fatih/color"
)

var (
	stringPattern = regexp.MustCompile(`"[^"\n]*"`)
	clockPattern  = regexp.MustCompile(`\b\d{2}:\d{2}(?::\d{2})?\b`)
	numberPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)

	stringTone = color.New(color.FgGreen)
	clockTone  = color.New(color.FgCyan)
	numberTone = color.New(color.FgYellow)
)

// New builds a logger for configured sinks and returns a cleanup function.
// Params: cfg contains console/file sink settings.
// Returns: slog logger, cleanup callback, and setup error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	return NewWithConsole(cfg, os.Stdout)
}

// NewWithConsole builds logger writing console sink to the given writer.
// Params: log config and console destination.
// Returns: slog logger, cleanup callback, and setup error.
func NewWithConsole(cfg config.LogConfig, console io.Writer) (*slog.Logger, func(), error) {
	var (
		handlers []slog.Handler
		closers  []io.Closer
	)

	if cfg.Console.Enabled {
		handler, err := buildConsoleHandler(cfg.Console, console)
		if err != nil {
			return nil, nil, fmt.Errorf("build console handler: %w", err)
		}
		handlers = append(handlers, handler)
	}

	if cfg.File.Enabled {
		handler, closer, err := buildFileHandler(cfg.File)
		if err != nil {
			return nil, nil, fmt.Errorf("build file handler: %w", err)
		}
		handlers = append(handlers, handler)
		closers = append(closers, closer)
	}

	if len(handlers) == 0 {
		return nil, nil, fmt.Errorf("no log sinks enabled")
	}

	closeFn := func() {
		for _, closer := range closers {
			_ = closer.Close()
		}
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeFn, nil
	}
	return slog.New(teeHandler{handlers: handlers}), closeFn, nil
}

// buildConsoleHandler creates a console sink handler.
// Params: sink settings and destination writer.
// Returns: configured slog handler or error.
func buildConsoleHandler(sink config.LogSinkConfig, dst io.Writer) (slog.Handler, error) {
	level, err := parseLevel(sink.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return attr
		},
	}

	switch sink.Format {
	case "line":
		return slog.NewTextHandler(&colorLineWriter{dst: dst}, opts), nil
	case "json":
		return slog.NewJSONHandler(dst, opts), nil
	default:
		return nil, fmt.Errorf("unsupported console format %q", sink.Format)
	}
}

// buildFileHandler creates a file sink handler.
// Params: sink contains path, level, and format.
// Returns: handler, file closer, and error.
func buildFileHandler(sink config.LogSinkConfig) (slog.Handler, io.Closer, error) {
	level, err := parseLevel(sink.Level)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.OpenFile(sink.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open file %q: %w", sink.Path, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch sink.Format {
	case "line":
		return slog.NewTextHandler(file, opts), file, nil
	case "json":
		return slog.NewJSONHandler(file, opts), file, nil
	default:
		_ = file.Close()
		return nil, nil, fmt.Errorf("unsupported file format %q", sink.Format)
	}
}

func parseLevel(value string) (slog.Level, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported level %q", value)
	}
}

// teeHandler fan-outs one record to multiple handlers.
type teeHandler struct {
	handlers []slog.Handler
}

// Enabled checks if at least one downstream handler is enabled.
func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range t.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle forwards the record to all enabled downstream handlers.
// Params: ctx context and record to write.
// Returns: first error if any sink fails.
func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range t.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, 0, len(t.handlers))
	for _, handler := range t.handlers {
		next = append(next, handler.WithAttrs(attrs))
	}
	return teeHandler{handlers: next}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, 0, len(t.handlers))
	for _, handler := range t.handlers {
		next = append(next, handler.WithGroup(name))
	}
	return teeHandler{handlers: next}
}

// colorLineWriter wraps console line logs with level-based color.
// Params: dst is output writer; color.NoColor disables styling for non-terminals.
// Returns: bytes written or write error.
type colorLineWriter struct {
	dst io.Writer
}

// Write colors one line according to level markers.
func (w *colorLineWriter) Write(payload []byte) (int, error) {
	line := string(payload)
	tone := levelTone(line)
	if tone == nil || color.NoColor {
		return w.dst.Write(payload)
	}

	body := strings.TrimSuffix(line, "\n")
	rendered := highlightLineTokens(body, tone)
	if len(body) != len(line) {
		rendered += "\n"
	}
	n, err := io.WriteString(w.dst, rendered)
	if n > len(payload) {
		n = len(payload)
	}
	return n, err
}

// levelTone maps rendered level token to a color.
// Params: line is one rendered slog line.
// Returns: color or nil for unknown levels.
func levelTone(line string) *color.Color {
	switch {
	case strings.Contains(line, "level=DEBUG"):
		return color.New(color.FgHiBlack)
	case strings.Contains(line, "level=INFO"):
		return color.New(color.FgBlue)
	case strings.Contains(line, "level=WARN"):
		return color.New(color.FgYellow)
	case strings.Contains(line, "level=ERROR"):
		return color.New(color.FgRed, color.Bold)
	default:
		return nil
	}
}

type colorRegion struct {
	start    int
	end      int
	tone     *color.Color
	priority int
}

// highlightLineTokens paints token regions over the level-colored base.
// Params: line text without trailing newline and base level color.
// Returns: styled line text.
func highlightLineTokens(line string, base *color.Color) string {
	regions := collectColorRegions(line)

	var builder strings.Builder
	builder.Grow(len(line) + len(regions)*16)

	cursor := 0
	for _, region := range regions {
		if cursor < region.start {
			builder.WriteString(base.Sprint(line[cursor:region.start]))
		}
		builder.WriteString(region.tone.Sprint(line[region.start:region.end]))
		cursor = region.end
	}
	if cursor < len(line) {
		builder.WriteString(base.Sprint(line[cursor:]))
	}
	return builder.String()
}

// collectColorRegions extracts non-overlapping token regions for strings, clock values, and numbers.
func collectColorRegions(line string) []colorRegion {
	regions := make([]colorRegion, 0, 32)
	regions = append(regions, findPatternRegions(line, stringPattern, stringTone, 1)...)
	regions = append(regions, findPatternRegions(line, clockPattern, clockTone, 2)...)
	regions = append(regions, findPatternRegions(line, numberPattern, numberTone, 3)...)

	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].start == regions[j].start {
			if regions[i].priority == regions[j].priority {
				return regions[i].end > regions[j].end
			}
			return regions[i].priority < regions[j].priority
		}
		return regions[i].start < regions[j].start
	})

	out := make([]colorRegion, 0, len(regions))
	cursor := 0
	for _, region := range regions {
		if region.start < cursor {
			continue
		}
		out = append(out, region)
		cursor = region.end
	}
	return out
}

func findPatternRegions(line string, pattern *regexp.Regexp, tone *color.Color, priority int) []colorRegion {
	indices := pattern.FindAllStringIndex(line, -1)
	out := make([]colorRegion, 0, len(indices))
	for _, pair := range indices {
		out = append(out, colorRegion{start: pair[0], end: pair[1], tone: tone, priority: priority})
	}
	return out
}
