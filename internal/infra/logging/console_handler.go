package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

const (
	ansiReset     = "\033[0m"
	ansiRed       = "\033[31m"
	ansiGreen     = "\033[32m"
	ansiYellow    = "\033[33m"
	ansiCyan      = "\033[36m"
	ansiGray      = "\033[90m"
	ansiUnderline = "\033[4m"
)

//nolint:gochecknoglobals
var levelColors = map[slog.Level]string{
	slog.LevelDebug: ansiCyan,
	slog.LevelInfo:  ansiGreen,
	slog.LevelWarn:  ansiYellow,
	slog.LevelError: ansiRed,
}

// ConsoleHandler is a slog.Handler producing colored, human readable lines
// for development. Records are dropped when the level configured for their
// component in PkgLevels is higher than the record level.
type ConsoleHandler struct {
	// Output receives one line per record
	Output io.Writer
	// Level is the global minimum level
	Level slog.Leveler
	// PkgLevels maps dotted component prefixes ("repo", "svc.websvc") to minimum levels
	PkgLevels map[string]slog.Level

	attrs  []slog.Attr
	groups []string
	mu     *sync.Mutex
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	if min, ok := h.componentLevel(attrs); ok && r.Level < min {
		return nil
	}

	var line strings.Builder

	line.WriteString(ansiGray + r.Time.Format("15:04:05.000000") + ansiReset)
	line.WriteString(" " + levelColors[r.Level] + "[" + r.Level.String() + "]" + ansiReset)
	line.WriteString(" " + r.Message)

	if len(attrs) > 0 {
		var prefix string
		if len(h.groups) > 0 {
			prefix = strings.Join(h.groups, ".") + "."
		}

		line.WriteString(" " + ansiGray + "|" + ansiReset)
		writeAttrs(&line, prefix, attrs)
	}

	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		line.WriteString("\n-> " + ansiGray + filepath.Base(frame.Function) + "()")
		line.WriteString(" in " + ansiUnderline + frame.File + ":" + strconv.Itoa(frame.Line) + ansiReset)
	}

	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}

	_, err := fmt.Fprintln(h.Output, line.String())

	//nolint:wrapcheck
	return err
}

// componentLevel finds the most specific PkgLevels entry for the record's logger name.
func (h *ConsoleHandler) componentLevel(attrs []slog.Attr) (slog.Level, bool) {
	if len(h.PkgLevels) == 0 {
		return 0, false
	}

	var name string

	for _, attr := range attrs {
		if attr.Key == loggerKey {
			name = attr.Value.String()

			break
		}
	}

	for name != "" {
		if level, ok := h.PkgLevels[name]; ok {
			return level, true
		}

		idx := strings.LastIndex(name, ".")
		if idx < 0 {
			break
		}

		name = name[:idx]
	}

	level, ok := h.PkgLevels[""]

	return level, ok
}

func writeAttrs(line *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			writeAttrs(line, prefix+attr.Key+".", attr.Value.Group())

			continue
		}

		line.WriteString(" " + prefix + attr.Key + "=" + ansiGray + attr.Value.String() + ansiReset)
	}
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	mu := h.mu
	if mu == nil {
		mu = new(sync.Mutex)
	}

	return &ConsoleHandler{
		Output:    h.Output,
		Level:     h.Level,
		PkgLevels: h.PkgLevels,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
		mu:        mu,
	}
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)

	return c
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	c := h.clone()
	c.groups = append(c.groups, name)

	return c
}

// Enabled implements slog.Handler.Enabled.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.Level == nil {
		return level >= slog.LevelInfo
	}

	return level >= h.Level.Level()
}
