// ABOUTME: Logger setup for kagi-mcp-server
// ABOUTME: stdout carries the protocol, so logs go to stderr and color follows that stream

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/2389/kagi-mcp/internal/config"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(newStderrHandler(w, level, colorEnabled(w)))
}

// colorEnabled decides from the log stream itself. fatih/color's global
// default looks at stdout, which is the MCP pipe while serving.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// palette holds the colors for one handler tree. Each color is forced on or
// off so output does not depend on color.NoColor.
type palette struct {
	dim       *color.Color
	component *color.Color
	levels    map[slog.Level]*color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		dim:       color.New(color.FgHiBlack),
		component: color.New(color.FgBlue),
		levels: map[slog.Level]*color.Color{
			slog.LevelDebug: color.New(color.FgMagenta),
			slog.LevelInfo:  color.New(color.FgCyan),
			slog.LevelWarn:  color.New(color.FgYellow),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		},
	}
	all := []*color.Color{p.dim, p.component}
	for _, c := range p.levels {
		all = append(all, c)
	}
	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

var levelTags = map[slog.Level]string{
	slog.LevelDebug: "DBG",
	slog.LevelInfo:  "INF",
	slog.LevelWarn:  "WRN",
	slog.LevelError: "ERR",
}

// stderrHandler renders "15:04:05 INF [component] message key=value".
// The component attribute set by each package's logger.With is pulled out
// of the attribute list and shown as a tag.
type stderrHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Level
	colors    *palette
	component string
	attrs     []slog.Attr
	prefix    string
}

func newStderrHandler(w io.Writer, level slog.Level, colorize bool) *stderrHandler {
	return &stderrHandler{mu: &sync.Mutex{}, w: w, level: level, colors: newPalette(colorize)}
}

func (h *stderrHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *stderrHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(h.colors.dim.Sprint(r.Time.Format("15:04:05")))
	buf.WriteByte(' ')

	tag, ok := levelTags[r.Level]
	if !ok {
		tag = r.Level.String()
	}
	if c, ok := h.colors.levels[r.Level]; ok {
		tag = c.Sprint(tag)
	}
	buf.WriteString(tag)
	buf.WriteByte(' ')

	component := h.component
	var recordAttrs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" && h.prefix == "" {
			component = a.Value.String()
			return true
		}
		recordAttrs = append(recordAttrs, a)
		return true
	})
	if component != "" {
		buf.WriteString(h.colors.component.Sprint("[" + component + "]"))
		buf.WriteByte(' ')
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		h.writeAttr(&buf, "", a)
	}
	for _, a := range recordAttrs {
		h.writeAttr(&buf, h.prefix, a)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *stderrHandler) writeAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.writeAttr(buf, prefix+a.Key+".", ga)
		}
		return
	}
	buf.WriteString(h.colors.dim.Sprint(" " + prefix + a.Key + "="))
	buf.WriteString(a.Value.String())
}

func (h *stderrHandler) clone() *stderrHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	return &c
}

func (h *stderrHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if a.Key == "component" && h.prefix == "" {
			c.component = a.Value.String()
			continue
		}
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

func (h *stderrHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}
