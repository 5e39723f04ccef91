package events

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/effective-security/toolrouter/utils"
	"github.com/effective-security/xlog"
)

// ensure that the listeners implement the correct interfaces
var (
	_ Listener = (*Printer)(nil)
	_ Listener = (*PackageLogger)(nil)
)

// Mode defines the mode for event printing
type Mode int

const (
	// ModeDefault prints the event kind only
	ModeDefault Mode = iota
	// ModeVerbose prints the event data as well
	ModeVerbose
)

// Printer is a listener that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnEvent(_ context.Context, e *Event) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if _, err := fmt.Fprintf(l.Out, "Event: %s (%s)\n", e.Kind, e.ID); err != nil {
		return err
	}
	if l.Mode == ModeVerbose {
		for _, k := range slices.Sorted(maps.Keys(e.Data)) {
			if _, err := fmt.Fprintf(l.Out, "  %s: %s\n", k, utils.Stringify(e.Data[k])); err != nil {
				return err
			}
		}
	}
	return nil
}

// PackageLogger is a listener that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
	level  xlog.LogLevel
}

func NewPackageLogger(logger *xlog.PackageLogger, level xlog.LogLevel) *PackageLogger {
	return &PackageLogger{logger: logger, level: level}
}

func (l *PackageLogger) OnEvent(ctx context.Context, e *Event) error {
	kv := []any{
		"event", e.Kind,
		"id", e.ID,
	}
	for _, k := range slices.Sorted(maps.Keys(e.Data)) {
		kv = append(kv, k, e.Data[k])
	}
	l.logger.ContextKV(ctx, l.level, kv...)
	return nil
}
