// Package klog is a small leveled logger for the kernel-side packages
// (buddy, sched). It is modeled directly on the teacher's lib/trust
// package: an independently maskable bitmask of levels, rather than a
// general-purpose structured logger, because call sites such as
// buddy.AllocatePages and sched.SelectNextTask run with interrupts masked and must not
// allocate or block the way an ecosystem logging library's formatting
// machinery would.
package klog

import (
	"fmt"
	"os"
)

// Mask is a bitmask of log levels that may be independently enabled.
type Mask int

const (
	Nothing Mask = 0x0
	Error   Mask = 0x1
	Warn    Mask = 0x2
	Info    Mask = 0x4
	Debug   Mask = 0x8
	Stats   Mask = 0x10

	fatalMask Mask = 0x80
)

var level = fatalMask | Error | Warn | Info | Debug | Stats

// SetLevel installs mask as the active set of levels and returns the
// previously active set.
func SetLevel(mask Mask) Mask {
	prev := level &^ fatalMask
	level = (mask & 0x1f) | fatalMask
	return prev
}

// Level returns the currently active mask, including the always-on fatal
// bit.
func Level() Mask {
	return level
}

func logf(l Mask, format string, args ...any) {
	if level&l == 0 {
		return
	}
	prefix := ""
	switch {
	case l&fatalMask > 0:
		prefix = "FATAL:"
	case l&Error > 0:
		prefix = "ERROR:"
	case l&Warn > 0:
		prefix = " WARN:"
	case l&Info > 0:
		prefix = " INFO:"
	case l&Debug > 0:
		prefix = "DEBUG:"
	case l&Stats > 0:
		prefix = "STATS:"
	}
	if len(format) == 0 {
		format = "\n"
	} else if format[len(format)-1] != '\n' {
		format += "\n"
	}
	fmt.Fprint(os.Stderr, prefix)
	fmt.Fprintf(os.Stderr, format, args...)
}

// Fatalf logs format/args unconditionally (it is not maskable, matching the
// teacher's lib/trust.Fatalf) and then exits the process with code. Unlike
// kassert.That, which panics on a violated invariant, Fatalf is for
// unrecoverable conditions the caller has already decided to give up on
// (e.g. stacsosctl failing to open its tty).
func Fatalf(code int, format string, args ...any) {
	logf(fatalMask, format, args...)
	os.Exit(code)
}

// Errorf logs at Error level.
func Errorf(format string, args ...any) { logf(Error, format, args...) }

// Warnf logs at Warn level.
func Warnf(format string, args ...any) { logf(Warn, format, args...) }

// Infof logs at Info level.
func Infof(format string, args ...any) { logf(Info, format, args...) }

// Debugf logs at Debug level.
func Debugf(format string, args ...any) { logf(Debug, format, args...) }

// Statsf logs at Stats level, tagging the message with category.
func Statsf(category, format string, args ...any) {
	logf(Stats, "["+category+"] "+format, args...)
}

// Print writes s unconditionally, with no level prefix and no trailing
// newline added. stacsosctl's dump command
// uses this for the free-list listing, which is a fixed debug-sink
// contract (spec.md §6.2), not a leveled log message.
func Print(s string) {
	fmt.Fprint(os.Stdout, s)
}
