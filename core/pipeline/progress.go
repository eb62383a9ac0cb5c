package pipeline

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// Progress is one report from a running job. A report with Done or Err set
// is terminal.
type Progress struct {
	Percent int
	Message string
	Done    bool
	Err     error
}

// Terminal reports whether p ends the job.
func (p Progress) Terminal() bool {
	return p.Done || p.Err != nil
}

// Sink receives progress reports. Report must not block the caller for long.
type Sink interface {
	Report(Progress)
}

// FuncSink adapts a function to Sink.
type FuncSink func(Progress)

func (f FuncSink) Report(p Progress) { f(p) }

// Discard drops every report.
var Discard Sink = FuncSink(func(Progress) {})

// Multi fans a report out to every sink in order.
type Multi []Sink

func (m Multi) Report(p Progress) {
	for _, s := range m {
		s.Report(p)
	}
}

// LineSink writes the PROGRESS:<n> / ERROR:<message> line protocol.
type LineSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineSink creates a LineSink writing to w.
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

func (s *LineSink) Report(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Err != nil {
		// one line per message so readers can split on newlines
		msg := strings.ReplaceAll(p.Err.Error(), "\n", " ")
		fmt.Fprintf(s.w, "ERROR:%s\n", msg)
		return
	}
	fmt.Fprintf(s.w, "PROGRESS:%d\n", p.Percent)
}

// Monotonic drops percentages lower than one already passed on. Terminal
// reports always pass.
type Monotonic struct {
	mu   sync.Mutex
	next Sink
	last int
	seen bool
}

// NewMonotonic wraps next.
func NewMonotonic(next Sink) *Monotonic {
	return &Monotonic{next: next}
}

func (m *Monotonic) Report(p Progress) {
	m.mu.Lock()
	if !p.Terminal() && m.seen && p.Percent < m.last {
		m.mu.Unlock()
		return
	}
	if p.Percent > m.last || !m.seen {
		m.last = p.Percent
	}
	m.seen = true
	m.mu.Unlock()
	m.next.Report(p)
}

// Async delivers reports to next from its own goroutine. When the buffer is
// full intermediate reports are dropped so a slow listener never stalls the
// job; the last terminal report is always delivered before Close returns.
type Async struct {
	next    Sink
	ch      chan Progress
	done    chan struct{}
	dropped atomic.Int64

	mu        sync.Mutex
	final     *Progress
	closed    bool
	closeOnce sync.Once
}

// NewAsync starts an Async sink with a buffer of size n.
func NewAsync(next Sink, n int) *Async {
	if n <= 0 {
		n = 16
	}
	a := &Async{next: next, ch: make(chan Progress, n), done: make(chan struct{})}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)
	for p := range a.ch {
		a.next.Report(p)
	}
}

func (a *Async) Report(p Progress) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- p:
	default:
		if p.Terminal() {
			a.final = &p
			return
		}
		a.dropped.Add(1)
	}
}

// Dropped is the number of reports discarded because the buffer was full.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close flushes buffered reports and stops the delivery goroutine.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.ch)
		final := a.final
		a.mu.Unlock()

		<-a.done
		if final != nil {
			a.next.Report(*final)
		}
	})
}
