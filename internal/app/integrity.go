package app

import (
	"context"
	"sync"
)

// ViolationKind names one prohibited interaction signal.
type ViolationKind string

const (
	ViolationCopy        ViolationKind = "copy"
	ViolationCut         ViolationKind = "cut"
	ViolationPaste       ViolationKind = "paste"
	ViolationContextMenu ViolationKind = "contextmenu"
	ViolationTabFocus    ViolationKind = "tab"
)

// ParseViolation maps a reported signal name onto the prohibited set.
// Unknown names are not violations.
func ParseViolation(s string) (ViolationKind, bool) {
	switch ViolationKind(s) {
	case ViolationCopy, ViolationCut, ViolationPaste, ViolationContextMenu, ViolationTabFocus:
		return ViolationKind(s), true
	}
	return "", false
}

// IntegrityMonitor observes prohibited interaction signals for the lifetime
// of one attempt. The signal source is injected so transports and tests can
// feed it however they like. After the warning threshold escalates the
// monitor goes inert; Stop detaches it entirely.
type IntegrityMonitor struct {
	attempt    *Attempt
	signals    <-chan ViolationKind
	onWarn     func(IntegrityNotice)
	onEscalate func(IntegrityNotice)

	mu      sync.Mutex
	started bool
	tripped bool
	done    chan struct{}
	stopped chan struct{}
}

// NewIntegrityMonitor wires a signal source to an attempt. onWarn fires for
// every counted violation below the threshold, onEscalate exactly once at
// the threshold.
func NewIntegrityMonitor(attempt *Attempt, signals <-chan ViolationKind, onWarn, onEscalate func(IntegrityNotice)) *IntegrityMonitor {
	return &IntegrityMonitor{
		attempt:    attempt,
		signals:    signals,
		onWarn:     onWarn,
		onEscalate: onEscalate,
	}
}

// Start begins consuming signals until Stop is called or ctx ends.
// Starting twice is a no-op.
func (m *IntegrityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.done = make(chan struct{})
	m.stopped = make(chan struct{})
	m.mu.Unlock()

	go m.run(ctx)
}

func (m *IntegrityMonitor) run(ctx context.Context) {
	defer close(m.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case kind, ok := <-m.signals:
			if !ok {
				return
			}
			m.observe(kind)
		}
	}
}

func (m *IntegrityMonitor) observe(_ ViolationKind) {
	m.mu.Lock()
	if m.tripped {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	notice, escalate := m.attempt.RecordViolation()
	if notice.Count == 0 {
		return // attempt already submitting; signal dropped
	}
	if escalate {
		m.mu.Lock()
		m.tripped = true
		m.mu.Unlock()
		if m.onEscalate != nil {
			m.onEscalate(notice)
		}
		return
	}
	if m.onWarn != nil {
		m.onWarn(notice)
	}
}

// Stop detaches the monitor. It blocks until the consumer goroutine has
// exited so no callback can fire after Stop returns. Safe to call more
// than once, and before Start.
func (m *IntegrityMonitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	stopped := m.stopped
	m.mu.Unlock()
	<-stopped
}
