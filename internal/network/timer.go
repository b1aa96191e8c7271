package network

// Timer is a millisecond tick timer. State machines advance it explicitly via
// Clock, so timeout behavior is deterministic in tests without real time
// passing.
type Timer struct {
	timeoutMS int
	currentMS int
	running   bool
}

// NewTimer creates a stopped timer with the given timeout.
func NewTimer(timeoutMS int) *Timer {
	return &Timer{timeoutMS: timeoutMS}
}

// Start arms the timer from zero. A non-zero timeoutMS replaces the current
// timeout.
func (t *Timer) Start(timeoutMS int) {
	if timeoutMS > 0 {
		t.timeoutMS = timeoutMS
	}
	t.currentMS = 0
	t.running = true
}

// Stop disarms the timer.
func (t *Timer) Stop() {
	t.running = false
	t.currentMS = 0
}

// Running reports whether the timer is armed.
func (t *Timer) Running() bool {
	return t.running
}

// Expired reports whether an armed timer has reached its timeout.
func (t *Timer) Expired() bool {
	return t.running && t.timeoutMS > 0 && t.currentMS >= t.timeoutMS
}

// Clock advances an armed timer by ms.
func (t *Timer) Clock(ms int) {
	if t.running {
		t.currentMS += ms
	}
}

// ElapsedMS returns how long the timer has been armed.
func (t *Timer) ElapsedMS() int {
	return t.currentMS
}
