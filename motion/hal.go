package motion

import "gopper/core"

// Pin is the downward pin abstraction spec §6 requires: atomic set/clear
// plus a null test so an unmapped motor costs nothing in the PG loop.
type Pin interface {
	Set()
	Clear()
	IsNull() bool
}

// nullPin is the zero-cost stand-in for an axis that has no hardware on a
// given pin (e.g. a motor with fewer than six wired outputs).
type nullPin struct{}

func (nullPin) Set()         {}
func (nullPin) Clear()       {}
func (nullPin) IsNull() bool { return true }

// NullPin returns the shared no-op Pin.
func NullPin() Pin { return nullPin{} }

// HALPin adapts core.GPIODriver/core.GPIOPin to the Pin interface, so
// every motor pin flows through whatever GPIO driver the platform
// registers behind core.GPIODriver.
type HALPin struct {
	driver core.GPIODriver
	pin    core.GPIOPin
}

// NewHALPin builds a Pin backed by a configured GPIO driver pin. Callers
// are responsible for having configured the pin as an output beforehand.
func NewHALPin(driver core.GPIODriver, pin core.GPIOPin) Pin {
	return &HALPin{driver: driver, pin: pin}
}

func (p *HALPin) Set() {
	if p.driver != nil {
		_ = p.driver.SetPin(p.pin, true)
	}
}

func (p *HALPin) Clear() {
	if p.driver != nil {
		_ = p.driver.SetPin(p.pin, false)
	}
}

func (p *HALPin) IsNull() bool { return p.driver == nil }

// MotorPins groups the six pins spec §6 assigns to a motor.
type MotorPins struct {
	Step   Pin
	Dir    Pin
	Enable Pin
	MS0    Pin
	MS1    Pin
	VRef   Pin
}

// HardwareTimer is the downward timer abstraction spec §6 requires: each
// of the four timers (DDA, dwell, load, exec) exposes the same set of
// operations regardless of whether it is backed by a real hardware timer
// or, as here, the software scheduler in core/scheduler.go.
type HardwareTimer interface {
	SetModeAndFrequency(hz uint32)
	SetInterruptMask(enabled bool)
	SetHandler(fn func())
	Start()
	Stop()
	SetInterruptPending()
	AcknowledgeInterrupt()
}

// SoftTimer implements HardwareTimer as a periodic core.Timer. It backs
// the DDA and dwell clocks, which must fire at a fixed frequency for as
// long as they are running.
type SoftTimer struct {
	t           core.Timer
	periodTicks uint32
	handler     func()
	running     bool
	inFire      bool // true while fire() is running s.handler
	restarted   bool // Start() was called re-entrantly from within fire()
}

// NewSoftTimer creates a periodic timer driven by core.ScheduleTimer /
// core.TimerDispatch.
func NewSoftTimer() *SoftTimer {
	st := &SoftTimer{}
	st.t.Handler = st.fire
	return st
}

func (s *SoftTimer) SetModeAndFrequency(hz uint32) {
	if hz == 0 {
		s.periodTicks = 0
		return
	}
	period := core.TimerFreq / hz
	if period == 0 {
		period = 1
	}
	s.periodTicks = period
}

func (s *SoftTimer) SetInterruptMask(bool)     {}
func (s *SoftTimer) SetHandler(fn func())      { s.handler = fn }
func (s *SoftTimer) AcknowledgeInterrupt()     {}

func (s *SoftTimer) Start() {
	if s.running || s.periodTicks == 0 {
		return
	}
	s.running = true
	s.t.WakeTime = core.GetTime() + s.periodTicks
	core.ScheduleTimer(&s.t)
	if s.inFire {
		// handler() called us re-entrantly: core.ScheduleTimer already
		// reinserted &s.t into the list. Tell fire() not to let
		// TimerDispatch insert the same node a second time.
		s.restarted = true
	}
}

func (s *SoftTimer) Stop() { s.running = false }

func (s *SoftTimer) fire(t *core.Timer) uint8 {
	if !s.running {
		return core.SF_DONE
	}
	s.inFire = true
	if s.handler != nil {
		s.handler()
	}
	s.inFire = false
	if s.restarted {
		s.restarted = false
		return core.SF_DONE
	}
	if !s.running {
		return core.SF_DONE
	}
	t.WakeTime += s.periodTicks
	return core.SF_RESCHEDULE
}

// SetInterruptPending fires the handler immediately. A real free-running
// timer would instead set a pending-overflow bit for the dispatcher to
// notice on its next pass; SoftTimer has no separate dispatcher tick to
// wait for, so it invokes the handler in place.
func (s *SoftTimer) SetInterruptPending() {
	if s.handler != nil {
		s.handler()
	}
}

// SWTimer implements HardwareTimer for the load and exec software
// interrupts: there is no periodic firing, only an on-demand trigger.
type SWTimer struct {
	handler func()
}

// NewSWTimer creates a software-triggered timer.
func NewSWTimer() *SWTimer { return &SWTimer{} }

func (s *SWTimer) SetModeAndFrequency(uint32) {}
func (s *SWTimer) SetInterruptMask(bool)       {}
func (s *SWTimer) SetHandler(fn func())        { s.handler = fn }
func (s *SWTimer) Start()                      {}
func (s *SWTimer) Stop()                       {}
func (s *SWTimer) AcknowledgeInterrupt()        {}

// SetInterruptPending invokes the handler synchronously. The scheduling
// substrate this module runs on (core/scheduler.go) is single-threaded and
// cooperative, so there is no lower-priority context to preempt: calling
// the handler in place is the faithful emulation of "software interrupt
// requested, runs to completion before the requester resumes" available
// here. See DESIGN.md "Open Question resolutions".
func (s *SWTimer) SetInterruptPending() {
	if s.handler != nil {
		s.handler()
	}
}
