package motion

import "gopper/core"

// ddaTick is the Pulse Generator: serviced once per DDA tick. For each
// motor with a nonzero increment it advances the phase accumulator and, if
// the accumulator crosses zero, emits a step pulse. At the end of a
// segment it powers down hold-off motors, stops the DDA timer, clears all
// increments, and re-enters the Loader directly.
//
// Grounded line-for-line on TinyG2/stepper.cpp's
// MOTATE_TIMER_INTERRUPT(dda_timer_num).
func (c *Core) ddaTick() {
	if c.run.TicksRemaining.Load() <= 0 {
		// Enable() arms the DDA timer before any segment is loaded; a tick
		// with nothing to run must stop the timer rather than drive
		// ticks_remaining negative, which would leave is_busy() wedged true.
		c.ddaTimer.Stop()
		return
	}

	ticksXSubsteps := int32(c.run.TicksXSubsteps)

	for i := 0; i < c.cfg.MotorCount; i++ {
		m := &c.run.Motors[i]
		if c.motorPins[i].Step.IsNull() || m.Increment == 0 {
			continue
		}
		m.Accumulator += m.Increment
		if m.Accumulator > 0 {
			m.Accumulator -= ticksXSubsteps
			c.motorPins[i].Step.Set()
			if c.diagnostics {
				m.DiagnosticCount++
			}
		}
	}

	// Unconditionally drive every step pin low. The pulse is the interval
	// between "set high" above and this common clear; its width is
	// therefore uniform across motors and segments regardless of which
	// motors stepped this tick.
	for i := 0; i < c.cfg.MotorCount; i++ {
		c.motorPins[i].Step.Clear()
	}

	if c.run.TicksRemaining.Add(-1) == 0 {
		for i := 0; i < c.cfg.MotorCount; i++ {
			if c.motorCfg[i].PowerMode == PowerHoldOff {
				c.motorPins[i].Enable.Set()
			}
			c.run.Motors[i].Increment = 0
		}
		core.RecordTiming(core.EvtTimerFire, 0, core.GetTime(), uint32(c.run.TicksXSubsteps), 0)
		c.ddaTimer.Stop()
		// Permitted to be re-entrantly called from here: the Loader runs
		// at the same priority as PG/DG.
		c.loadMove()
	}
}
