package motion

import "gopper/core"

// loadMove copies the staged segment from Prep into Run, configures
// direction/enable pins, starts the appropriate timer, then hands the
// Prep buffer back to Exec and requests the next Exec pass.
//
// loadMove may only run while ticks_remaining == 0: a load mid-segment
// would corrupt the Run block out from under PG/DG. requestLoadMove
// enforces that gate for the software-triggered path; PG/DG calling this
// directly at segment end are themselves only ever at ticks_remaining==0
// the instant they call it.
//
// Grounded on TinyG2/stepper.cpp's _load_move, including the accumulator
// reseed sign split between motors 1-3 and 4-6 (spec §9 Open Question,
// preserved as specified with the rationale left unconfirmed).
func (c *Core) loadMove() {
	if c.run.TicksRemaining.Load() != 0 {
		return
	}

	switch c.prep.MoveType {
	case MoveALine:
		ticks := int32(c.prep.TimerTicks)
		c.run.TicksRemaining.Store(ticks)
		c.run.TicksXSubsteps = c.prep.TimerTicksXSubsteps
		core.RecordTiming(core.EvtLoadMove, 0, core.GetTime(), uint32(ticks), c.prep.TimerTicksXSubsteps)

		for i := 0; i < c.cfg.MotorCount; i++ {
			pm := &c.prep.Motors[i]
			rm := &c.run.Motors[i]
			rm.Increment = int32(pm.Increment)

			if c.prep.CounterResetFlag {
				if i < 3 {
					rm.Accumulator = -ticks
				} else {
					rm.Accumulator = ticks
				}
			}

			if rm.Increment != 0 {
				if pm.Direction == 0 {
					c.motorPins[i].Dir.Clear()
				} else {
					c.motorPins[i].Dir.Set()
				}
				c.motorPins[i].Enable.Clear()
			}
		}
		c.ddaTimer.Start()

	case MoveDwell:
		c.run.TicksRemaining.Store(int32(c.prep.TimerTicks))
		c.dwellTimer.Start()

	default: // MoveNull and anything else: no hardware action
	}

	c.prep.ExecState.Store(uint32(OwnedByExec))
	c.RequestExecMove()
}
