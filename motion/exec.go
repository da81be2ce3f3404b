package motion

import (
	"math"

	"gopper/core"
)

// execMove asks the planner for the next move. A Noop result (queue
// empty, or planner not ready) calls PrepNull so the segment chain idles
// gracefully. Otherwise the planner (or its delegate) has already called
// PrepLine/PrepDwell on us by the time ExecMove returns OK; we flip
// ownership to the Loader and request a load.
//
// Grounded on TinyG2/stepper.cpp's _exec_move.
func (c *Core) execMove() {
	if ExecState(c.prep.ExecState.Load()) != OwnedByExec {
		return
	}
	if c.planner == nil {
		c.PrepNull()
		return
	}

	status, err := c.planner.ExecMove(c)
	if err != nil || status == MoveNoop {
		c.PrepNull()
		return
	}

	c.prep.ExecState.Store(uint32(OwnedByLoader))
	c.requestLoadMove()
}

// PrepLine does the math on the next pulse segment and stages it for the
// Loader. Preconditions: the Prep buffer must be owned by Exec, and
// microseconds must be finite and at least epsilon; violations leave the
// buffer untouched.
//
// Grounded on TinyG2/stepper.cpp's st_prep_line, including the
// anti-stall rule and the integer (not float-scaled) computation of
// timer_ticks_x_substeps called out in spec §4.5's footnote.
func (c *Core) PrepLine(steps [MaxMotors]float64, microseconds float64) error {
	if ExecState(c.prep.ExecState.Load()) != OwnedByExec {
		return ErrInternal
	}
	if !isFiniteNonNegative(microseconds) || microseconds < c.cfg.EpsilonMicroseconds {
		return ErrZeroLengthMove
	}

	c.prep.CounterResetFlag = false

	for i := 0; i < c.cfg.MotorCount; i++ {
		dir := uint8(0)
		if steps[i] < 0 {
			dir = 1
		}
		dir ^= c.motorCfg[i].Polarity
		c.prep.Motors[i].Direction = dir
		c.prep.Motors[i].Increment = uint32(math.Round(math.Abs(steps[i]) * float64(c.cfg.Substeps)))
	}

	timerTicks := uint32(math.Round(microseconds * float64(c.cfg.FDDA) / 1_000_000))
	c.prep.TimerTicks = timerTicks
	c.prep.TimerTicksXSubsteps = timerTicks * c.cfg.Substeps

	if timerTicks*c.cfg.CounterResetFactor < c.prep.PrevTicks {
		c.prep.CounterResetFlag = true
		core.RecordTiming(core.EvtResetClock, 0, core.GetTime(), timerTicks, c.prep.PrevTicks)
	}
	c.prep.PrevTicks = timerTicks
	c.prep.MoveType = MoveALine
	return nil
}

// PrepDwell stages a timed pause with no motor motion.
//
// Grounded on TinyG2/stepper.cpp's st_prep_dwell.
func (c *Core) PrepDwell(microseconds float64) error {
	if ExecState(c.prep.ExecState.Load()) != OwnedByExec {
		return ErrInternal
	}
	if !isFiniteNonNegative(microseconds) || microseconds < c.cfg.EpsilonMicroseconds {
		return ErrZeroLengthMove
	}
	c.prep.MoveType = MoveDwell
	c.prep.TimerTicks = uint32(math.Round(microseconds * float64(c.cfg.FDwell) / 1_000_000))
	return nil
}

// PrepNull keeps the Loader happy without staging any hardware action.
// Used when the planner has nothing to prepare this cycle.
//
// Grounded on TinyG2/stepper.cpp's st_prep_null.
func (c *Core) PrepNull() {
	c.prep.MoveType = MoveNull
}
