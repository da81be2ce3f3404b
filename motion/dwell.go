package motion

import "gopper/core"

// dwellTick is the Dwell Generator: serviced once per dwell tick. It
// decrements ticks_remaining and, on reaching zero, stops the dwell timer
// and re-enters the Loader. No pulses are emitted on either pin during a
// dwell.
//
// Grounded on TinyG2/stepper.cpp's MOTATE_TIMER_INTERRUPT
// (dwell_timer_num).
func (c *Core) dwellTick() {
	if c.run.TicksRemaining.Add(-1) == 0 {
		core.RecordTiming(core.EvtTimerFire, 0, core.GetTime(), 0, 0)
		c.dwellTimer.Stop()
		c.loadMove()
	}
}
