package motion

import (
	"testing"

	"gopper/core"
)

// testPin is a recording Pin used to assert step/dir/enable behavior
// without any real hardware: a single-pin mock instead of a whole
// core.GPIODriver.
type testPin struct {
	high      bool
	setCount  int
	highTicks []bool // snapshot of .high right after each Set/Clear, in order
}

func (p *testPin) Set() {
	p.high = true
	p.setCount++
	p.highTicks = append(p.highTicks, true)
}
func (p *testPin) Clear() {
	p.high = false
	p.highTicks = append(p.highTicks, false)
}
func (p *testPin) IsNull() bool { return false }

// countingPlanner implements Planner by returning a single scripted move
// once, then Noop forever after.
type countingPlanner struct {
	steps        [MaxMotors]float64
	microseconds float64
	served       bool
}

func (p *countingPlanner) ExecMove(prep Preparer) (MoveStatus, error) {
	if p.served {
		return MoveNoop, nil
	}
	p.served = true
	if err := prep.PrepLine(p.steps, p.microseconds); err != nil {
		return MoveNoop, err
	}
	return MoveOK, nil
}

// sequencePlanner serves a fixed list of scripted ALINE moves in order,
// then Noop forever after.
type sequencePlanner struct {
	moves []struct {
		steps        [MaxMotors]float64
		microseconds float64
	}
	next int
}

func (p *sequencePlanner) ExecMove(prep Preparer) (MoveStatus, error) {
	if p.next >= len(p.moves) {
		return MoveNoop, nil
	}
	m := p.moves[p.next]
	p.next++
	if err := prep.PrepLine(m.steps, m.microseconds); err != nil {
		return MoveNoop, err
	}
	return MoveOK, nil
}

func testConfig() Config {
	return Config{
		MotorCount:          6,
		FDDA:                200_000,
		FDwell:              100_000,
		Substeps:            1024,
		CounterResetFactor:  2,
		EpsilonMicroseconds: 0,
		Magic:               0xBEEF,
	}
}

func newTestCore(t *testing.T, cfg Config) (*Core, [MaxMotors]*testPin) {
	t.Helper()
	c := NewCore(cfg)
	var steps [MaxMotors]*testPin
	for i := 0; i < cfg.MotorCount; i++ {
		sp := &testPin{}
		steps[i] = sp
		c.SetMotor(i, MotorPins{
			Step: sp, Dir: &testPin{}, Enable: &testPin{},
			MS0: &testPin{}, MS1: &testPin{}, VRef: &testPin{},
		}, MotorConfig{})
	}
	c.Init()
	if !c.CheckIntegrity() {
		t.Fatal("magic words not stamped after Init")
	}
	return c, steps
}

// TestScenarioA is spec.md §8 scenario A: single-axis straight move.
func TestScenarioA(t *testing.T) {
	cfg := testConfig()
	c, steps := newTestCore(t, cfg)

	var in [MaxMotors]float64
	in[0] = 100
	if err := c.PrepLine(in, 10_000); err != nil {
		t.Fatalf("PrepLine: %v", err)
	}
	if c.prep.TimerTicks != 2000 {
		t.Errorf("timer_ticks = %d, want 2000", c.prep.TimerTicks)
	}
	if c.prep.TimerTicksXSubsteps != 2_048_000 {
		t.Errorf("ticks_x_substeps = %d, want 2048000", c.prep.TimerTicksXSubsteps)
	}
	if c.prep.Motors[0].Increment != 102_400 {
		t.Errorf("increment[0] = %d, want 102400", c.prep.Motors[0].Increment)
	}

	c.prep.ExecState.Store(uint32(OwnedByLoader))
	c.loadMove()

	if !c.IsBusy() {
		t.Fatal("expected busy immediately after load")
	}

	stepCount := [MaxMotors]int{}
	for tick := 0; tick < 2000; tick++ {
		before := [MaxMotors]int{}
		for i := range steps {
			before[i] = steps[i].setCount
		}
		c.ddaTick()
		for i := range steps {
			stepCount[i] += steps[i].setCount - before[i]
		}
	}

	if stepCount[0] != 100 {
		t.Errorf("motor 1 emitted %d steps, want 100", stepCount[0])
	}
	for i := 1; i < 6; i++ {
		if stepCount[i] != 0 {
			t.Errorf("motor %d emitted %d steps, want 0", i+1, stepCount[i])
		}
	}
	if c.IsBusy() {
		t.Error("expected idle after segment completion")
	}
}

// TestScenarioB is spec.md §8 scenario B: two-axis diagonal move, checking
// step counts and that motor 2's steps are roughly evenly spread.
func TestScenarioB(t *testing.T) {
	cfg := testConfig()
	c, steps := newTestCore(t, cfg)

	var in [MaxMotors]float64
	in[0], in[1] = 100, 50
	if err := c.PrepLine(in, 10_000); err != nil {
		t.Fatalf("PrepLine: %v", err)
	}
	c.prep.ExecState.Store(uint32(OwnedByLoader))
	c.loadMove()

	stepCount := [2]int{}
	sinceLastMotor2 := 0
	maxGap := 0
	for tick := 0; tick < 2000; tick++ {
		b0, b1 := steps[0].setCount, steps[1].setCount
		c.ddaTick()
		if steps[0].setCount > b0 {
			stepCount[0]++
		}
		if steps[1].setCount > b1 {
			stepCount[1]++
			if sinceLastMotor2 > maxGap {
				maxGap = sinceLastMotor2
			}
			sinceLastMotor2 = 0
		} else {
			sinceLastMotor2++
		}
	}

	if stepCount[0] != 100 {
		t.Errorf("motor 1 emitted %d steps, want 100", stepCount[0])
	}
	if stepCount[1] != 50 {
		t.Errorf("motor 2 emitted %d steps, want 50", stepCount[1])
	}
	// 2000 ticks / 50 steps = 40 ticks/step on average; a DDA should never
	// let more than roughly double that gap build up.
	if maxGap > 80 {
		t.Errorf("motor 2 pulses clumped: max gap between steps = %d ticks", maxGap)
	}
}

// TestAntiStall is spec.md §8 scenario C.
func TestAntiStall(t *testing.T) {
	cfg := testConfig()
	c, _ := newTestCore(t, cfg)

	var slow [MaxMotors]float64
	slow[0] = 10
	if err := c.PrepLine(slow, 100_000); err != nil {
		t.Fatalf("PrepLine (segment 1): %v", err)
	}
	if c.prep.CounterResetFlag {
		t.Fatal("counter_reset_flag should not be set on the first segment")
	}
	c.prep.ExecState.Store(uint32(OwnedByExec)) // simulate the loader having released it back

	var fast [MaxMotors]float64
	fast[0] = 10
	if err := c.PrepLine(fast, 10_000); err != nil {
		t.Fatalf("PrepLine (segment 2): %v", err)
	}
	if !c.prep.CounterResetFlag {
		t.Error("counter_reset_flag should be set: 2000*2 < 20000")
	}

	c.prep.ExecState.Store(uint32(OwnedByLoader))
	c.loadMove()

	if c.run.Motors[0].Accumulator != -int32(c.run.TicksRemaining.Load()) {
		t.Errorf("motor 1 (low half) accumulator = %d, want %d",
			c.run.Motors[0].Accumulator, -c.run.TicksRemaining.Load())
	}
	if c.run.Motors[3].Accumulator != int32(c.run.TicksRemaining.Load()) {
		t.Errorf("motor 4 (high half) accumulator = %d, want %d",
			c.run.Motors[3].Accumulator, c.run.TicksRemaining.Load())
	}
}

// TestDwell is spec.md §8 scenario D.
func TestDwell(t *testing.T) {
	cfg := testConfig()
	c, steps := newTestCore(t, cfg)

	if err := c.PrepDwell(5_000); err != nil {
		t.Fatalf("PrepDwell: %v", err)
	}
	if c.prep.TimerTicks != 500 {
		t.Errorf("timer_ticks = %d, want 500", c.prep.TimerTicks)
	}

	c.prep.ExecState.Store(uint32(OwnedByLoader))
	c.loadMove()
	if !c.IsBusy() {
		t.Fatal("expected busy during dwell")
	}

	for tick := 0; tick < 500; tick++ {
		c.dwellTick()
	}
	if c.IsBusy() {
		t.Error("expected idle after dwell completes")
	}
	for i, p := range steps {
		if p.setCount != 0 {
			t.Errorf("motor %d stepped during a dwell", i+1)
		}
	}
}

// TestPrepNullRoundTrip is spec.md §8 scenario E / testable property 8.
func TestPrepNullRoundTrip(t *testing.T) {
	cfg := testConfig()
	c, steps := newTestCore(t, cfg)

	c.PrepNull()
	c.prep.ExecState.Store(uint32(OwnedByLoader))
	c.loadMove()

	if c.IsBusy() {
		t.Error("a null move must never become busy")
	}
	if ExecState(c.prep.ExecState.Load()) != OwnedByExec {
		t.Error("exec_state must flip back to OwnedByExec after a null load")
	}
	for i, p := range steps {
		if p.setCount != 0 {
			t.Errorf("motor %d stepped on a null move", i+1)
		}
	}
}

// TestNegativeDirectionWithPolarity is spec.md §8 scenario F.
func TestNegativeDirectionWithPolarity(t *testing.T) {
	cfg := testConfig()
	c := NewCore(cfg)
	dirPin := &testPin{}
	stepPin := &testPin{}
	c.SetMotor(0, MotorPins{
		Step: stepPin, Dir: dirPin, Enable: &testPin{},
		MS0: &testPin{}, MS1: &testPin{}, VRef: &testPin{},
	}, MotorConfig{Polarity: 1})
	for i := 1; i < 6; i++ {
		c.SetMotor(i, MotorPins{
			Step: &testPin{}, Dir: &testPin{}, Enable: &testPin{},
			MS0: &testPin{}, MS1: &testPin{}, VRef: &testPin{},
		}, MotorConfig{})
	}
	c.Init()

	var in [MaxMotors]float64
	in[0] = -10
	if err := c.PrepLine(in, 1_000); err != nil {
		t.Fatalf("PrepLine: %v", err)
	}
	if c.prep.Motors[0].Direction != 0 {
		t.Errorf("direction = %d, want 0 (negative XOR polarity=1)", c.prep.Motors[0].Direction)
	}

	c.prep.ExecState.Store(uint32(OwnedByLoader))
	c.loadMove()
	if dirPin.high {
		t.Error("direction pin should be cleared, not set")
	}

	steps := 0
	for tick := 0; tick < int(c.prep.TimerTicks); tick++ {
		before := stepPin.setCount
		c.ddaTick()
		if stepPin.setCount > before {
			steps++
		}
	}
	if steps != 10 {
		t.Errorf("emitted %d pulses, want 10", steps)
	}
}

// TestPrepLinePreconditions checks the two documented prep_line failure
// kinds (spec §7).
func TestPrepLinePreconditions(t *testing.T) {
	cfg := testConfig()
	c, _ := newTestCore(t, cfg)

	c.prep.ExecState.Store(uint32(OwnedByLoader))
	var in [MaxMotors]float64
	if err := c.PrepLine(in, 1000); err != ErrInternal {
		t.Errorf("expected ErrInternal while owned by loader, got %v", err)
	}

	c.prep.ExecState.Store(uint32(OwnedByExec))
	c.cfg.EpsilonMicroseconds = 100
	if err := c.PrepLine(in, 10); err != ErrZeroLengthMove {
		t.Errorf("expected ErrZeroLengthMove below epsilon, got %v", err)
	}
}

// TestRequestExecMoveIdempotent is spec.md testable property 9.
func TestRequestExecMoveIdempotent(t *testing.T) {
	cfg := testConfig()
	c, _ := newTestCore(t, cfg)

	c.prep.ExecState.Store(uint32(OwnedByLoader))
	calls := 0
	c.execTimer.SetHandler(func() { calls++ })

	c.RequestExecMove()
	c.RequestExecMove()
	c.RequestExecMove()

	if calls != 0 {
		t.Errorf("expected 0 exec interrupts while owned by loader, got %d", calls)
	}
}

// TestDisableEnable is spec.md testable property 10.
func TestDisableEnable(t *testing.T) {
	cfg := testConfig()
	c, steps := newTestCore(t, cfg)

	c.Disable()
	c.Enable()

	if c.IsBusy() {
		t.Error("expected idle after disable/enable with no intervening prep")
	}
	for tick := 0; tick < 100; tick++ {
		c.ddaTick()
	}
	for i, p := range steps {
		if p.setCount != 0 {
			t.Errorf("motor %d emitted pulses with nothing queued", i+1)
		}
	}
}

// TestHoldOffPowersDownAtSegmentEnd is spec.md testable property 11: a
// hold-off motor is powered down (Enable asserted) when its segment
// completes, whether or not it was the one that actually stepped.
func TestHoldOffPowersDownAtSegmentEnd(t *testing.T) {
	cfg := testConfig()
	c := NewCore(cfg)
	enablePins := [MaxMotors]*testPin{}
	for i := 0; i < 6; i++ {
		ep := &testPin{}
		enablePins[i] = ep
		c.SetMotor(i, MotorPins{
			Step: &testPin{}, Dir: &testPin{}, Enable: ep,
			MS0: &testPin{}, MS1: &testPin{}, VRef: &testPin{},
		}, MotorConfig{PowerMode: PowerHoldOff})
	}
	c.Init()

	var in [MaxMotors]float64
	in[0] = 5 // only motor 1 moves; motors 2-6 have increment == 0
	if err := c.PrepLine(in, 1_000); err != nil {
		t.Fatalf("PrepLine: %v", err)
	}
	c.prep.ExecState.Store(uint32(OwnedByLoader))
	c.loadMove()

	if enablePins[0].high {
		t.Fatal("motor 1's enable should be cleared (energized) while its segment runs")
	}
	for i := 1; i < 6; i++ {
		if len(enablePins[i].highTicks) != 0 {
			t.Errorf("motor %d (increment 0) enable pin was driven before the segment ran", i+1)
		}
	}

	for tick := 0; tick < int(c.prep.TimerTicks); tick++ {
		c.ddaTick()
	}

	for i := 0; i < 6; i++ {
		if !enablePins[i].high {
			t.Errorf("motor %d enable pin not asserted (powered down) after segment end", i+1)
		}
	}
}

// TestEndToEndPlanner exercises the full EP->LD->PG->LD->EP ring with a
// scripted Planner, as the planner's own ExecMove implementation would.
func TestEndToEndPlanner(t *testing.T) {
	cfg := testConfig()
	c, steps := newTestCore(t, cfg)

	planner := &countingPlanner{microseconds: 10_000}
	planner.steps[2] = 30
	c.SetPlanner(planner)
	c.Init()
	c.Enable()

	c.RequestExecMove() // EP: planner stages the move, flips to OwnedByLoader,
	// which synchronously requests and runs the Loader, which starts the
	// (now-running) DDA timer and re-requests Exec.

	if !c.IsBusy() {
		t.Fatal("expected a segment to be running after RequestExecMove")
	}

	for tick := 0; tick < 2000; tick++ {
		c.ddaTick()
	}

	if steps[2].setCount != 30 {
		t.Errorf("motor 3 emitted %d steps, want 30", steps[2].setCount)
	}
	if c.IsBusy() {
		t.Error("expected idle after the segment completes")
	}
}

// TestProcessTimersBackToBackSegments drives PG through the real
// core.ScheduleTimer/core.TimerDispatch path that a host's periodic
// core.ProcessTimers() call actually uses, across two back-to-back ALINE
// segments. ddaTick's segment-end handler calls loadMove synchronously,
// which for a continuous-motion handoff restarts the DDA timer from
// inside SoftTimer.fire itself; every other test in this file drives
// ddaTick/loadMove directly and never exercises that re-entrant restart.
func TestProcessTimersBackToBackSegments(t *testing.T) {
	cfg := testConfig()
	c, steps := newTestCore(t, cfg)

	var segment1, segment2 [MaxMotors]float64
	segment1[0], segment2[0] = 50, 50
	planner := &sequencePlanner{moves: []struct {
		steps        [MaxMotors]float64
		microseconds float64
	}{
		{steps: segment1, microseconds: 5_000},
		{steps: segment2, microseconds: 5_000},
	}}
	c.SetPlanner(planner)

	core.SetTime(0)
	c.Enable()
	c.RequestExecMove() // loads segment 1 and arms the DDA timer

	if !c.IsBusy() {
		t.Fatal("expected first segment running after RequestExecMove")
	}

	// FDDA=200kHz against a 12MHz TimerFreq gives a 60-raw-tick DDA
	// period; each 1000-tick segment needs 60000 raw ticks to drain, and
	// the handoff between segments happens mid-drive. Step the clock in
	// whole periods so core.ProcessTimers sees every wakeup.
	for tick := uint32(60); tick <= 125_000; tick += 60 {
		core.SetTime(tick)
		core.ProcessTimers()
	}

	if c.IsBusy() {
		t.Error("expected idle after both segments complete")
	}
	if steps[0].setCount != 100 {
		t.Errorf("motor 1 emitted %d steps across two segments, want 100", steps[0].setCount)
	}
}
