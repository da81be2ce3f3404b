package motion

import "math"

// Preparer is the Exec-side contract the planner delegates to: prep_line,
// prep_dwell and prep_null as described in spec §4.3/§6.
type Preparer interface {
	PrepLine(steps [MaxMotors]float64, microseconds float64) error
	PrepDwell(microseconds float64) error
	PrepNull()
}

// MoveStatus is the planner's exec_move() result (spec §6 Inbound
// callback): OK means a segment was staged, Noop means there was nothing
// to prepare this cycle.
type MoveStatus uint8

const (
	MoveOK MoveStatus = iota
	MoveNoop
)

// Planner is the upstream collaborator the core treats as an external
// black box (spec §2, §6). It is asked for the next move once per Exec
// pass and is itself responsible for calling PrepLine/PrepDwell/PrepNull
// on the Preparer it is handed.
type Planner interface {
	ExecMove(p Preparer) (MoveStatus, error)
}

// Core is the single owned context threading through init and captured by
// the timer-ISR installation call (spec §9 "Global mutable state"). Every
// field an ISR touches lives here at a fixed address; there is exactly one
// Core per controller.
type Core struct {
	cfg Config

	run  RunBlock
	prep PrepBlock

	motorCfg  [MaxMotors]MotorConfig
	motorPins [MaxMotors]MotorPins
	enable    Pin // global/common motor enable line

	ddaTimer   HardwareTimer
	dwellTimer HardwareTimer
	loadTimer  HardwareTimer
	execTimer  HardwareTimer

	planner     Planner
	diagnostics bool
}

// NewCore builds a Core with the software-scheduled default timers
// (motion/hal.go's SoftTimer/SWTimer). Callers wire motor pins and
// configuration with SetMotor/SetEnablePin before calling Init.
func NewCore(cfg Config) *Core {
	if cfg.MotorCount <= 0 || cfg.MotorCount > MaxMotors {
		cfg.MotorCount = MaxMotors
	}
	c := &Core{
		cfg:        cfg,
		ddaTimer:   NewSoftTimer(),
		dwellTimer: NewSoftTimer(),
		loadTimer:  NewSWTimer(),
		execTimer:  NewSWTimer(),
		enable:     NullPin(),
	}
	for i := range c.motorPins {
		c.motorPins[i] = MotorPins{
			Step: NullPin(), Dir: NullPin(), Enable: NullPin(),
			MS0: NullPin(), MS1: NullPin(), VRef: NullPin(),
		}
	}
	return c
}

// SetMotor wires a motor's pins and configuration. Must be called before
// Init; motors left unset keep their null pins and cost nothing in PG.
func (c *Core) SetMotor(motor int, pins MotorPins, cfg MotorConfig) {
	c.motorPins[motor] = pins
	c.motorCfg[motor] = cfg
}

// SetEnablePin wires the global/common enable line st_enable/st_disable
// toggle (spec §6, §9 "global vs per-motor enable").
func (c *Core) SetEnablePin(pin Pin) { c.enable = pin }

// SetPlanner wires the upstream planner collaborator.
func (c *Core) SetPlanner(p Planner) { c.planner = p }

// Init zeroes both state blocks, stamps the magic word, and configures
// the four timers (spec §6 upward API: init()).
func (c *Core) Init() {
	c.run.TicksRemaining.Store(0)
	c.run.TicksXSubsteps = 0
	c.run.Motors = [MaxMotors]RunMotor{}
	c.run.MagicStart, c.run.MagicEnd = c.cfg.Magic, c.cfg.Magic

	c.prep.MoveType = MoveNull
	c.prep.CounterResetFlag = false
	c.prep.TimerTicks, c.prep.TimerTicksXSubsteps, c.prep.PrevTicks = 0, 0, 0
	c.prep.Motors = [MaxMotors]PrepMotor{}
	c.prep.MagicStart, c.prep.MagicEnd = c.cfg.Magic, c.cfg.Magic

	c.ddaTimer.SetModeAndFrequency(c.cfg.FDDA)
	c.ddaTimer.SetHandler(c.ddaTick)
	c.dwellTimer.SetModeAndFrequency(c.cfg.FDwell)
	c.dwellTimer.SetHandler(c.dwellTick)
	c.loadTimer.SetHandler(c.loadMove)
	c.execTimer.SetHandler(c.execMove)

	c.prep.ExecState.Store(uint32(OwnedByExec))
}

// Enable deasserts the global enable line and starts the DDA timer (spec
// §6 upward API: enable()).
func (c *Core) Enable() {
	c.enable.Clear()
	c.ddaTimer.Start()
}

// Disable stops the DDA timer, asserts the global and every per-motor
// enable pin, and zeroes all increments (spec §6 upward API: disable()).
// The original TinyG2 disable routine skips motor 3 — spec §9's REDESIGN
// FLAGS calls that a transcription bug; this deasserts all configured
// motors.
func (c *Core) Disable() {
	c.ddaTimer.Stop()
	c.enable.Set()
	for i := 0; i < c.cfg.MotorCount; i++ {
		c.motorPins[i].Enable.Set()
		c.run.Motors[i].Increment = 0
	}
}

// IsBusy reports whether a segment is in progress (spec §6 upward API:
// is_busy()).
func (c *Core) IsBusy() bool { return c.run.TicksRemaining.Load() != 0 }

// RequestExecMove fires the low-priority exec software interrupt iff the
// Prep buffer is currently owned by Exec. The request is idempotent:
// repeated calls while the buffer is owned by the Loader raise no further
// interrupt (spec §4.3, testable property 9).
func (c *Core) RequestExecMove() {
	if ExecState(c.prep.ExecState.Load()) == OwnedByExec {
		c.execTimer.SetInterruptPending()
	}
}

// requestLoadMove fires the medium-priority load interrupt iff no segment
// is currently executing. The request is gated: firing it while a segment
// is in progress would let the Loader corrupt the Run block out from
// under PG/DG (spec §4.4).
func (c *Core) requestLoadMove() {
	if c.run.TicksRemaining.Load() == 0 {
		c.loadTimer.SetInterruptPending()
	}
}

// SetMicrosteps drives MS0/MS1 per the requested mode (spec §6 upward
// API). The original TinyG2 left this body commented out; SPEC_FULL.md
// §12 calls for it to actually run.
func (c *Core) SetMicrosteps(motor int, mode MicrostepMode) error {
	if motor < 0 || motor >= c.cfg.MotorCount {
		return ErrInternal
	}
	var ms0, ms1 bool
	switch mode {
	case Microstep1:
		ms0, ms1 = false, false
	case Microstep2:
		ms0, ms1 = true, false
	case Microstep4:
		ms0, ms1 = false, true
	case Microstep8:
		ms0, ms1 = true, true
	default:
		return ErrInternal
	}
	setPin(c.motorPins[motor].MS0, ms0)
	setPin(c.motorPins[motor].MS1, ms1)
	return nil
}

func setPin(p Pin, high bool) {
	if high {
		p.Set()
	} else {
		p.Clear()
	}
}

// CheckIntegrity polls the magic words at both ends of both state blocks
// (spec §7's memory-integrity probe).
func (c *Core) CheckIntegrity() bool {
	return c.run.MagicStart == c.cfg.Magic && c.run.MagicEnd == c.cfg.Magic &&
		c.prep.MagicStart == c.cfg.Magic && c.prep.MagicEnd == c.cfg.Magic
}

// SetDiagnosticsEnabled toggles the optional per-motor step counters
// (spec §3, SPEC_FULL §12).
func (c *Core) SetDiagnosticsEnabled(enabled bool) { c.diagnostics = enabled }

// DiagnosticCount returns the current step count for a motor.
func (c *Core) DiagnosticCount(motor int) uint32 {
	if motor < 0 || motor >= MaxMotors {
		return 0
	}
	return c.run.Motors[motor].DiagnosticCount
}

// ResetDiagnosticCounters zeroes every motor's step counter.
func (c *Core) ResetDiagnosticCounters() {
	for i := range c.run.Motors {
		c.run.Motors[i].DiagnosticCount = 0
	}
}

func isFiniteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
