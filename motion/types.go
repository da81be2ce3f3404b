// Package motion implements the stepper pulse-generation core: the
// prep -> load -> run handoff between a foreground motion planner and the
// high-priority DDA pulse generator.
//
// The pipeline runs in four stages, leaves first: PulseGen (PG) and
// DwellGen (DG) service the DDA and dwell clocks and own the Run block;
// Loader (LD) copies a staged segment from Prep into Run; Exec (EP) pulls
// the next segment from the planner and fills Prep. Control flows in one
// direction: EP -> LD -> PG/DG -> LD -> EP.
package motion

import "sync/atomic"

// MaxMotors is the number of independently controlled motor axes.
const MaxMotors = 6

// MoveType identifies what a prepared segment will do once loaded.
type MoveType uint8

const (
	MoveNull  MoveType = iota // no hardware action
	MoveALine                 // coordinated multi-motor straight segment
	MoveDwell                 // timed pause, no pulses
)

// ExecState is the handoff latch between Exec and Loader. It is the only
// field in either block mutated by two different priority levels and must
// always be read/written atomically.
type ExecState uint32

const (
	OwnedByLoader ExecState = iota
	OwnedByExec
)

// PowerMode controls whether a motor's enable pin is deasserted when its
// segment completes with that motor idle.
type PowerMode uint8

const (
	PowerAlwaysOn PowerMode = iota
	PowerHoldOff
)

// MicrostepMode is the set of microstep ratios set_microsteps accepts.
type MicrostepMode uint8

const (
	Microstep1 MicrostepMode = 1
	Microstep2 MicrostepMode = 2
	Microstep4 MicrostepMode = 4
	Microstep8 MicrostepMode = 8
)

// RunMotor is PG's per-motor state. Owned exclusively by PG; written by LD
// only while the DDA timer is stopped.
type RunMotor struct {
	Increment       int32  // magnitude of per-tick accumulator advance = |steps|*S
	Accumulator     int32  // DDA phase register
	DiagnosticCount uint32 // optional per-motor step counter
}

// RunBlock is the Run state block (spec §3): owned by PG/DG, written by LD
// only while ticks_remaining == 0.
type RunBlock struct {
	MagicStart     uint16
	TicksRemaining atomic.Int32 // countdown of ticks for the current segment
	TicksXSubsteps uint32       // segment duration in ticks * substep scale S
	Motors         [MaxMotors]RunMotor
	MagicEnd       uint16
}

// PrepMotor is EP's per-motor staging record.
type PrepMotor struct {
	Increment uint32 // round(|steps| * S)
	Direction uint8  // 0 = positive, 1 = negative, after polarity XOR
}

// PrepBlock is the Prep state block (spec §3): owned by EP, read once by LD
// at segment handoff.
type PrepBlock struct {
	MagicStart          uint16
	MoveType            MoveType
	ExecState           atomic.Uint32 // OwnedByExec / OwnedByLoader
	CounterResetFlag    bool
	TimerTicks          uint32 // to-be-loaded ticks_remaining
	TimerTicksXSubsteps uint32 // to-be-loaded ticks_x_substeps
	PrevTicks           uint32 // last segment's timer_ticks, for anti-stall
	Motors              [MaxMotors]PrepMotor
	MagicEnd            uint16
}

// MotorConfig holds the read-only per-motor configuration the host defines
// (spec §6 "Config inputs").
type MotorConfig struct {
	Polarity  uint8
	PowerMode PowerMode
}

// Config holds the constants the host must define (spec §6).
type Config struct {
	MotorCount          int     // M
	FDDA                uint32  // DDA timer frequency, Hz
	FDwell              uint32  // dwell timer frequency, Hz
	Substeps            uint32  // S, the fixed-point substep scale
	CounterResetFactor  uint32  // K, the anti-stall factor
	EpsilonMicroseconds float64 // minimum microseconds accepted by prep_line
	Magic               uint16
}
