package planner

import (
	"errors"
	"math"

	"gopper/core"
	"gopper/motion"
	"gopper/standalone/types"
	"gopper/standalone/kinematics"
	"gopper/standalone/stepgen"
)

// Planner handles motion planning: trapezoid velocity profiling and
// feeding the shared motion.Core one segment at a time. It implements
// motion.Planner, so motion.Core's Exec stage calls back into it directly
// rather than the planner owning any pulse timing of its own.
type Planner struct {
	config     *types.MachineConfig
	kinematics kinematics.Kinematics
	steppers   map[string]*stepgen.Stepper

	motionCore *motion.Core

	// Current state
	currentPos types.Position
	moveQueue  []*types.Move
	queueSize  int
	executing  bool
}

// NewPlanner creates a new motion planner
func NewPlanner(config *types.MachineConfig, kin kinematics.Kinematics) *Planner {
	return &Planner{
		config:     config,
		kinematics: kin,
		steppers:   make(map[string]*stepgen.Stepper),
		currentPos: types.Position{},
		moveQueue:  make([]*types.Move, 0, 32),
		queueSize:  0,
		executing:  false,
	}
}

// InitSteppers initializes stepper motors for all configured axes
func (p *Planner) InitSteppers(gpioDriver core.GPIODriver) error {
	axisNames := p.kinematics.GetAxisNames()

	for _, name := range axisNames {
		axisConfig, ok := p.config.Axes[name]
		if !ok {
			continue // Skip if axis not configured
		}

		stepper, err := stepgen.NewStepper(name, axisConfig)
		if err != nil {
			return err
		}

		err = stepper.InitPins(gpioDriver)
		if err != nil {
			return err
		}

		p.steppers[name] = stepper
	}

	return nil
}

// SetMotionCore wires the shared pulse-generation core this planner feeds.
// Must be called after InitSteppers; it assigns each configured axis a
// motor slot in axis-name order and registers this planner as the core's
// Exec-stage delegate.
func (p *Planner) SetMotionCore(c *motion.Core) {
	p.motionCore = c
	for i, name := range p.kinematics.GetAxisNames() {
		if i >= motion.MaxMotors {
			break
		}
		stepper, ok := p.steppers[name]
		if !ok {
			continue
		}
		c.SetMotor(i, stepper.MotorPins(), stepper.MotorConfig())
	}
	c.SetPlanner(p)
}

// QueueMove adds a move to the queue
func (p *Planner) QueueMove(move *types.Move) error {
	// Check limits
	err := p.kinematics.CheckLimits(move.End)
	if err != nil {
		return err
	}

	// Calculate trapezoidal profile
	p.calculateTrapezoid(move)

	// Add to queue
	p.moveQueue = append(p.moveQueue, move)
	p.queueSize++

	// Wake the core's Exec stage if it was idle waiting on an empty queue.
	if p.motionCore != nil {
		p.motionCore.RequestExecMove()
	}

	return nil
}

// calculateTrapezoid calculates the trapezoidal velocity profile for a move
func (p *Planner) calculateTrapezoid(move *types.Move) {
	// Limit velocity to axis maximums
	maxVel := move.Velocity
	dx := abs(move.End.X - move.Start.X)
	dy := abs(move.End.Y - move.Start.Y)
	dz := abs(move.End.Z - move.Start.Z)

	if dx > 0 {
		axisVel := maxVel * dx / move.Distance
		if axisConfig, ok := p.config.Axes["x"]; ok {
			if axisVel > axisConfig.MaxVelocity {
				maxVel = axisConfig.MaxVelocity * move.Distance / dx
			}
		}
	}
	if dy > 0 {
		axisVel := maxVel * dy / move.Distance
		if axisConfig, ok := p.config.Axes["y"]; ok {
			if axisVel > axisConfig.MaxVelocity {
				maxVel = axisConfig.MaxVelocity * move.Distance / dy
			}
		}
	}
	if dz > 0 {
		axisVel := maxVel * dz / move.Distance
		if axisConfig, ok := p.config.Axes["z"]; ok {
			if axisVel > axisConfig.MaxVelocity {
				maxVel = axisConfig.MaxVelocity * move.Distance / dz
			}
		}
	}

	move.Velocity = maxVel

	// Calculate acceleration/deceleration times
	// Using simplified trapezoidal profile (no lookahead for now)
	accelDist := (maxVel * maxVel) / (2.0 * move.Accel)

	if accelDist*2.0 >= move.Distance {
		// Triangle profile (can't reach full speed)
		accelDist = move.Distance / 2.0
		move.CruiseVel = sqrt(move.Accel * accelDist)
		move.StartVel = 0
		move.EndVel = 0

		accelTime := move.CruiseVel / move.Accel
		move.AccelTicks = secondsToTicks(accelTime)
		move.CruiseTicks = 0
		move.DecelTicks = move.AccelTicks
		move.Duration = move.AccelTicks + move.DecelTicks
	} else {
		// Trapezoidal profile
		cruiseDist := move.Distance - 2.0*accelDist
		move.CruiseVel = maxVel
		move.StartVel = 0
		move.EndVel = 0

		accelTime := maxVel / move.Accel
		cruiseTime := cruiseDist / maxVel
		decelTime := accelTime

		move.AccelTicks = secondsToTicks(accelTime)
		move.CruiseTicks = secondsToTicks(cruiseTime)
		move.DecelTicks = secondsToTicks(decelTime)
		move.Duration = move.AccelTicks + move.CruiseTicks + move.DecelTicks
	}
}

// ExecMove implements motion.Planner. It is called by motion.Core's Exec
// stage once per Loader cycle: pull the next queued move, convert its
// per-axis millimeter delta into per-motor step counts, and stage it with
// PrepLine. A move with no distance or cruise velocity, or whose
// CalcPosition or PrepLine call fails, is dropped and the next one in the
// queue is tried (limits are already checked by QueueMove), matching the skip-on-error
// behavior the original single-threaded executeNextMove had.
//
// Like the original, each whole queued move is staged as one constant-rate
// segment at its cruise velocity rather than split into separate
// accel/cruise/decel segments; per-segment acceleration profiling is not
// implemented here (TODO, same as the teacher's planner).
func (p *Planner) ExecMove(prep motion.Preparer) (motion.MoveStatus, error) {
	axisNames := p.kinematics.GetAxisNames()

	for p.queueSize > 0 {
		move := p.moveQueue[0]
		p.moveQueue = p.moveQueue[1:]
		p.queueSize--

		if move.Distance <= 0 || move.CruiseVel <= 0 {
			continue
		}

		endPositions, err := p.kinematics.CalcPosition(move.End)
		if err != nil {
			continue
		}

		var steps [motion.MaxMotors]float64
		for i, name := range axisNames {
			if i >= len(endPositions) || i >= motion.MaxMotors {
				break
			}
			stepper, ok := p.steppers[name]
			if !ok {
				continue
			}
			steps[i] = (endPositions[i] - stepper.GetPosition()) * stepper.StepsPerMM()
		}

		microseconds := move.Distance / move.CruiseVel * 1_000_000

		if err := prep.PrepLine(steps, microseconds); err != nil {
			continue
		}

		for i, name := range axisNames {
			if i >= motion.MaxMotors {
				break
			}
			if stepper, ok := p.steppers[name]; ok {
				stepper.AddSteps(int64(math.Round(steps[i])))
			}
		}

		p.currentPos = move.End
		p.executing = true
		return motion.MoveOK, nil
	}

	p.executing = false
	return motion.MoveNoop, nil
}

// GetCurrentPosition returns the current position
func (p *Planner) GetCurrentPosition() types.Position {
	return p.currentPos
}

// SetPosition sets the current position
func (p *Planner) SetPosition(pos types.Position) {
	p.currentPos = pos

	positions, err := p.kinematics.CalcPosition(pos)
	if err != nil {
		return
	}

	axisNames := p.kinematics.GetAxisNames()
	for i, name := range axisNames {
		if i >= len(positions) {
			break
		}

		stepper, ok := p.steppers[name]
		if !ok {
			continue
		}

		stepper.SetPosition(positions[i])
	}
}

// ClearQueue clears the move queue. A segment already handed to
// motion.Core keeps running to completion: the Run block is only ever
// safely touched by the Loader between segments, so there is no clean way
// to tear it down mid-flight from here.
func (p *Planner) ClearQueue() {
	p.moveQueue = p.moveQueue[:0]
	p.queueSize = 0
	p.executing = false
}

// IsIdle returns true if no moves are queued, staged, or executing
func (p *Planner) IsIdle() bool {
	if p.motionCore != nil && p.motionCore.IsBusy() {
		return false
	}
	return !p.executing && p.queueSize == 0
}

// WaitIdle blocks until all moves are complete
func (p *Planner) WaitIdle() error {
	// In embedded context, we can't block
	// Caller should check IsIdle() periodically
	return errors.New("WaitIdle not supported in embedded mode")
}

// Helper functions

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func sqrt(x float64) float64 {
	if x <= 0 {
		return 0
	}
	// Newton's method
	z := x
	for i := 0; i < 10; i++ {
		z = z - (z*z-x)/(2*z)
	}
	return z
}

func secondsToTicks(seconds float64) uint32 {
	return uint32(seconds * float64(core.TimerFreq))
}
