package stepgen

import (
	"fmt"
	"strconv"
	"strings"

	"gopper/core"
	"gopper/motion"
	"gopper/standalone/types"
)

// Stepper resolves a single axis's configuration onto real GPIO pins and
// exposes them to a motion.Core. It no longer generates pulses itself —
// that happens once, centrally, in motion.Core.ddaTick — but it still owns
// the axis's identity, its independent enable toggle (used outside of a
// running segment, e.g. during homing setup), and software position
// bookkeeping.
type Stepper struct {
	name   string
	config types.AxisConfig

	pins      motion.MotorPins
	motorCfg  motion.MotorConfig
	enablePin motion.Pin

	position int64 // current position, in motor substeps' underlying full steps
}

// NewStepper creates a new stepper axis controller. Call InitPins before
// wiring it into a motion.Core.
func NewStepper(name string, config types.AxisConfig) (*Stepper, error) {
	return &Stepper{
		name:      name,
		config:    config,
		pins:      motion.MotorPins{Step: motion.NullPin(), Dir: motion.NullPin(), Enable: motion.NullPin(), MS0: motion.NullPin(), MS1: motion.NullPin(), VRef: motion.NullPin()},
		enablePin: motion.NullPin(),
	}, nil
}

// InitPins resolves the axis's configured pin names against a GPIO driver
// and builds the motion.MotorPins/motion.MotorConfig pair that the owning
// motion.Core will be wired with.
func (s *Stepper) InitPins(gpioDriver core.GPIODriver) error {
	stepPin, err := s.configureOutput(gpioDriver, s.config.StepPin, "step")
	if err != nil {
		return err
	}
	dirPin, err := s.configureOutput(gpioDriver, s.config.DirPin, "dir")
	if err != nil {
		return err
	}
	s.pins.Step = stepPin
	s.pins.Dir = dirPin

	if s.config.EnablePin != "" {
		enPin, err := s.configureOutput(gpioDriver, s.config.EnablePin, "enable")
		if err != nil {
			return err
		}
		s.pins.Enable = enPin
		s.enablePin = enPin
		s.Disable()
	}
	if s.config.MS0Pin != "" {
		ms0, err := s.configureOutput(gpioDriver, s.config.MS0Pin, "ms0")
		if err != nil {
			return err
		}
		s.pins.MS0 = ms0
	}
	if s.config.MS1Pin != "" {
		ms1, err := s.configureOutput(gpioDriver, s.config.MS1Pin, "ms1")
		if err != nil {
			return err
		}
		s.pins.MS1 = ms1
	}
	if s.config.VRefPin != "" {
		vref, err := s.configureOutput(gpioDriver, s.config.VRefPin, "vref")
		if err != nil {
			return err
		}
		s.pins.VRef = vref
	}

	var polarity uint8
	if s.config.InvertDir {
		polarity = 1
	}
	powerMode := motion.PowerAlwaysOn
	if s.config.PowerMode == "hold_off" {
		powerMode = motion.PowerHoldOff
	}
	s.motorCfg = motion.MotorConfig{Polarity: polarity, PowerMode: powerMode}

	return nil
}

func (s *Stepper) configureOutput(gpioDriver core.GPIODriver, name, role string) (motion.Pin, error) {
	pin, err := lookupPin(name)
	if err != nil {
		return nil, fmt.Errorf("stepper %q %s pin: %w", s.name, role, err)
	}
	if err := gpioDriver.ConfigureOutput(pin); err != nil {
		return nil, fmt.Errorf("stepper %q %s pin: %w", s.name, role, err)
	}
	return motion.NewHALPin(gpioDriver, pin), nil
}

// lookupPin parses the "gpioN" pin names used throughout this module's
// standalone configs (see DefaultCartesianConfig) into a raw
// core.GPIOPin. There is no dictionary reverse-lookup on the MCU side —
// that machinery exists only to describe the pin space to a Klipper host —
// so standalone mode resolves its own pin names directly.
func lookupPin(name string) (core.GPIOPin, error) {
	if !strings.HasPrefix(name, "gpio") {
		return 0, fmt.Errorf("unrecognized pin name %q", name)
	}
	n, err := strconv.Atoi(name[len("gpio"):])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("unrecognized pin name %q", name)
	}
	return core.GPIOPin(n), nil
}

// MotorPins returns the pins this axis resolved, ready to hand to
// motion.Core.SetMotor.
func (s *Stepper) MotorPins() motion.MotorPins { return s.pins }

// MotorConfig returns the polarity/power-mode configuration this axis
// resolved, ready to hand to motion.Core.SetMotor.
func (s *Stepper) MotorConfig() motion.MotorConfig { return s.motorCfg }

// Enable energizes this axis's own enable pin, independent of any segment
// currently running on the shared motion.Core.
func (s *Stepper) Enable() {
	if s.config.InvertEnable {
		s.enablePin.Clear()
	} else {
		s.enablePin.Set()
	}
}

// Disable de-energizes this axis's own enable pin.
func (s *Stepper) Disable() {
	if s.config.InvertEnable {
		s.enablePin.Set()
	} else {
		s.enablePin.Clear()
	}
}

// AddSteps advances this axis's software position counter by a commanded
// step delta (positive or negative). Position is tracked from commanded
// moves, not from observed pulses: by the time a segment is handed to the
// Loader its step counts are already final, so there is nothing gained by
// waiting for ddaTick to actually emit them.
func (s *Stepper) AddSteps(delta int64) {
	s.position += delta
}

// GetPosition returns the current position in millimeters.
func (s *Stepper) GetPosition() float64 {
	return float64(s.position) / s.config.StepsPerMM
}

// SetPosition sets the current position (for homing, etc.), in millimeters.
func (s *Stepper) SetPosition(posMM float64) {
	s.position = int64(posMM * s.config.StepsPerMM)
}

// StepsPerMM exposes the axis's configured scale factor, needed by the
// planner to convert a millimeter delta into a step count for PrepLine.
func (s *Stepper) StepsPerMM() float64 { return s.config.StepsPerMM }
