package standalone

import (
	"gopper/core"
	"testing"
)

// mockGPIODriver is a minimal in-memory core.GPIODriver for exercising
// Manager.Initialize without real hardware.
type mockGPIODriver struct {
	values map[core.GPIOPin]bool
}

func newMockGPIODriver() *mockGPIODriver {
	return &mockGPIODriver{values: make(map[core.GPIOPin]bool)}
}

func (m *mockGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	m.values[pin] = false
	return nil
}
func (m *mockGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error   { return nil }
func (m *mockGPIODriver) ConfigureInputPullDown(pin core.GPIOPin) error { return nil }
func (m *mockGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	m.values[pin] = value
	return nil
}
func (m *mockGPIODriver) GetPin(pin core.GPIOPin) (bool, error) { return m.values[pin], nil }
func (m *mockGPIODriver) ReadPin(pin core.GPIOPin) bool         { return m.values[pin] }

func testMachineConfig() *MachineConfig {
	return &MachineConfig{
		Mode:       "standalone",
		Kinematics: "cartesian",
		Axes: map[string]AxisConfig{
			"x": {StepPin: "gpio0", DirPin: "gpio1", StepsPerMM: 80, MaxVelocity: 300, MaxAccel: 3000, MinPosition: 0, MaxPosition: 220},
			"y": {StepPin: "gpio2", DirPin: "gpio3", StepsPerMM: 80, MaxVelocity: 300, MaxAccel: 3000, MinPosition: 0, MaxPosition: 220},
			"z": {StepPin: "gpio4", DirPin: "gpio5", StepsPerMM: 400, MaxVelocity: 10, MaxAccel: 100, MinPosition: 0, MaxPosition: 250},
		},
		Motion: MotionCoreConfig{
			FDDA:               200000,
			FDwell:             100000,
			Substeps:           1024,
			CounterResetFactor: 2,
		},
		DefaultVelocity: 50,
		DefaultAccel:    500,
	}
}

func TestManagerInitialize(t *testing.T) {
	mgr, err := NewManagerWithConfig(testMachineConfig())
	if err != nil {
		t.Fatalf("NewManagerWithConfig: %v", err)
	}
	if err := mgr.Initialize(newMockGPIODriver()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if mgr.motionCore == nil {
		t.Fatal("expected a motion.Core to be wired after Initialize")
	}
	if mgr.motionCore.IsBusy() {
		t.Error("a freshly initialized core should be idle")
	}
}

func TestProcessLineQueuesAndStagesAMove(t *testing.T) {
	mgr, err := NewManagerWithConfig(testMachineConfig())
	if err != nil {
		t.Fatalf("NewManagerWithConfig: %v", err)
	}
	if err := mgr.Initialize(newMockGPIODriver()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if err := mgr.ProcessLine("G1 X10 F3000"); err != nil {
		t.Fatalf("ProcessLine: %v", err)
	}

	if !mgr.motionCore.IsBusy() {
		t.Error("expected the motion core to be running a segment after a G1 move")
	}
}

func TestStopDisablesMotionCore(t *testing.T) {
	cfg := testMachineConfig()
	x := cfg.Axes["x"]
	x.EnablePin = "gpio8"
	cfg.Axes["x"] = x
	mgr, err := NewManagerWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewManagerWithConfig: %v", err)
	}
	driver := newMockGPIODriver()
	if err := mgr.Initialize(driver); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := mgr.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mgr.Stop()

	if mgr.IsRunning() {
		t.Error("expected IsRunning() false after Stop")
	}
	if !driver.values[8] {
		t.Error("expected Stop to disable the motion core, setting the x motor's enable pin")
	}
}
