package main

import (
	"path/filepath"
	"testing"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/demoreplay/pkg/robot"
	"github.com/gwillem/demoreplay/pkg/trajectory"
)

func TestPlanOptions(t *testing.T) {
	r := robot.DefaultReplayConfig()
	o := planOptions(r)
	if len(o.Resample.Tol) != 1 || o.Resample.Tol[0] != r.Tol {
		t.Errorf("Tol = %v, want [%v]", o.Resample.Tol, r.Tol)
	}
	if len(o.Resample.MaxChange) != 1 || o.Resample.MaxChange[0] != r.MaxChange {
		t.Errorf("MaxChange = %v, want [%v]", o.Resample.MaxChange, r.MaxChange)
	}
	if o.Gripper != r.Gripper() {
		t.Errorf("Gripper = %+v, want %+v", o.Gripper, r.Gripper())
	}

	r.MaxChange = 0
	if o := planOptions(r); o.Resample.MaxChange != nil {
		t.Errorf("MaxChange = %v, want unbounded", o.Resample.MaxChange)
	}
}

func TestPlanFlags_Apply(t *testing.T) {
	base := robot.DefaultReplayConfig()

	if got := (PlanFlags{}).apply(base); got != base {
		t.Errorf("empty flags changed settings: %+v", got)
	}

	got := PlanFlags{Tol: 0.01, MaxChange: 0.2, MinSteps: 5}.apply(base)
	if got.Tol != 0.01 || got.MaxChange != 0.2 || got.MinSteps != 5 {
		t.Errorf("apply = %+v", got)
	}
	if got.Hz != base.Hz {
		t.Errorf("Hz = %d, want %d", got.Hz, base.Hz)
	}
}

func TestArmSlots(t *testing.T) {
	cfg := &robot.Config{}
	slots := armSlots(cfg)
	if len(slots) != 4 {
		t.Fatalf("len(slots) = %d, want 4", len(slots))
	}
	slots[3].arm.Port = "/dev/ttyACM3"
	if cfg.Right.Follower.Port != "/dev/ttyACM3" {
		t.Error("slot does not point into config")
	}

	want := []string{"left_leader.json", "left_follower.json", "right_leader.json", "right_follower.json"}
	for i, slot := range slots {
		if got := slot.file(); got != want[i] {
			t.Errorf("file() = %q, want %q", got, want[i])
		}
	}
	if got := capitalize("left leader"); got != "Left leader" {
		t.Errorf("capitalize = %q", got)
	}
}

func TestMotorRange(t *testing.T) {
	var r motorRange
	for _, pos := range []int{2000, 1500, 2600, 2100} {
		r.observe(pos)
	}
	if r.min != 1500 || r.max != 2600 || r.cur != 2100 {
		t.Errorf("range = %+v", r)
	}
	if r.span() != 1100 {
		t.Errorf("span = %d, want 1100", r.span())
	}
}

func TestIsSOArm(t *testing.T) {
	servos := make([]feetech.FoundServo, 6)
	for i := range servos {
		servos[i].ID = i + 1
	}
	if !isSOArm(servos) {
		t.Error("IDs 1-6 not recognized")
	}
	servos[5].ID = 7
	if isSOArm(servos) {
		t.Error("ID 7 accepted")
	}
	if isSOArm(servos[:5]) {
		t.Error("5 servos accepted")
	}
}

func TestLoadRecording_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wave.json")
	rec := &trajectory.Recording{Name: "wave", Hz: 30}
	rec.Append([]float64{0, 1}, []float64{2, 3}, 0, 0.08)
	if err := rec.Save(path); err != nil {
		t.Fatal(err)
	}

	got, err := loadRecording(path)
	if err != nil {
		t.Fatalf("loadRecording: %v", err)
	}
	if got.Name != "wave" || got.Len() != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestReplayConfig_Defaults(t *testing.T) {
	opts.Config = filepath.Join(t.TempDir(), "missing.json")
	defer func() { opts.Config = "" }()

	if got := replayConfig(); got != robot.DefaultReplayConfig() {
		t.Errorf("replayConfig = %+v", got)
	}
	if _, err := loadConfig(); err == nil {
		t.Error("loadConfig with missing file: want error")
	}
}
