package instrument

import (
	"context"
	"strings"
	"testing"
)

func TestFloatParamGetSet(t *testing.T) {
	session := NewScriptSession(map[string]string{
		":sour:freq?": "1.000000E+03",
	})
	inst := New("zm", session)
	freq := NewFloat(inst, "frequency", "Frequency", "Hz", ":sour:freq?", ":sour:freq %s")

	v, err := freq.Get(context.Background())
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if v != 1000 {
		t.Errorf("Get = %v, want 1000", v)
	}

	if err := freq.Set(context.Background(), 250.5); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	commands := session.Commands()
	last := commands[len(commands)-1]
	if last != ":sour:freq 250.5" {
		t.Errorf("set command = %q", last)
	}
}

func TestFloatParamFullName(t *testing.T) {
	inst := New("zm", NewScriptSession(nil))
	p := NewFloat(inst, "dc_bias", "DC Bias", "V", ":sour:volt:offs?", ":sour:volt:offs %s")
	if p.FullName() != "zm_dc_bias" {
		t.Errorf("FullName = %q", p.FullName())
	}
}

func TestBoolParamEncoding(t *testing.T) {
	session := NewScriptSession(map[string]string{":corr:open?": "0"})
	inst := New("zm", session)
	state := NewBool(inst, "open_correction_state", "Open Correction State", ":corr:open?", ":corr:open %s")

	v, err := state.Get(context.Background())
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if v {
		t.Error("reply 0 parsed as on")
	}

	session.Reply(":corr:open?", "1")
	v, err = state.Get(context.Background())
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !v {
		t.Error("reply 1 parsed as off")
	}

	if err := state.Set(context.Background(), true); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	commands := session.Commands()
	if commands[len(commands)-1] != ":corr:open 1" {
		t.Errorf("set command = %q", commands[len(commands)-1])
	}
}

func TestIntParamAcceptsExponentForm(t *testing.T) {
	session := NewScriptSession(map[string]string{"swe:poin?": "2.01000E+02"})
	inst := New("znle", session)
	points := NewInt(inst, "sweep_points", "Number of Points in a Sweep", "", "swe:poin?", "swe:poin %s")

	v, err := points.Get(context.Background())
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if v != 201 {
		t.Errorf("Get = %d, want 201", v)
	}
}

func TestUnreadableParam(t *testing.T) {
	inst := New("zm", NewScriptSession(nil))
	p := NewFloat(inst, "write_only", "Write Only", "", "", ":cmd %s")
	if _, err := p.Get(context.Background()); err == nil || !strings.Contains(err.Error(), "not readable") {
		t.Errorf("Get on write-only param = %v", err)
	}
}

func TestConnectRecordsIdentity(t *testing.T) {
	session := NewScriptSession(map[string]string{
		"*IDN?": "NF Corporation,ZM2376,1234567,1.00",
	})
	inst := New("zm", session)
	if err := inst.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if inst.Identity() != "NF Corporation,ZM2376,1234567,1.00" {
		t.Errorf("Identity = %q", inst.Identity())
	}
}
