package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerRedirects(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})

	Logf("connected to %s", "zm2376")
	if got != "connected to zm2376" {
		t.Errorf("logged %q", got)
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	SetLogger(nil)

	Logf("dropped")
	if called {
		t.Error("nil logger should drop messages, not forward them")
	}
}

func TestDefaultLoggerUsable(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf must be callable without SetLogger")
	}
	Logf("default logger message: %d", 1)
}
