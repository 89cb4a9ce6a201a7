package scpimux

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if opts.BaudRate != 9600 {
		t.Errorf("default baud rate = %d, want 9600", opts.BaudRate)
	}
	if opts.DataBits != 8 || opts.StopBits != 1 || opts.Parity != "N" {
		t.Errorf("unexpected defaults: %+v", opts)
	}
	if opts.Terminator != "\r\n" {
		t.Errorf("default terminator = %q, want CRLF", opts.Terminator)
	}
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	cases := []PortOptions{
		{DataBits: 3},
		{StopBits: 4},
		{Parity: "M"},
	}
	for _, c := range cases {
		if _, err := c.Normalize(); err == nil {
			t.Errorf("Normalize(%+v) succeeded, want error", c)
		}
	}
}

func TestOptionsEqual(t *testing.T) {
	a := PortOptions{BaudRate: 9600, Parity: "none"}
	b := PortOptions{BaudRate: 9600, Parity: "N", DataBits: 8, StopBits: 1}
	if !a.Equal(b) {
		t.Errorf("options %+v and %+v should normalize equal", a, b)
	}
	c := PortOptions{BaudRate: 115200}
	if a.Equal(c) {
		t.Errorf("options %+v and %+v should differ", a, c)
	}
}

func TestSendAppendsTerminator(t *testing.T) {
	port := NewTestablePort()
	mux := NewMux[Porter](port, PortOptions{})

	if err := mux.Send(":sour:freq 1000"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	got := string(port.GetWrittenData())
	if got != ":sour:freq 1000\r\n" {
		t.Errorf("written data = %q", got)
	}
}

func TestSendShortWrite(t *testing.T) {
	port := NewTestablePort()
	port.ShortWrite = true
	mux := NewMux[Porter](port, PortOptions{})

	if err := mux.Send("*rst"); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Send with short write = %v, want ErrWriteFailed", err)
	}
}

func TestMonitorFansOutToSubscribers(t *testing.T) {
	port := NewTestablePort()
	port.BlockReads = true
	mux := NewMux[Porter](port, PortOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	id1, ch1 := mux.Subscribe()
	defer mux.Unsubscribe(id1)
	id2, ch2 := mux.Subscribe()
	defer mux.Unsubscribe(id2)

	port.AddReadData([]byte("0,+1.234E+00,+5.678E-01\r\n"))

	for i, ch := range []chan string{ch1, ch2} {
		select {
		case line := <-ch:
			if line != "0,+1.234E+00,+5.678E-01" {
				t.Errorf("subscriber %d got %q", i, line)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d never received line", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestQueryPairsReply(t *testing.T) {
	port := NewScriptedPort(map[string]string{
		":sour:freq?": "1.000000E+03",
	})
	mux := NewMux[Porter](port, PortOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	reply, err := mux.Query(context.Background(), ":sour:freq?")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if reply != "1.000000E+03" {
		t.Errorf("Query reply = %q", reply)
	}

	commands := port.Commands()
	if len(commands) != 1 || commands[0] != ":sour:freq?" {
		t.Errorf("write log = %v", commands)
	}
}

func TestQueryTimeout(t *testing.T) {
	port := NewScriptedPort(nil) // no replies scripted
	mux := NewMux[Porter](port, PortOptions{})
	mux.SetQueryTimeout(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	_, err := mux.Query(context.Background(), "*idn?")
	if !errors.Is(err, ErrQueryTimeout) {
		t.Errorf("Query = %v, want ErrQueryTimeout", err)
	}
}

func TestQueryContextCancel(t *testing.T) {
	port := NewScriptedPort(nil)
	mux := NewMux[Porter](port, PortOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := mux.Query(ctx, "*idn?"); !errors.Is(err, context.Canceled) {
		t.Errorf("Query with canceled context = %v", err)
	}
}

func TestCloseUnsubscribesAll(t *testing.T) {
	port := NewTestablePort()
	mux := NewMux[Porter](port, PortOptions{})

	_, ch := mux.Subscribe()
	if err := mux.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel still open after Close")
	}
	if !port.Closed {
		t.Error("underlying port not closed")
	}
}

func TestMonitorReturnsOnEOF(t *testing.T) {
	port := NewTestablePort()
	port.AddReadData([]byte("line one\r\nline two\r\n"))
	mux := NewMux[Porter](port, PortOptions{})

	// Close the port so the scanner's next Read fails once the buffered
	// lines drain; Monitor must surface that error.
	port.Closed = true
	err := mux.Monitor(context.Background())
	if err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("Monitor error = %v, want port closed error", err)
	}
}
