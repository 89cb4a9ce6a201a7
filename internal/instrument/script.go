package instrument

import (
	"context"
	"fmt"
	"sync"
)

// ScriptSession implements Session from a table of canned replies without
// any transport underneath. It backs driver unit tests and the dev mode of
// the commands.
type ScriptSession struct {
	mu sync.Mutex

	// Replies maps commands to reply lines.
	Replies map[string]string

	// Sent records every command passed to Query or Send.
	Sent []string
}

// NewScriptSession creates a ScriptSession with the given reply table.
func NewScriptSession(replies map[string]string) *ScriptSession {
	return &ScriptSession{Replies: replies}
}

func (s *ScriptSession) Query(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, command)
	reply, ok := s.Replies[command]
	if !ok {
		return "", fmt.Errorf("no scripted reply for %q", command)
	}
	return reply, nil
}

func (s *ScriptSession) Send(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, command)
	return nil
}

// Commands returns a copy of the commands seen so far.
func (s *ScriptSession) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Sent))
	copy(out, s.Sent)
	return out
}

// Reply updates the scripted reply for a command.
func (s *ScriptSession) Reply(command, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Replies == nil {
		s.Replies = make(map[string]string)
	}
	s.Replies[command] = reply
}

// Func adapts plain functions into a Measurable and Settable. Sweep tests
// and dev mode use it in place of real instrument parameters.
type Func struct {
	Name      string
	MeasureFn func(ctx context.Context) (float64, error)
	SetFn     func(ctx context.Context, v float64) error
}

func (f *Func) FullName() string { return f.Name }

func (f *Func) Measure(ctx context.Context) (float64, error) {
	if f.MeasureFn == nil {
		return 0, fmt.Errorf("%s: not measurable", f.Name)
	}
	return f.MeasureFn(ctx)
}

func (f *Func) SetValue(ctx context.Context, v float64) error {
	if f.SetFn == nil {
		return fmt.Errorf("%s: not settable", f.Name)
	}
	return f.SetFn(ctx, v)
}
