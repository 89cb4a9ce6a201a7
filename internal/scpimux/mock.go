package scpimux

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"
)

// ScriptedPort implements Porter with a table of canned replies keyed by
// command. Writing a command that matches a script entry queues the reply
// for subsequent reads. It stands in for a real instrument in tests and in
// the dev mode of the commands.
type ScriptedPort struct {
	mu sync.Mutex

	// Replies maps a command (without terminator) to the reply line that
	// should be produced when the command is written.
	Replies map[string]string

	// Terminator is appended to queued replies. Defaults to CRLF.
	Terminator string

	// WriteLog records every command written, without terminators.
	WriteLog []string

	// WriteError is returned by the next Write call if set.
	WriteError error

	pending bytes.Buffer
	closed  bool
	cond    *sync.Cond
}

// NewScriptedPort creates a ScriptedPort with the given reply table.
func NewScriptedPort(replies map[string]string) *ScriptedPort {
	p := &ScriptedPort{
		Replies:    replies,
		Terminator: "\r\n",
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Read blocks until reply data is available or the port is closed.
func (p *ScriptedPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && p.pending.Len() == 0 {
		p.cond.Wait()
	}
	if p.closed && p.pending.Len() == 0 {
		return 0, errors.New("port closed")
	}
	return p.pending.Read(buf)
}

// Write records the command and queues its scripted reply, if any.
func (p *ScriptedPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}

	command := strings.TrimRight(string(data), "\r\n")
	p.WriteLog = append(p.WriteLog, command)
	if reply, ok := p.Replies[command]; ok {
		p.pending.WriteString(reply + p.Terminator)
		p.cond.Broadcast()
	}
	return len(data), nil
}

// Inject queues a line as if the instrument produced it unprompted.
func (p *ScriptedPort) Inject(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending.WriteString(line + p.Terminator)
	p.cond.Broadcast()
}

// Close marks the port closed and wakes blocked readers.
func (p *ScriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}

// Commands returns a copy of the write log.
func (p *ScriptedPort) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.WriteLog))
	copy(out, p.WriteLog)
	return out
}

// TestablePort implements Porter with fine-grained control over reads,
// writes, errors, and latency for exercising Mux edge cases.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls.
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port.
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set.
	ReadError error

	// WriteError is returned by the next Write call if set.
	WriteError error

	// CloseError is returned by Close if set.
	CloseError error

	// ShortWrite makes Write report one byte fewer than written.
	ShortWrite bool

	// Closed indicates whether Close was called.
	Closed bool

	// BlockReads causes Read to block until data is added or Close is called.
	BlockReads bool

	readCond *sync.Cond
}

// NewTestablePort creates a TestablePort with empty buffers.
func NewTestablePort() *TestablePort {
	tp := &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tp.readCond = sync.NewCond(&tp.mu)
	return tp
}

func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("port closed")
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	if t.BlockReads && t.ReadBuffer.Len() == 0 {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, errors.New("port closed")
		}
	}
	return t.ReadBuffer.Read(p)
}

func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	n, err := t.WriteBuffer.Write(p)
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, err
}

func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// SetReadTimeout implements TimeoutPorter.
func (t *TestablePort) SetReadTimeout(timeout time.Duration) error {
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Write(data)
	t.readCond.Signal()
}

// GetWrittenData returns all data written to the port.
func (t *TestablePort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteBuffer.Bytes()
}
