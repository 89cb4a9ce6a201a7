// Package scpimux provides an abstraction over the serial link to a SCPI
// instrument with the ability for multiple clients to subscribe to reply
// lines and to issue serialized query/response exchanges against a single
// device.
package scpimux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWriteFailed  = errors.New("failed to write to instrument port")
	ErrQueryTimeout = errors.New("timed out waiting for instrument reply")
)

// DefaultQueryTimeout bounds how long Query waits for a reply line when the
// caller's context carries no earlier deadline.
const DefaultQueryTimeout = 5 * time.Second

// Mux multiplexes a single instrument port between subscribers that tail
// reply lines and callers issuing commands. Query exchanges are serialized
// so a reply is always paired with the command that provoked it.
type Mux[T Porter] struct {
	port         T
	term         string
	queryTimeout time.Duration

	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// MuxInterface defines the interface for the Mux type.
type MuxInterface interface {
	// Subscribe creates a new channel for receiving reply lines from the
	// instrument. The returned ID identifies the channel when unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// Send writes the provided command to the instrument port.
	Send(string) error
	// Query sends a command and waits for the next reply line.
	Query(context.Context, string) (string, error)
	// Monitor reads lines from the port and fans them out to subscribers.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the port.
	Close() error
}

// NewMux creates a Mux over an already opened port using the given options.
func NewMux[T Porter](port T, opts PortOptions) *Mux[T] {
	normalized, err := opts.Normalize()
	if err != nil {
		// Invalid options only affect the terminator here; fall back to CRLF.
		normalized = PortOptions{Terminator: "\r\n"}
	}
	return &Mux[T]{
		port:         port,
		term:         normalized.Terminator,
		queryTimeout: DefaultQueryTimeout,
		subscribers:  make(map[string]chan string),
	}
}

// SetQueryTimeout overrides the default reply timeout used by Query.
func (m *Mux[T]) SetQueryTimeout(d time.Duration) {
	if d > 0 {
		m.queryTimeout = d
	}
}

func (m *Mux[T]) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, 1)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the mux.
func (m *Mux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Send writes a command to the instrument port, appending the line
// terminator if missing.
func (m *Mux[T]) Send(command string) error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	return m.send(command)
}

// send writes without taking the command mutex; callers must hold it.
func (m *Mux[T]) send(command string) error {
	if !strings.HasSuffix(command, m.term) {
		command += m.term
	}
	n, err := m.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Query sends a command and returns the next line the instrument produces.
// The exchange is serialized against other senders so replies cannot be
// attributed to the wrong command. Monitor must be running for replies to
// be delivered.
func (m *Mux[T]) Query(ctx context.Context, command string) (string, error) {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()

	// Subscribe before writing so the reply cannot slip past us.
	id, ch := m.Subscribe()
	defer m.Unsubscribe(id)

	if err := m.send(command); err != nil {
		return "", fmt.Errorf("query %q: %w", command, err)
	}

	timer := time.NewTimer(m.queryTimeout)
	defer timer.Stop()

	select {
	case line, ok := <-ch:
		if !ok {
			return "", fmt.Errorf("query %q: port closed", command)
		}
		return line, nil
	case <-timer.C:
		return "", fmt.Errorf("query %q: %w", command, ErrQueryTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Monitor reads reply lines from the instrument port and delivers them to
// subscribers until the context is canceled or the port fails.
func (m *Mux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs in its own goroutine so it cannot
	// interfere with the outer loop awaiting lines and cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}

			m.closingMu.Lock()
			if m.closing {
				m.closingMu.Unlock()
				return nil
			}
			m.closingMu.Unlock()

			m.subscriberMu.Lock()
			for _, ch := range m.subscribers {
				select {
				case ch <- line:
				default:
					// Skip full channels so a stalled subscriber cannot
					// block the read loop.
				}
			}
			m.subscriberMu.Unlock()
		}
	}
}

func (m *Mux[T]) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return m.port.Close()
}
