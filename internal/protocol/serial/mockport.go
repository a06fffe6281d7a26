// internal/protocol/serial/mockport.go
package serial

import (
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// MockPort simulates a serial device. Bytes queued with Feed are returned by
// Read; writes are recorded and optionally echoed back.
type MockPort struct {
	mu      sync.Mutex
	rx      chan []byte
	pending []byte
	written []byte
	mode    serial.Mode
	timeout time.Duration
	closed  chan struct{}
	once    sync.Once
	readErr error
	echo    bool
}

// NewMockPort creates an open mock port
func NewMockPort(echo bool) *MockPort {
	return &MockPort{
		rx:      make(chan []byte, 64),
		closed:  make(chan struct{}),
		timeout: serial.NoTimeout,
		echo:    echo,
	}
}

// MockOpener returns an Opener that hands out port for any name
func MockOpener(port *MockPort) Opener {
	return func(_ string, mode *serial.Mode) (Port, error) {
		port.mu.Lock()
		port.mode = *mode
		port.mu.Unlock()
		return port, nil
	}
}

// Feed queues data for Read
func (m *MockPort) Feed(data []byte) {
	select {
	case m.rx <- append([]byte(nil), data...):
	case <-m.closed:
	}
}

// Fail makes the next Read return err, as a vanished device would
func (m *MockPort) Fail(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
	m.Feed(nil)
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	if len(m.pending) > 0 {
		n := copy(p, m.pending)
		m.pending = m.pending[n:]
		m.mu.Unlock()
		return n, nil
	}
	timeout := m.timeout
	m.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case data := <-m.rx:
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.readErr != nil {
			return 0, m.readErr
		}
		n := copy(p, data)
		m.pending = append(m.pending, data[n:]...)
		return n, nil
	case <-m.closed:
		return 0, io.EOF
	case <-expired:
		return 0, nil
	}
}

func (m *MockPort) Write(p []byte) (int, error) {
	select {
	case <-m.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	m.mu.Lock()
	m.written = append(m.written, p...)
	echo := m.echo
	m.mu.Unlock()
	if echo {
		m.Feed(p)
	}
	return len(p), nil
}

// Written returns everything written so far
func (m *MockPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

// Mode returns the last mode applied to the port
func (m *MockPort) Mode() serial.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *MockPort) SetMode(mode *serial.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = *mode
	return nil
}

func (m *MockPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = t
	return nil
}

func (m *MockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	return nil
}

func (m *MockPort) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}
