package transport

import (
	"sync"

	"go.bug.st/serial"
)

// Serial opens a modem attached to a local serial/USB device using
// go.bug.st/serial. It never blocks past ReadTimeout: the port's own read
// timeout is set to match, so Read only returns whatever bytes the OS driver
// has already buffered.
type Serial struct {
	// PortName is the OS device path (e.g. "/dev/ttyUSB0", "COM3").
	PortName string
	// BaudRate defaults to 115200 if zero.
	BaudRate int

	mu   sync.Mutex
	port serial.Port
}

// NewSerial creates a Serial transport for the named device.
func NewSerial(portName string, baudRate int) *Serial {
	if baudRate <= 0 {
		baudRate = 115200
	}
	return &Serial{PortName: portName, BaudRate: baudRate}
}

// Open opens the device and arms the soft read timeout.
func (s *Serial) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	mode := &serial.Mode{BaudRate: s.BaudRate}
	port, err := serial.Open(s.PortName, mode)
	if err != nil {
		return false
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		_ = port.Close()
		return false
	}
	s.port = port
	return true
}

// Close releases the serial port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Write sends p to the modem.
func (s *Serial) Write(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, ErrNotConnected
	}
	return port.Write(p)
}

// Read returns whatever bytes the driver buffer holds, up to max, waiting no
// longer than ReadTimeout. go.bug.st/serial returns n==0, err==nil on its own
// read-timeout expiry, which already matches the soft-timeout contract.
func (s *Serial) Read(max int) ([]byte, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return nil, ErrNotConnected
	}
	buf := make([]byte, max)
	n, err := port.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
