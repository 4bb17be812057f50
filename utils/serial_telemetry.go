package utils

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"sync"
	"time"

	"go.bug.st/serial"
)

// TelemetryLine is the per-cycle debug tuple streamed over the serial link:
// centering error, proportional term, derivative term, tracked wall distance.
type TelemetryLine struct {
	Error        float64
	Proportional float64
	Derivative   float64
	Distance     float64
}

func (l TelemetryLine) String() string {
	return fmt.Sprintf("%.3f %.3f %.3f %.3f", l.Error, l.Proportional, l.Derivative, l.Distance)
}

// SerialTelemetry writes one TelemetryLine per call to a serial port.
type SerialTelemetry struct {
	mu   sync.Mutex
	port io.WriteCloser
	sent uint64
}

// OpenSerialTelemetry opens portName at baud (8N1).
func OpenSerialTelemetry(portName string, baud int) (*SerialTelemetry, error) {
	port, err := OpenSerialPort(portName, baud)
	if err != nil {
		return nil, err
	}
	return NewSerialTelemetry(port), nil
}

// NewSerialTelemetry wraps an already open writer.
func NewSerialTelemetry(w io.WriteCloser) *SerialTelemetry {
	return &SerialTelemetry{port: w}
}

func (t *SerialTelemetry) Send(line TelemetryLine) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.port, line.String()+"\n"); err != nil {
		return fmt.Errorf("telemetry write: %w", err)
	}
	t.sent++
	return nil
}

func (t *SerialTelemetry) Sent() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

func (t *SerialTelemetry) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port.Close()
}

// OpenSerialPort opens a serial device with 8 data bits, no parity, one stop bit.
func OpenSerialPort(portName string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", portName, err)
	}
	return port, nil
}

// OpenSerialReader opens a port for reading with a bounded read timeout so a
// silent device does not block the reader forever.
func OpenSerialReader(portName string, baud int, timeout time.Duration) (serial.Port, error) {
	port, err := OpenSerialPort(portName, baud)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		if err := port.SetReadTimeout(timeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	return port, nil
}

var numberRE = regexp.MustCompile(`[-+]?\d*\.?\d+(?:[eE][-+]?\d+)?`)

// ParseNumbers extracts the first want numbers from a free-form serial line. It
// returns nil when the line holds fewer than want numbers.
func ParseNumbers(line string, want int) []float64 {
	matches := numberRE.FindAllString(line, want)
	if len(matches) < want {
		return nil
	}
	out := make([]float64, 0, want)
	for _, m := range matches {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}
