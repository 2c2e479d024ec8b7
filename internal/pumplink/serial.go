package pumplink

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goburrow/serial"
)

// SerialConfig describes the pump's RS-232 port.
type SerialConfig struct {
	Port     string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
	Timeout  time.Duration
}

// DefaultSerialConfig is 9600 8N1 with a one second read timeout.
func DefaultSerialConfig(port string) SerialConfig {
	return SerialConfig{
		Port:     port,
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  time.Second,
	}
}

// OpenSerial opens the configured port.
func OpenSerial(cfg SerialConfig) (io.ReadWriteCloser, error) {
	if strings.TrimSpace(cfg.Port) == "" {
		return nil, fmt.Errorf("serial port not configured")
	}
	port, err := serial.Open(&serial.Config{
		Address:  cfg.Port,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   strings.ToUpper(cfg.Parity),
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	return port, nil
}
