package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// ModbusProbe reads a signed tenths-of-degree holding register over
// Modbus TCP.
type ModbusProbe struct {
	mu       sync.Mutex
	handler  *modbus.TCPClientHandler
	client   modbus.Client
	register uint16
}

var _ TemperatureProbe = (*ModbusProbe)(nil)

func NewModbusProbe(address string, slaveID byte, register uint16, timeout time.Duration) *ModbusProbe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	h := modbus.NewTCPClientHandler(address)
	h.Timeout = timeout
	h.SlaveId = slaveID
	return &ModbusProbe{handler: h, client: modbus.NewClient(h), register: register}
}

func (p *ModbusProbe) ReadTemperature(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.client.ReadHoldingRegisters(p.register, 1)
	if err != nil {
		return 0, fmt.Errorf("read register %d: %w", p.register, err)
	}
	if len(data) < 2 {
		return 0, fmt.Errorf("read register %d: short response (%d bytes)", p.register, len(data))
	}
	return float64(int16(binary.BigEndian.Uint16(data))) / 10, nil
}

func (p *ModbusProbe) Close() error {
	if p.handler == nil {
		return nil
	}
	return p.handler.Close()
}
