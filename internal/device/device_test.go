package device

import (
	"context"
	"errors"
	"testing"

	"github.com/amimof/huego"
	"github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_aquarium/internal/models"
)

type fakeBridge struct {
	id    int
	state huego.State
	err   error
}

func (f *fakeBridge) SetLightStateContext(_ context.Context, id int, s huego.State) (*huego.Response, error) {
	f.id, f.state = id, s
	return &huego.Response{}, f.err
}

func TestHueMirror_Apply(t *testing.T) {
	fb := &fakeBridge{}
	h := &HueMirror{bridge: fb, lightID: 3}

	err := h.Apply(context.Background(), models.LightState{Status: models.PowerOn, BrightnessPercent: 100, Color: "#FF0000"})
	require.NoError(t, err)
	assert.Equal(t, 3, fb.id)
	assert.True(t, fb.state.On)
	assert.Equal(t, uint8(254), fb.state.Bri)
	require.Len(t, fb.state.Xy, 2)
	assert.InDelta(t, 0.70, fb.state.Xy[0], 0.02)

	require.NoError(t, h.Apply(context.Background(), models.LightState{Status: models.PowerOff, BrightnessPercent: 80}))
	assert.False(t, fb.state.On)
	assert.Zero(t, fb.state.Bri)

	fb.err = errors.New("bridge unreachable")
	assert.ErrorContains(t, h.Apply(context.Background(), models.LightState{}), "hue light 3")
}

func TestHueState_MinimumBrightness(t *testing.T) {
	s := hueState(models.LightState{Status: models.PowerOn, BrightnessPercent: 0, Color: "bogus"})
	assert.Equal(t, uint8(1), s.Bri)
	assert.Nil(t, s.Xy)
}

type fakeModbus struct {
	modbus.Client
	data []byte
	err  error
	addr uint16
}

func (f *fakeModbus) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	f.addr = address
	return f.data, f.err
}

func TestModbusProbe_ReadTemperature(t *testing.T) {
	fm := &fakeModbus{data: []byte{0x00, 0xFF}}
	p := &ModbusProbe{client: fm, register: 7}

	got, err := p.ReadTemperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 25.5, got, 1e-9)
	assert.Equal(t, uint16(7), fm.addr)

	fm.data = []byte{0xFF, 0xF6}
	got, err = p.ReadTemperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -1.0, got, 1e-9)

	fm.data = []byte{0x01}
	_, err = p.ReadTemperature(context.Background())
	assert.ErrorContains(t, err, "short response")

	fm.err = errors.New("timeout")
	_, err = p.ReadTemperature(context.Background())
	assert.ErrorContains(t, err, "timeout")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.ReadTemperature(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, p.Close())
}
