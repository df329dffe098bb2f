package device

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/amimof/huego"

	"smart_aquarium/internal/models"
)

type hueBridge interface {
	SetLightStateContext(ctx context.Context, id int, s huego.State) (*huego.Response, error)
}

// HueMirror drives one Hue light from the aquarium light record.
type HueMirror struct {
	bridge  hueBridge
	lightID int
}

var _ LightMirror = (*HueMirror)(nil)

func NewHueMirror(host, user string, lightID int) *HueMirror {
	return &HueMirror{bridge: huego.New(host, user), lightID: lightID}
}

func (h *HueMirror) Apply(ctx context.Context, l models.LightState) error {
	if _, err := h.bridge.SetLightStateContext(ctx, h.lightID, hueState(l)); err != nil {
		return fmt.Errorf("hue light %d: %w", h.lightID, err)
	}
	return nil
}

// hueState maps the light record onto a Hue state. Brightness 0..100 maps
// onto 1..254 and the color onto CIE xy.
func hueState(l models.LightState) huego.State {
	s := huego.State{On: l.Status == models.PowerOn}
	if !s.On {
		return s
	}
	bri := math.Round(float64(l.BrightnessPercent) * 254 / 100)
	s.Bri = uint8(math.Max(1, math.Min(254, bri)))
	if xy, ok := hexToXY(l.Color); ok {
		s.Xy = xy
	}
	return s
}

// hexToXY converts #RRGGBB to CIE 1931 xy using the wide gamut D65 matrix.
func hexToXY(hex string) ([]float32, bool) {
	if len(hex) != 7 || hex[0] != '#' {
		return nil, false
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return nil, false
	}
	lin := func(c uint64) float64 {
		f := float64(c) / 255
		if f > 0.04045 {
			return math.Pow((f+0.055)/1.055, 2.4)
		}
		return f / 12.92
	}
	r, g, b := lin(v>>16&0xff), lin(v>>8&0xff), lin(v&0xff)
	x := r*0.664511 + g*0.154324 + b*0.162028
	y := r*0.283881 + g*0.668433 + b*0.047685
	z := r*0.000088 + g*0.072310 + b*0.986039
	sum := x + y + z
	if sum == 0 {
		return []float32{0.3227, 0.329}, true
	}
	return []float32{float32(x / sum), float32(y / sum)}, true
}
