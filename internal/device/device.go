// Package device holds optional hardware adapters driven by the aquarium
// simulator.
package device

import (
	"context"

	"smart_aquarium/internal/models"
)

// LightMirror reflects the aquarium light state onto a physical lamp.
type LightMirror interface {
	Apply(ctx context.Context, l models.LightState) error
}

// TemperatureProbe reads the water temperature in °C.
type TemperatureProbe interface {
	ReadTemperature(ctx context.Context) (float64, error)
}
