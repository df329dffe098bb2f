package service

import (
	"context"
	"time"

	"smart_aquarium/internal/device"
	"smart_aquarium/internal/logger"
	"smart_aquarium/internal/models"
	"smart_aquarium/internal/repository"
	"smart_aquarium/internal/store"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	TokenTTL() time.Duration
}

// Store is the daemon-side realtime tree: the watch/write/merge contract
// plus point reads for REST and the simulator.
type Store interface {
	store.Store
	Get(path string) (any, bool, error)
	// Update merges the partial fn derives from the value at path as one
	// atomic step and returns what was applied.
	Update(ctx context.Context, path string, fn func(current any) map[string]any) (map[string]any, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.StoreEvent, error)
}

// Simulator plays the aquarium controller. Stop via context cancellation.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// LogFilter supports history filtering by time range, type and path.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "COMMAND", "ALERT", "DEVICE", "SETTINGS", "SYSTEM"
	Path string    // store path prefix, e.g. "aquarium/devices"
}

// Options carries the daemon settings the services need.
type Options struct {
	Root       string
	SigningKey string
	TokenTTL   time.Duration
	Location   *time.Location
	Mirror     device.LightMirror
	Probe      device.TemperatureProbe
	Logger     *logger.Logger
}

type Service struct {
	Store
	EventLog
	Simulator
	Authorization
}

// NewService wires the repository layer and the store into concrete services.
func NewService(repos *repository.Repository, st Store, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		Store:    st,
		EventLog: NewEventLogService(repos.EventRepo),
		Simulator: NewSimulatorService(st, SimulatorOptions{
			Root:     opts.Root,
			Location: opts.Location,
			Mirror:   opts.Mirror,
			Probe:    opts.Probe,
			Logger:   log.Named("simulator"),
		}),
		Authorization: NewAuthService(repos.Auth, opts.SigningKey, opts.TokenTTL),
	}
}
