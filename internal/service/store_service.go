package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"smart_aquarium/internal/logger"
	"smart_aquarium/internal/models"
	"smart_aquarium/internal/repository"
	"smart_aquarium/internal/store"
)

// sectionEvents maps a top-level aquarium section onto the event type logged
// for writes under it. Sections missing here are not logged.
var sectionEvents = map[string]string{
	"commands": models.EventCommand,
	"alerts":   models.EventAlert,
	"devices":  models.EventDevice,
	"settings": models.EventSettings,
}

// StoreService is the daemon's realtime tree. Every accepted write is
// persisted to the tree repository and recorded in the event log.
// Persistence failures are logged; the in-memory tree stays authoritative.
type StoreService struct {
	mem    *store.Memory
	trees  repository.TreeRepo
	events repository.EventRepo
	root   string
	log    *logger.Logger

	persistMu sync.Mutex
}

var _ Store = (*StoreService)(nil)

// NewStoreService restores the last persisted tree, or starts from seed when
// nothing was saved yet.
func NewStoreService(ctx context.Context, trees repository.TreeRepo, events repository.EventRepo,
	root string, seed map[string]any, log *logger.Logger) (*StoreService, error) {
	if log == nil {
		log = logger.Nop()
	}
	tree, ok, err := trees.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store tree: %w", err)
	}
	if !ok && seed != nil {
		tree = seed
		log.Infow("store_seeded", "keys", len(seed))
	}
	mem, err := store.NewMemory(tree)
	if err != nil {
		return nil, fmt.Errorf("restore store tree: %w", err)
	}
	return &StoreService{
		mem:    mem,
		trees:  trees,
		events: events,
		root:   strings.Trim(root, "/"),
		log:    log,
	}, nil
}

func (s *StoreService) Get(path string) (any, bool, error) { return s.mem.Get(path) }

func (s *StoreService) Watch(path string, fn func(store.Snapshot)) (func(), error) {
	return s.mem.Watch(path, fn)
}

func (s *StoreService) Write(ctx context.Context, path string, value any) error {
	if err := s.mem.Write(ctx, path, value); err != nil {
		return err
	}
	p, _ := store.CleanPath(path)
	s.persist(ctx)
	s.record(ctx, "write", p, []string{p}, value)
	return nil
}

func (s *StoreService) Merge(ctx context.Context, path string, partial map[string]any) error {
	if err := s.mem.Merge(ctx, path, partial); err != nil {
		return err
	}
	s.merged(ctx, path, partial)
	return nil
}

// Update is Merge with the partial computed from the current value under
// the store lock. Persistence and the event log see it as a merge.
func (s *StoreService) Update(ctx context.Context, path string, fn func(current any) map[string]any) (map[string]any, error) {
	applied, err := s.mem.Update(ctx, path, fn)
	if err != nil || len(applied) == 0 {
		return applied, err
	}
	s.merged(ctx, path, applied)
	return applied, nil
}

func (s *StoreService) merged(ctx context.Context, path string, partial map[string]any) {
	p, _ := store.CleanPath(path)
	touched := make([]string, 0, len(partial))
	for k := range partial {
		touched = append(touched, store.Join(p, k))
	}
	sort.Strings(touched)
	s.persist(ctx)
	s.record(ctx, "merge", p, touched, partial)
}

func (s *StoreService) Close() error { return s.mem.Close() }

func (s *StoreService) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.trees.Save(context.WithoutCancel(ctx), s.mem.Tree()); err != nil {
		s.log.Errorw("store_persist_failed", "error", err)
	}
}

// record appends one event per section touched by a mutation.
func (s *StoreService) record(ctx context.Context, op, path string, touched []string, value any) {
	seen := make(map[string]bool)
	for _, t := range touched {
		section, ok := s.sectionOf(t)
		if !ok || seen[section] {
			continue
		}
		seen[section] = true
		typ, logged := sectionEvents[section]
		if !logged {
			continue
		}
		ev := models.StoreEvent{
			Type:        typ,
			Path:        path,
			Description: fmt.Sprintf("%s %s", op, store.Join(s.root, section)),
			Metadata:    map[string]any{"op": op, "paths": touched, "value": value},
		}
		if err := s.events.Append(context.WithoutCancel(ctx), ev); err != nil {
			s.log.Errorw("event_append_failed", "type", typ, "path", path, "error", err)
		}
	}
	if len(seen) == 0 {
		ev := models.StoreEvent{
			Type:        models.EventSystem,
			Path:        path,
			Description: fmt.Sprintf("%s outside %s", op, s.root),
			Metadata:    map[string]any{"op": op, "paths": touched},
		}
		if err := s.events.Append(context.WithoutCancel(ctx), ev); err != nil {
			s.log.Errorw("event_append_failed", "type", ev.Type, "path", path, "error", err)
		}
	}
}

// sectionOf returns the first segment below the root for paths inside it.
func (s *StoreService) sectionOf(p string) (string, bool) {
	rel := p
	if s.root != "" {
		if !strings.HasPrefix(p, s.root+"/") {
			return "", false
		}
		rel = strings.TrimPrefix(p, s.root+"/")
	}
	section, _, _ := strings.Cut(rel, "/")
	return section, section != ""
}
