package asset

import (
	"fmt"
	"slices"
	"sync"
)

// Loader is responsible for one family of assets. Its name is persisted in
// every asset header so decoded assets find their loader again.
type Loader interface {
	Name() string
	// Extension is the file suffix the loader owns, for example ".easset".
	Extension() string
	// OnLoad completes an asset after the archiver decoded its properties.
	OnLoad(a Asset) error
}

type funcLoader struct {
	name, ext string
	onLoad    func(Asset) error
}

// NewLoader returns a Loader calling onLoad, which may be nil, after every
// decode.
func NewLoader(name, ext string, onLoad func(Asset) error) Loader {
	return &funcLoader{name: name, ext: ext, onLoad: onLoad}
}

func (l *funcLoader) Name() string      { return l.name }
func (l *funcLoader) Extension() string { return l.ext }

func (l *funcLoader) OnLoad(a Asset) error {
	if l.onLoad == nil {
		return nil
	}
	return l.onLoad(a)
}

// Loaders indexes loaders by name.
type Loaders struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

func NewLoaders(loaders ...Loader) (*Loaders, error) {
	s := &Loaders{loaders: make(map[string]Loader, len(loaders))}
	for _, l := range loaders {
		if err := s.Register(l); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Loaders) Register(l Loader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loaders[l.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrLoaderExists, l.Name())
	}
	s.loaders[l.Name()] = l
	return nil
}

func (s *Loaders) Get(name string) (Loader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.loaders[name]
	return l, ok
}

func (s *Loaders) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.loaders))
	for name := range s.loaders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
