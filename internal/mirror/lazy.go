package mirror

import (
	"errors"
	"sync"
)

// Lazy defers constructing a Mirror until first use
type Lazy struct {
	factory func() (*Mirror, error)

	once   sync.Once
	mirror *Mirror
	err    error
}

// NewLazy wraps a factory that is called at most once
func NewLazy(factory func() (*Mirror, error)) *Lazy {
	return &Lazy{factory: factory}
}

// Get returns the mirror, constructing it on the first call
func (l *Lazy) Get() (*Mirror, error) {
	l.once.Do(func() {
		l.mirror, l.err = l.factory()
		if l.err == nil && l.mirror == nil {
			l.err = errors.New("mirror factory returned no mirror")
		}
	})
	return l.mirror, l.err
}
