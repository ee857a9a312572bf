package cache

import "time"

// Observer receives cache events. Implementations must be safe for
// concurrent use.
type Observer interface {
	OnLoad(d time.Duration, err error)
	OnPersist(d time.Duration, bytes int, err error)
	OnEvict(bytes int64)
	OnResidentBytes(bytes int64)
}

// NoopObserver discards every event.
type NoopObserver struct{}

func (NoopObserver) OnLoad(time.Duration, error)         {}
func (NoopObserver) OnPersist(time.Duration, int, error) {}
func (NoopObserver) OnEvict(int64)                       {}
func (NoopObserver) OnResidentBytes(int64)               {}
