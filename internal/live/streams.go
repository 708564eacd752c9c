package live

import (
	"slices"
	"sync"
)

type sendFunc func(command string, params map[string]any) error

// streamRegistry remembers which streams the application wants so they can be
// restarted after a reconnect. The server keeps no subscription state across
// connections.
type streamRegistry struct {
	send sendFunc

	mu      sync.Mutex
	desired []string
}

func newStreamRegistry(send sendFunc) *streamRegistry {
	return &streamRegistry{send: send}
}

// start adds name and sends start_<name>. Returns false when name was
// already desired, in which case nothing is sent.
func (r *streamRegistry) start(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.desired, name) {
		return false, nil
	}
	r.desired = append(r.desired, name)
	return true, r.send("start_"+name, nil)
}

// stop removes name and sends stop_<name>. The removal sticks even if the
// send is dropped.
func (r *streamRegistry) stop(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.Index(r.desired, name)
	if i < 0 {
		return false, nil
	}
	r.desired = slices.Delete(r.desired, i, i+1)
	return true, r.send("stop_"+name, nil)
}

// replay resends start_<name> once per desired stream.
func (r *streamRegistry) replay() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.desired {
		_ = r.send("start_"+name, nil)
	}
}

// stopAll sends stop_<name> for every desired stream and forgets them.
func (r *streamRegistry) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.desired {
		_ = r.send("stop_"+name, nil)
	}
	r.desired = nil
}

func (r *streamRegistry) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.desired)
}
