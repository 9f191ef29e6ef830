package module

import "sync"

// registry of ports keyed by module name, filled by each module's Register
var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register publishes ports under name, replacing any earlier entry
func Register(name string, ports any) {
	mu.Lock()
	defer mu.Unlock()
	reg[name] = ports
}

// PortsAs returns the ports registered under name when they are a T
func PortsAs[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	out, ok2 := v.(T)
	return out, ok && ok2
}

// Reset empties the registry; tests call it between cases
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	reg = map[string]any{}
}
