package effect

import "fmt"

// Registry maps a command payload's type name to the Effect responsible
// for executing it. At most one Effect may be registered per type; a
// second registration for the same type is a configuration error the
// engine builder surfaces at build time rather than at dispatch time.
type Registry struct {
	effects map[string]Effect
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{effects: make(map[string]Effect)}
}

// Register binds typeName (typically command.TypeName(payload)) to e. It
// returns an error if typeName already has an Effect registered.
func (r *Registry) Register(typeName string, e Effect) error {
	if _, exists := r.effects[typeName]; exists {
		return fmt.Errorf("effect: duplicate registration for command type %q", typeName)
	}
	r.effects[typeName] = e
	return nil
}

// Lookup returns the Effect registered for typeName, if any.
func (r *Registry) Lookup(typeName string) (Effect, bool) {
	e, ok := r.effects[typeName]
	return e, ok
}
