package command

import "sync"

// Deserializer rebuilds a concrete command payload from the opaque bytes a
// job store handed back. Implementations typically unmarshal JSON into the
// registered type, but the registry does not assume any wire format.
type Deserializer func(payload []byte) (any, error)

// Registry maps job_type identifiers to the deserializer that rebuilds the
// matching command payload. Registration is intended to happen once, in
// full, before the engine starts; the zero value is ready to use.
type Registry struct {
	mu            sync.RWMutex
	deserializers map[string]Deserializer
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{deserializers: make(map[string]Deserializer)}
}

// Register associates jobType with a deserializer. It returns
// ErrAlreadyRegistered if jobType is already bound; registrations are
// append-only by design so that a stray duplicate registration (usually a
// copy-paste bug) is caught immediately instead of silently shadowing the
// original.
func (r *Registry) Register(jobType string, deserializer Deserializer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deserializers == nil {
		r.deserializers = make(map[string]Deserializer)
	}
	if _, exists := r.deserializers[jobType]; exists {
		return ErrAlreadyRegistered
	}
	r.deserializers[jobType] = deserializer
	return nil
}

// Deserialize rebuilds the command payload stored under jobType. It
// returns a *DeserializationError wrapping ErrJobTypeNotRegistered if
// jobType was never registered, or wrapping whatever error the registered
// deserializer produced.
func (r *Registry) Deserialize(jobType string, payload []byte) (any, error) {
	r.mu.RLock()
	deserializer, ok := r.deserializers[jobType]
	r.mu.RUnlock()

	if !ok {
		return nil, &DeserializationError{JobType: jobType, Err: ErrJobTypeNotRegistered}
	}

	v, err := deserializer(payload)
	if err != nil {
		return nil, &DeserializationError{JobType: jobType, Err: err}
	}
	return v, nil
}

// Has reports whether jobType has a registered deserializer.
func (r *Registry) Has(jobType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.deserializers[jobType]
	return ok
}
