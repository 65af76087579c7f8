package engine

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/seesaw/core/command"
	"github.com/dmitrymomot/seesaw/core/dispatcher"
	"github.com/dmitrymomot/seesaw/core/effect"
	"github.com/dmitrymomot/seesaw/core/event"
	"github.com/dmitrymomot/seesaw/core/jobstore"
	"github.com/dmitrymomot/seesaw/core/machine"
	"github.com/dmitrymomot/seesaw/core/worker"
)

// PeriodicSource is a named, interval-driven command factory — the
// spec's "(name, interval, command-factory)" tuple (§12.5), an additive
// convenience over one-shot Scheduled commands. The engine invokes
// Factory on every tick and dispatches the resulting Command directly,
// without going through a machine's Decide.
type PeriodicSource struct {
	Name     string
	Interval time.Duration
	Factory  func() command.Command
}

// Builder assembles an Engine Handle. Registration methods return the
// Builder itself for chaining; all registration must happen before
// Build, matching spec §4.7's "registries are instance-scoped, frozen at
// build" design.
type Builder struct {
	machines    []machine.Machine
	effects     *effect.Registry
	commands    *command.Registry
	store       jobstore.Storage
	bus         event.Bus
	logger      *slog.Logger
	workerCount int
	workerOpts  []worker.Option
	periodic    []PeriodicSource
	buildErr    error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		effects:  effect.NewRegistry(),
		commands: command.NewRegistry(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithMachine registers a Machine. Its Decide is consulted, in
// registration order, for every envelope the bus delivers.
func (b *Builder) WithMachine(m machine.Machine) *Builder {
	b.machines = append(b.machines, m)
	return b
}

// WithEffect registers e for commandType, the value command.TypeName
// would derive from an Inline command's payload. Required for any
// command type an Inline command may carry.
func (b *Builder) WithEffect(commandType string, e effect.Effect) *Builder {
	if err := b.effects.Register(commandType, e); err != nil {
		b.buildErr = fmt.Errorf("engine: registering effect %q: %w", commandType, err)
	}
	return b
}

// WithJobType registers both halves a Background or Scheduled command
// needs: a deserializer rebuilding the payload from its stored bytes,
// and the effect that executes it once a worker claims the job. jobType
// must match the JobSpec.JobType a dispatched command carries.
func (b *Builder) WithJobType(jobType string, deserializer command.Deserializer, e effect.Effect) *Builder {
	if err := b.commands.Register(jobType, deserializer); err != nil {
		b.buildErr = fmt.Errorf("engine: registering job type %q deserializer: %w", jobType, err)
		return b
	}
	if err := b.effects.Register(jobType, e); err != nil {
		b.buildErr = fmt.Errorf("engine: registering job type %q effect: %w", jobType, err)
	}
	return b
}

// WithJobStore configures the durable store backing Background and
// Scheduled dispatch. Required if any machine ever decides a non-inline
// command.
func (b *Builder) WithJobStore(store jobstore.Storage) *Builder {
	b.store = store
	return b
}

// WithWorkers configures n worker pool members sharing the job store,
// command registry, and effect registry assembled by Build.
func (b *Builder) WithWorkers(n int, opts ...worker.Option) *Builder {
	b.workerCount = n
	b.workerOpts = opts
	return b
}

// WithPeriodic registers a ticking command source (spec §12.5).
func (b *Builder) WithPeriodic(source PeriodicSource) *Builder {
	b.periodic = append(b.periodic, source)
	return b
}

// WithBus overrides the default in-process event.ChannelBus.
func (b *Builder) WithBus(bus event.Bus) *Builder {
	b.bus = bus
	return b
}

// WithLogger sets the structured logger shared by the engine, dispatcher
// implicitly, and every spawned worker that wasn't given its own logger
// option.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Build freezes the registries and assembles a ready-to-Start Handle.
func (b *Builder) Build() (*Handle, error) {
	if b.buildErr != nil {
		return nil, b.buildErr
	}
	if len(b.machines) == 0 {
		return nil, ErrNoMachines
	}
	if b.workerCount > 0 && b.store == nil {
		return nil, fmt.Errorf("engine: WithWorkers requires WithJobStore")
	}

	rawBus := b.bus
	if rawBus == nil {
		rawBus = event.NewChannelBus()
	}

	tracker := NewInflightTracker()
	tbus := newTrackedBus(rawBus, tracker)

	d, err := dispatcher.New(b.effects, b.commands, b.store, tbus)
	if err != nil {
		return nil, fmt.Errorf("engine: building dispatcher: %w", err)
	}

	workerOpts := append([]worker.Option{worker.WithLogger(b.logger)}, b.workerOpts...)
	workers := make([]*worker.Worker, 0, b.workerCount)
	for i := 0; i < b.workerCount; i++ {
		w, err := worker.New(b.store, b.commands, b.effects, tbus, workerOpts...)
		if err != nil {
			return nil, fmt.Errorf("engine: building worker %d: %w", i, err)
		}
		workers = append(workers, w)
	}

	return &Handle{
		bus:        tbus,
		dispatcher: d,
		machines:   b.machines,
		workers:    workers,
		store:      b.store,
		tracker:    tracker,
		periodic:   b.periodic,
		logger:     b.logger,
	}, nil
}
