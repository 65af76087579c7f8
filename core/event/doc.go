// Package event provides the fact side of Seesaw's coordination model: an
// immutable, opaque Event payload, an EventEnvelope that threads a
// correlation id and role through a chain of related events, and a
// ChannelBus that fans events out to subscribers at most once.
//
// Publishers never block on slow subscribers. A subscriber that falls
// behind loses the events emitted while its buffer is full and then
// observes an explicit Lagged signal counting them, rather than stalling
// the bus.
//
// Basic usage:
//
//	bus := event.NewChannelBus()
//	defer bus.Close()
//
//	sub := bus.Subscribe()
//	defer sub.Close()
//
//	bus.Emit(event.NewEnvelope(uuid.New(), event.RoleInitial, 0, OrderPlaced{ID: "o1"}))
//
//	msg, err := sub.Receive(ctx)
//	if err != nil {
//		return err
//	}
//	switch v := msg.(type) {
//	case event.EventEnvelope:
//		fmt.Println(v.Payload)
//	case event.Lagged:
//		fmt.Println("dropped", v.N, "events")
//	}
package event
