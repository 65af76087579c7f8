// Command seesaw-example wires one machine and one effect together end
// to end: an order placed event decides a background confirmation
// command, a worker claims and executes it, and the resulting event
// closes the loop. It demonstrates the S1/S2 scenarios from the engine
// spec using nothing but the in-memory job store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/seesaw/core/command"
	"github.com/dmitrymomot/seesaw/core/effect"
	"github.com/dmitrymomot/seesaw/core/engine"
	"github.com/dmitrymomot/seesaw/core/event"
	"github.com/dmitrymomot/seesaw/core/jobstore"
	"github.com/dmitrymomot/seesaw/core/logger"
	"github.com/dmitrymomot/seesaw/core/machine"
)

type orderPlaced struct {
	OrderID string
	Amount  int
}

type orderConfirmed struct {
	OrderID string
}

const jobTypeConfirmOrder = "order:confirm"

func main() {
	log := logger.New(logger.WithDevelopment("seesaw-example"))

	confirmOrders := machine.Typed[orderPlaced](func(env event.EventEnvelope, p orderPlaced) (command.Command, bool) {
		spec := command.JobSpec{JobType: jobTypeConfirmOrder, MaxRetries: 3}
		return command.NewBackground(p, spec), true
	})

	confirm := effect.Typed[orderPlaced](func(ctx context.Context, p orderPlaced) (any, error) {
		log.InfoContext(ctx, "confirming order", logger.ID("order_id", p.OrderID))
		return orderConfirmed{OrderID: p.OrderID}, nil
	})

	store := jobstore.NewMemoryStorage()

	h, err := engine.NewBuilder().
		WithLogger(log).
		WithMachine(confirmOrders).
		WithJobStore(store).
		WithJobType(jobTypeConfirmOrder, func(payload []byte) (any, error) {
			var p orderPlaced
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}
			return p, nil
		}, confirm).
		WithWorkers(2).
		Build()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := h.Start(ctx); err != nil {
			log.Error("engine stopped with error", logger.Error(err))
		}
	}()

	awaitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	correlationID, err := h.EmitAndAwait(awaitCtx, orderPlaced{OrderID: "ord_1", Amount: 4200})
	if err != nil {
		log.Error("order processing did not complete", logger.Error(err))
	} else {
		fmt.Printf("order %s processed (correlation %s)\n", "ord_1", correlationID)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := h.Shutdown(shutdownCtx, 5*time.Second); err != nil {
		log.Error("shutdown error", logger.Error(err))
	}
}
