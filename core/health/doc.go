// Package health aggregates dependency health checks into one error,
// for use by whatever transport a host process chooses to expose it
// over (an HTTP handler, a CLI subcommand, a periodic log line) — this
// package itself has no transport opinion.
//
// Usage:
//
//	err := health.Run(ctx, pg.Healthcheck(pool), redisCheck)
//	if err != nil {
//		log.ErrorContext(ctx, "dependency unhealthy", logger.Error(err))
//	}
//
// Check functions follow func(context.Context) error:
//
//	func checkDB(ctx context.Context) error {
//		return db.PingContext(ctx)
//	}
package health
