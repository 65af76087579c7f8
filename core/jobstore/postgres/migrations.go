// Package postgres is the durable Storage implementation backing
// core/jobstore in production: pgxpool plus SELECT ... FOR UPDATE SKIP
// LOCKED for ClaimReady, matching the claim protocol in spec §4.5.
package postgres

import "embed"

// Migrations embeds the goose migration set that creates the jobs table
// and its claim/lease indices. Pass this to pg.Migrate at startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS
