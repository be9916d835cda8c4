// Copyright 2024 kotobadb contributors
// Licensed under LGPL-3.0-or-later.

// Package config holds the recognized options, populated by
// cmd/kotobasyncd's urfave/cli/v2 flags.
package config

// Config is the small, flat configuration struct threaded through the
// syncer/retry/store layers. It carries only the recognized options
// plus the connection settings every component needs to reach
// the data source and the on-disk store.
type Config struct {
	// Verbose enables diagnostic messages on the Coordinator.
	Verbose bool

	// Lang is the BCP-47-ish two-letter code passed as
	// series.update.lang; falls back to "en" when a series lacks it.
	Lang string

	// UpdateNow lets the run skip the Retry Supervisor's offline gate. It
	// does not bypass retry coalescing: a same-language call still joins
	// the run already in flight.
	UpdateNow bool

	// ForceFetch bypasses the manifest cache.
	ForceFetch bool

	// BaseURL is the root the Version Catalog Client and Download Planner
	// resolve manifest/snapshot/patch URLs against.
	BaseURL string

	// StorePath is the path of the bbolt database file; its advisory lock
	// is the same path with a ".lock" suffix.
	StorePath string
}

// Default returns a Config with the implicit defaults: English,
// no forced behaviors, coalesced retries.
func Default() Config {
	return Config{
		Lang: "en",
	}
}
