package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once

	cacheMu sync.Mutex
	cache   = make(map[reflect.Type]any)
)

// Load populates dst (a pointer to a struct with `env` tags) from the
// process environment via caarlos0/env, loading a .env file into the
// environment first (once per process, best-effort — a missing .env
// file is not an error). Each concrete type is parsed once; subsequent
// Load calls for the same type copy the cached value into dst instead
// of re-reading the environment.
func Load[T any](dst *T) error {
	loadDotenvOnce()

	t := reflect.TypeOf(*dst)

	cacheMu.Lock()
	if cached, ok := cache[t]; ok {
		cacheMu.Unlock()
		*dst = cached.(T)
		return nil
	}
	cacheMu.Unlock()

	if err := env.Parse(dst); err != nil {
		return fmt.Errorf("config: parsing %s: %w", t, err)
	}

	cacheMu.Lock()
	cache[t] = *dst
	cacheMu.Unlock()

	return nil
}

// MustLoad is Load, panicking on failure. Intended for use at process
// startup where a misconfigured environment should fail fast.
func MustLoad[T any](dst *T) {
	if err := Load(dst); err != nil {
		panic(err)
	}
}

func loadDotenvOnce() {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
}
