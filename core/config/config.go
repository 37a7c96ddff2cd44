// Package config provides type-safe environment variable loading with
// per-type caching. Each configuration type is loaded once and reused on
// subsequent calls. A .env file, when present, is loaded before the first
// environment read.
package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu     sync.Mutex
	cache  = make(map[reflect.Type]any)
	dotenv sync.Once
)

// Load parses environment variables into the given struct pointer based on
// its `env` tags. The result is cached by type: repeated calls for the same
// type return the value captured on first load.
func Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: must pass a pointer to struct, got %T", cfg)
	}

	// Missing .env files are expected outside local development
	dotenv.Do(func() {
		_ = godotenv.Load()
	})

	mu.Lock()
	defer mu.Unlock()

	t := rv.Elem().Type()
	if cached, ok := cache[t]; ok {
		rv.Elem().Set(reflect.ValueOf(cached))
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", t, err)
	}

	cache[t] = rv.Elem().Interface()
	return nil
}

// MustLoad is like Load but panics on failure. Useful during application
// startup where a missing required variable should stop the process.
func MustLoad(cfg any) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
