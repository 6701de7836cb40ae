package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	cacheMu sync.Mutex
	cache   = make(map[string]any)

	dotenvOnce sync.Once
)

// Load populates the configuration struct from environment variables and
// caches the result per struct type, so every package sees the same parsed
// configuration for the lifetime of the process.
//
// A .env file in the working directory is loaded once before the first parse;
// its absence is not an error.
//
// Example:
//
//	type DeliveryConfig struct {
//		BatchSize int           `env:"DELIVERY_BATCH_SIZE" envDefault:"50"`
//		Interval  time.Duration `env:"DELIVERY_BATCH_INTERVAL" envDefault:"10s"`
//	}
//
//	var cfg DeliveryConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// The .env file is a development convenience only.
		_ = godotenv.Load()
	})

	key := typeName[T]()

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	// Store a copy so later mutations of the caller's struct don't leak into
	// the cache.
	cache[key] = *v
	return nil
}

// MustLoad works like Load but panics on failure. Intended for configuration
// without which the application cannot start.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// typeName returns a stable cache key for the generic type T.
func typeName[T any]() string {
	var zero T
	if t := reflect.TypeOf(zero); t != nil {
		return t.String()
	}
	return fmt.Sprintf("%T", *new(T))
}
