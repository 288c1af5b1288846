// Package config provides fail-open configuration loading for the worker
// process: every value read from the environment is validated, and an
// invalid value falls back to the built-in default with a warning instead
// of aborting startup. Fallbacks are surfaced through Prometheus metrics
// so a misconfigured deployment is visible without log diving.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Result carries a loaded configuration value together with the
// warnings generated while loading it. FallbackApplied is true when the
// environment held an invalid value and the default was used instead;
// an unset variable uses the default silently.
type Result[T any] struct {
	Value           T
	Warnings        []string
	FallbackApplied bool
}

// LoadEnv reads an environment variable, parses it with parse, and
// validates it with validate. Any failure falls back to defaultValue
// with a warning. Either function may be nil to skip that step.
func LoadEnv[T any](envKey string, defaultValue T, parse func(string) (T, error), validate func(T) error) Result[T] {
	raw := os.Getenv(envKey)
	if raw == "" {
		return Result[T]{Value: defaultValue}
	}

	value := defaultValue
	if parse != nil {
		parsed, err := parse(raw)
		if err != nil {
			return fallback(envKey, raw, err, defaultValue)
		}
		value = parsed
	}

	if validate != nil {
		if err := validate(value); err != nil {
			return fallback(envKey, raw, err, defaultValue)
		}
	}

	return Result[T]{Value: value}
}

// LoadEnvString loads a validated string value.
func LoadEnvString(envKey, defaultValue string, validate func(string) error) Result[string] {
	return LoadEnv(envKey, defaultValue, func(s string) (string, error) { return s, nil }, validate)
}

// LoadEnvInt loads a validated integer value.
func LoadEnvInt(envKey string, defaultValue int, validate func(int) error) Result[int] {
	return LoadEnv(envKey, defaultValue, strconv.Atoi, validate)
}

// LoadEnvDuration loads a validated duration value ("30m", "1h", ...).
func LoadEnvDuration(envKey string, defaultValue time.Duration, validate func(time.Duration) error) Result[time.Duration] {
	return LoadEnv(envKey, defaultValue, time.ParseDuration, validate)
}

func fallback[T any](envKey, raw string, err error, defaultValue T) Result[T] {
	warning := fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", envKey, raw, err, defaultValue)
	return Result[T]{
		Value:           defaultValue,
		Warnings:        []string{warning},
		FallbackApplied: true,
	}
}
