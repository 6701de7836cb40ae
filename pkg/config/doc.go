// Package config loads typed configuration structs from environment
// variables using caarlos0/env, with an optional .env file for development.
//
// Each configuration type is parsed once per process and cached, so
// independent packages asking for the same config type always agree.
package config
