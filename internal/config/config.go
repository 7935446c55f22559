// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config contains a centralized structure for all configuration
// options of the mirror service.
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the top-level configuration structure.
type Config struct {
	HTTPServer    HTTPServerConfig `mapstructure:"http_server"`
	LoggingConfig LoggingConfig    `mapstructure:"logging"`
	Database      DatabaseConfig   `mapstructure:"database"`
	Events        EventConfig      `mapstructure:"events"`
	GitHub        GitHubConfig     `mapstructure:"github"`
	Queue         QueueConfig      `mapstructure:"queue"`
	Sync          SyncConfig       `mapstructure:"sync"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Events.Validate(); err != nil {
		return err
	}
	if err := c.Queue.Validate(); err != nil {
		return err
	}
	return c.Sync.Validate()
}

// DefaultConfigForTest returns a configuration with all the struct defaults set,
// but no other changes.
func DefaultConfigForTest() *Config {
	v := viper.New()
	SetViperDefaults(v)
	c, err := ReadConfigFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("Failed to read default config: %v", err))
	}
	return c
}

// ReadConfigFromViper reads the configuration from the given Viper instance.
// This will return the already-parsed and validated configuration, or an error.
func ReadConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetViperDefaults sets the default values for the configuration to be picked
// up by viper
func SetViperDefaults(v *viper.Viper) {
	v.SetEnvPrefix("ghmirror")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setViperStructDefaults(v, "", Config{})
}

// setViperStructDefaults walks the config struct and calls v.SetDefault for
// every leaf field. Viper only applies env var overrides to keys it knows
// about, so each field needs an explicit default from its `default` tag.
func setViperStructDefaults(v *viper.Viper, prefix string, s any) {
	structType := reflect.TypeOf(s)

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if unicode.IsLower([]rune(field.Name)[0]) {
			// Skip private fields
			continue
		}
		if field.Tag.Get("mapstructure") == "" {
			// Error, need a tag
			panic(fmt.Sprintf("Untagged config struct field %q", field.Name))
		}
		valueName := strings.ToLower(prefix + field.Tag.Get("mapstructure"))

		if field.Type.Kind() == reflect.Struct {
			setViperStructDefaults(v, valueName+".", reflect.Zero(field.Type).Interface())
			continue
		}

		// Extract a default value the `default` struct tag
		// we don't support all value types yet, but we can add them as needed
		value := field.Tag.Get("default")
		defaultValue := reflect.Zero(field.Type).Interface()
		var err error // We handle errors at the end of the switch
		fieldType := field.Type.Kind()
		//nolint:golint,exhaustive
		switch {
		case field.Type == reflect.TypeOf(time.Duration(0)):
			defaultValue, err = time.ParseDuration(value)
		case fieldType == reflect.String:
			defaultValue = value
		case fieldType == reflect.Int64 || fieldType == reflect.Int32 ||
			fieldType == reflect.Int16 || fieldType == reflect.Int8 ||
			fieldType == reflect.Int || fieldType == reflect.Uint64 ||
			fieldType == reflect.Uint32 || fieldType == reflect.Uint16 ||
			fieldType == reflect.Uint8 || fieldType == reflect.Uint:
			defaultValue, err = strconv.Atoi(value)
		case fieldType == reflect.Float64:
			defaultValue, err = strconv.ParseFloat(value, 64)
		case fieldType == reflect.Bool:
			defaultValue, err = strconv.ParseBool(value)
		default:
			err = fmt.Errorf("unhandled type %s", fieldType)
		}
		if err != nil {
			// This is effectively a compile-time error, so exit early
			panic(fmt.Sprintf("Bad value for field %q (%s): %q", valueName, fieldType, err))
		}

		if err := v.BindEnv(strings.ToUpper(valueName)); err != nil {
			panic(fmt.Sprintf("Failed to bind %q to env var: %v", valueName, err))
		}
		v.SetDefault(valueName, defaultValue)
	}
}

// FlagInst is a function that creates a flag and returns a pointer to the value
type FlagInst[V any] func(name string, value V, usage string) *V

// FlagInstShort is a function that creates a flag and returns a pointer to the value
type FlagInstShort[V any] func(name, shorthand string, value V, usage string) *V

// BindConfigFlag registers the flag named cmdLineArg through binder and
// binds it to the viper path, so a set flag overrides config file and env
// values.
func BindConfigFlag[V any](
	v *viper.Viper,
	flags *pflag.FlagSet,
	viperPath string,
	cmdLineArg string,
	defaultValue V,
	help string,
	binder FlagInst[V],
) error {
	binder(cmdLineArg, defaultValue, help)
	return doViperBind[V](v, flags, viperPath, cmdLineArg, defaultValue)
}

// BindConfigFlagWithShort is BindConfigFlag for flags with a shorthand.
func BindConfigFlagWithShort[V any](
	v *viper.Viper,
	flags *pflag.FlagSet,
	viperPath string,
	cmdLineArg string,
	short string,
	defaultValue V,
	help string,
	binder FlagInstShort[V],
) error {
	binder(cmdLineArg, short, defaultValue, help)
	return doViperBind[V](v, flags, viperPath, cmdLineArg, defaultValue)
}

func doViperBind[V any](
	v *viper.Viper,
	flags *pflag.FlagSet,
	viperPath string,
	cmdLineArg string,
	defaultValue V,
) error {
	v.SetDefault(viperPath, defaultValue)
	if err := v.BindPFlag(viperPath, flags.Lookup(cmdLineArg)); err != nil {
		return fmt.Errorf("failed to bind flag %s to viper path %s: %w", cmdLineArg, viperPath, err)
	}

	return nil
}
