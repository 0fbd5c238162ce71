// Package config provides Viper-based configuration loading for the action core server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server modes.
const (
	// ModeStandalone keeps every sheet in memory; nothing survives a restart.
	ModeStandalone = "standalone"
	// ModePersistent stores sheets and player identities in PostgreSQL.
	ModePersistent = "persistent"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Mode is ModeStandalone or ModePersistent.
	Mode string `mapstructure:"mode"`
	// Type names this server instance in logs.
	Type string `mapstructure:"type"`
}

// Persistent reports whether the server stores sheets in the database.
func (s ServerConfig) Persistent() bool { return s.Mode == ModePersistent }

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameServerConfig holds game server gRPC connection settings.
type GameServerConfig struct {
	// GRPCHost is the bind/connect address for the game server gRPC service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the game server gRPC service.
	GRPCPort int `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GameServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.GRPCHost, g.GRPCPort)
}

// ConsoleConfig holds settings for the telnet play console.
type ConsoleConfig struct {
	// Enabled starts the console listener alongside gRPC.
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	// ReadTimeout disconnects a player idle for this long. Zero never does.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// StartLocation is where console players join.
	StartLocation string `mapstructure:"start_location"`
}

// Addr returns the "host:port" listen address.
func (c ConsoleConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AbilitiesConfig holds action execution, content, and regeneration settings.
type AbilitiesConfig struct {
	// ContentDir holds the archetypes/, actions/, and conditions/ YAML directories.
	ContentDir string `mapstructure:"content_dir"`
	// ScriptDir holds Lua effect routines. Empty disables scripted effects.
	ScriptDir string `mapstructure:"script_dir"`
	// ScriptInstructionLimit bounds every Lua call. Zero means unlimited.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
	// RegenInterval is how often the regeneration driver runs.
	RegenInterval time.Duration `mapstructure:"regen_interval"`
	// AIInterval is how often NPCs choose and perform an action.
	AIInterval time.Duration `mapstructure:"ai_interval"`
	// ActiveWindow is how long after its last action an entity counts as active.
	ActiveWindow time.Duration `mapstructure:"active_window"`
	// PersistInterval is how often sheets are flushed to storage. Zero disables persistence.
	PersistInterval time.Duration `mapstructure:"persist_interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	GameServer GameServerConfig `mapstructure:"gameserver"`
	Console    ConsoleConfig    `mapstructure:"console"`
	Abilities  AbilitiesConfig  `mapstructure:"abilities"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGameServer(c.GameServer); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateConsole(c.Console); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAbilities(c.Abilities); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Mode != ModeStandalone && s.Mode != ModePersistent {
		return fmt.Errorf("server.mode must be one of [standalone, persistent], got %q", s.Mode)
	}
	if s.Type == "" {
		return errors.New("server.type must not be empty")
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGameServer(g GameServerConfig) error {
	var errs []string
	if g.GRPCHost == "" {
		errs = append(errs, "gameserver.grpc_host must not be empty")
	}
	if g.GRPCPort < 1 || g.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("gameserver.grpc_port must be 1-65535, got %d", g.GRPCPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// validateConsole checks console settings only when the console is enabled.
func validateConsole(c ConsoleConfig) error {
	if !c.Enabled {
		return nil
	}
	var errs []string
	if c.Host == "" {
		errs = append(errs, "console.host must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("console.port must be 1-65535, got %d", c.Port))
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		errs = append(errs, "console timeouts must not be negative")
	}
	if c.StartLocation == "" {
		errs = append(errs, "console.start_location must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAbilities(a AbilitiesConfig) error {
	var errs []string
	if a.ContentDir == "" {
		errs = append(errs, "abilities.content_dir must not be empty")
	}
	if a.ScriptInstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("abilities.script_instruction_limit must be >= 0, got %d", a.ScriptInstructionLimit))
	}
	if a.RegenInterval <= 0 {
		errs = append(errs, fmt.Sprintf("abilities.regen_interval must be > 0, got %s", a.RegenInterval))
	}
	if a.AIInterval <= 0 {
		errs = append(errs, fmt.Sprintf("abilities.ai_interval must be > 0, got %s", a.AIInterval))
	}
	if a.ActiveWindow < 0 {
		errs = append(errs, "abilities.active_window must not be negative")
	}
	if a.PersistInterval < 0 {
		errs = append(errs, "abilities.persist_interval must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MUD_ prefix
	v.SetEnvPrefix("MUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "standalone")
	v.SetDefault("server.type", "actioncore")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mud")
	v.SetDefault("database.password", "mud")
	v.SetDefault("database.name", "mud")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("gameserver.grpc_host", "127.0.0.1")
	v.SetDefault("gameserver.grpc_port", 50051)

	v.SetDefault("console.enabled", false)
	v.SetDefault("console.host", "127.0.0.1")
	v.SetDefault("console.port", 4000)
	v.SetDefault("console.read_timeout", "10m")
	v.SetDefault("console.write_timeout", "5s")
	v.SetDefault("console.start_location", "pit_arena")

	v.SetDefault("abilities.content_dir", "content")
	v.SetDefault("abilities.script_dir", "")
	v.SetDefault("abilities.script_instruction_limit", 100000)
	v.SetDefault("abilities.regen_interval", "1s")
	v.SetDefault("abilities.ai_interval", "3s")
	v.SetDefault("abilities.active_window", "10s")
	v.SetDefault("abilities.persist_interval", "0s")
}
