// Package config builds the process configuration snapshot.
//
// The snapshot is assembled once at startup from process environment
// variables, dotenv files and console flags. Nothing outside this package
// reads the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/artpar/appkernel/domain/persistence"
)

// Environment variables read by Load.
const (
	EnvName       = "APP_ENV"
	EnvDebug      = "APP_DEBUG"
	EnvProjectDir = "APP_PROJECT_DIR"
	EnvConfigDir  = "APP_CONFIG_DIR"
	EnvLogLevel   = "APP_LOG_LEVEL"
	EnvLogFormat  = "APP_LOG_FORMAT"
	EnvHTTPAddr   = "APP_HTTP_ADDR"

	// EnvPersistence selects the document stack when set to exactly "true".
	EnvPersistence = "USE_MONGODB"
)

// Defaults.
const (
	DefaultEnv      = "dev"
	DefaultHTTPAddr = "127.0.0.1:8000"
	ProdEnv         = "prod"
	TestEnv         = "test"
)

var envNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Snapshot is the immutable startup configuration.
type Snapshot struct {
	Env        string
	Mode       persistence.Mode
	Debug      bool
	ProjectDir string
	ConfigDir  string
	LogLevel   string // "debug", "info", "warn", "error"
	LogFormat  string // "json" or "console"
	HTTPAddr   string

	// DotenvFiles lists the dotenv files that were read, in order.
	DotenvFiles []string

	vars map[string]string
}

// LookupEnv returns a variable captured in the snapshot.
func (s Snapshot) LookupEnv(name string) (string, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Vars returns a copy of the captured variable table.
func (s Snapshot) Vars() map[string]string {
	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// WithVars returns a copy of s whose variable table is vars. It is meant
// for tests and embedding; derived fields are not recomputed.
func (s Snapshot) WithVars(vars map[string]string) Snapshot {
	s.vars = make(map[string]string, len(vars))
	for k, v := range vars {
		s.vars[k] = v
	}
	return s
}

// Options override what Load reads from the process.
type Options struct {
	// Env overrides APP_ENV (console --env flag).
	Env string

	// NoDebug forces debug off (console --no-debug flag).
	NoDebug bool

	// ProjectDir overrides APP_PROJECT_DIR and the working directory.
	ProjectDir string

	// Environ replaces os.Environ() as the process variable source.
	Environ []string
}

// Load builds a snapshot.
//
// Dotenv files are read from the project directory in this order, later
// files overriding earlier ones:
//
//	.env
//	.env.local        (not in the test environment)
//	.env.<env>
//	.env.<env>.local
//
// Process variables always win over dotenv values.
func Load(opts Options) (Snapshot, error) {
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	process := parseEnviron(environ)

	projectDir, err := resolveProjectDir(opts.ProjectDir, process)
	if err != nil {
		return Snapshot{}, err
	}

	vars := make(map[string]string, len(process))
	var loaded []string

	readDotenv := func(name string) error {
		p := filepath.Join(projectDir, name)
		values, err := godotenv.Read(p)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read dotenv %s: %w", name, err)
		}
		for k, v := range values {
			vars[k] = v
		}
		loaded = append(loaded, name)
		return nil
	}

	currentEnv := func() string {
		if opts.Env != "" {
			return opts.Env
		}
		if v := process[EnvName]; v != "" {
			return v
		}
		if v := vars[EnvName]; v != "" {
			return v
		}
		return DefaultEnv
	}

	if err := readDotenv(".env"); err != nil {
		return Snapshot{}, err
	}
	if currentEnv() != TestEnv {
		if err := readDotenv(".env.local"); err != nil {
			return Snapshot{}, err
		}
	}
	env := currentEnv()
	if err := validateEnvName(env); err != nil {
		return Snapshot{}, err
	}
	if err := readDotenv(".env." + env); err != nil {
		return Snapshot{}, err
	}
	if err := readDotenv(".env." + env + ".local"); err != nil {
		return Snapshot{}, err
	}

	for k, v := range process {
		vars[k] = v
	}
	vars[EnvName] = env

	s := Snapshot{
		Env:         env,
		Mode:        persistence.ParseMode(vars[EnvPersistence]),
		ProjectDir:  projectDir,
		DotenvFiles: loaded,
		vars:        vars,
	}
	applyVars(&s, opts)
	setDefaults(&s)

	if err := validate(&s); err != nil {
		return Snapshot{}, fmt.Errorf("validate config: %w", err)
	}

	return s, nil
}

func parseEnviron(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func resolveProjectDir(flag string, process map[string]string) (string, error) {
	dir := flag
	if dir == "" {
		dir = process[EnvProjectDir]
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	return abs, nil
}

// applyVars copies APP_* variables into the snapshot.
func applyVars(s *Snapshot, opts Options) {
	if v, ok := s.vars[EnvDebug]; ok && v != "" {
		s.Debug = parseBool(v)
	} else {
		s.Debug = s.Env != ProdEnv
	}
	if opts.NoDebug {
		s.Debug = false
		s.vars[EnvDebug] = "0"
	}

	if v := s.vars[EnvConfigDir]; v != "" {
		if !filepath.IsAbs(v) {
			v = filepath.Join(s.ProjectDir, v)
		}
		s.ConfigDir = filepath.Clean(v)
	}
	if v := s.vars[EnvLogLevel]; v != "" {
		s.LogLevel = strings.ToLower(v)
	}
	if v := s.vars[EnvLogFormat]; v != "" {
		s.LogFormat = strings.ToLower(v)
	}
	if v := s.vars[EnvHTTPAddr]; v != "" {
		s.HTTPAddr = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(s *Snapshot) {
	if s.ConfigDir == "" {
		s.ConfigDir = filepath.Join(s.ProjectDir, "config")
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
		if s.Debug {
			s.LogLevel = "debug"
		}
	}
	if s.LogFormat == "" {
		s.LogFormat = "json"
		if s.Debug {
			s.LogFormat = "console"
		}
	}
	if s.HTTPAddr == "" {
		s.HTTPAddr = DefaultHTTPAddr
	}
}

func validateEnvName(env string) error {
	if !envNamePattern.MatchString(env) {
		return fmt.Errorf("environment name %q must match %s", env, envNamePattern)
	}
	return nil
}

func validate(s *Snapshot) error {
	if err := validateEnvName(s.Env); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(s.LogLevel); err != nil || s.LogLevel == "" {
		return fmt.Errorf("log level %q is not valid", s.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[s.LogFormat] {
		return fmt.Errorf("log format must be 'json' or 'console', got %q", s.LogFormat)
	}
	return nil
}
