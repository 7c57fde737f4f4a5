package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the run identity, directories, feature flags and
// configuration, then emits a single structured zerolog event describing how
// the run was configured. One line in CI logs answers "what did this run do".
type StartupLogger struct {
	name        string
	version     string
	runID       string
	configFile  string
	resolveTime time.Duration

	dirs     map[string]string
	features map[string]bool
	config   map[string]string
}

// NewStartupLogger creates a StartupLogger for the named command.
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:     name,
		dirs:     make(map[string]string),
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// Version sets the build version baked into the binary.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// RunID sets the identifier shared by every artifact of this run.
func (s *StartupLogger) RunID(id string) *StartupLogger {
	s.runID = id
	return s
}

// ConfigFile records the configuration file that was loaded, if any.
func (s *StartupLogger) ConfigFile(path string) *StartupLogger {
	s.configFile = path
	return s
}

// Dir registers a directory the run reads or writes.
func (s *StartupLogger) Dir(label, path string) *StartupLogger {
	s.dirs[label] = path
	return s
}

// Feature registers a boolean feature flag (e.g. "dryRun", "cdnUpload").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// ResolveDuration records how long option resolution took.
func (s *StartupLogger) ResolveDuration(d time.Duration) *StartupLogger {
	s.resolveTime = d
	return s
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if the variable is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log emits a single structured INFO log event with all collected information.
func (s *StartupLogger) Log() {
	s.event(log.Info()).Msg("Run configuration resolved")
}

func (s *StartupLogger) event(evt *zerolog.Event) *zerolog.Event {
	identity := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", EnvOrDefault(LevelEnv, "info"))
	if s.version != "" {
		identity = identity.Str("version", s.version)
	}
	if s.runID != "" {
		identity = identity.Str("runId", s.runID)
	}
	evt = evt.Dict("run", identity)

	if s.configFile != "" {
		evt = evt.Str("configFile", s.configFile)
	}
	if len(s.dirs) > 0 {
		evt = evt.Dict("dirs", dictFromMap(s.dirs))
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}
	if s.resolveTime > 0 {
		evt = evt.Dur("resolveDuration", s.resolveTime)
	}
	return evt
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
