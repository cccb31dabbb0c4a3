// Package profile loads runtime settings for troupe actors and casts from YAML.
//
// Load reads a file through viper, so every key can be overridden by a TROUPE_* environment
// variable (nested keys joined by an underscore, e.g. TROUPE_LOG_LEVEL). Parse decodes
// in-memory YAML with yaml.v3.
package profile

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ygrebnov/troupe/logging"
)

// EnvPrefix is the environment prefix honored by Load.
const EnvPrefix = "TROUPE"

// Profile is a serializable subset of runtime options.
type Profile struct {
	// Timeout is the idle timeout, e.g. "5s". Zero disables it.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Workers is the initial number of cast workers.
	Workers int `yaml:"workers" mapstructure:"workers"`
	// MaxWorkers caps concurrently running cast workers. Zero means no cap.
	MaxWorkers int `yaml:"maxWorkers" mapstructure:"maxWorkers"`
	// MailboxCapacity bounds the mailbox. Zero means unbounded.
	MailboxCapacity int `yaml:"mailboxCapacity" mapstructure:"mailboxCapacity"`
	// Fields are passed through to every handler call.
	Fields map[string]any `yaml:"fields" mapstructure:"fields"`
	// Log configures the runtime logger.
	Log logging.Config `yaml:"log" mapstructure:"log"`
}

// Default returns the profile matching the runtime defaults.
func Default() Profile {
	return Profile{
		Workers: 1,
		Log:     logging.DefaultConfig(),
	}
}

// Load reads a YAML profile file. Missing keys keep their Default values.
func Load(path string) (Profile, error) {
	p := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, p)

	if err := v.ReadInConfig(); err != nil {
		return Profile{}, errors.Wrapf(err, "profile: read %s", path)
	}
	if err := v.Unmarshal(&p); err != nil {
		return Profile{}, errors.Wrapf(err, "profile: decode %s", path)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Parse decodes a YAML profile. Missing keys keep their Default values.
func Parse(data []byte) (Profile, error) {
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, errors.Wrap(err, "profile: decode")
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate rejects negative sizes and durations.
func (p Profile) Validate() error {
	switch {
	case p.Timeout < 0:
		return errors.Errorf("profile: negative timeout %s", p.Timeout)
	case p.Workers < 0:
		return errors.Errorf("profile: negative workers %d", p.Workers)
	case p.MaxWorkers < 0:
		return errors.Errorf("profile: negative maxWorkers %d", p.MaxWorkers)
	case p.MailboxCapacity < 0:
		return errors.Errorf("profile: negative mailboxCapacity %d", p.MailboxCapacity)
	}
	return nil
}

// setDefaults registers every key so that environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, p Profile) {
	v.SetDefault("timeout", p.Timeout)
	v.SetDefault("workers", p.Workers)
	v.SetDefault("maxWorkers", p.MaxWorkers)
	v.SetDefault("mailboxCapacity", p.MailboxCapacity)
	v.SetDefault("log.level", p.Log.Level)
	v.SetDefault("log.path", p.Log.Path)
	v.SetDefault("log.console", p.Log.Console)
	v.SetDefault("log.file.maxSize", p.Log.File.MaxSize)
	v.SetDefault("log.file.maxBackups", p.Log.File.MaxBackups)
	v.SetDefault("log.file.maxAge", p.Log.File.MaxAge)
	v.SetDefault("log.file.compress", p.Log.File.Compress)
	v.SetDefault("log.file.localTime", p.Log.File.LocalTime)
}
