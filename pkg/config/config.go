// Package config loads pgcache settings from defaults, a YAML file, the
// environment and command line flags, in increasing precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/srodi/pgcache/pkg/output"
	"github.com/srodi/pgcache/pkg/report"
	"github.com/srodi/pgcache/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. PGCACHE_PROC_ROOT.
const EnvPrefix = "PGCACHE"

// DefaultTimeout bounds a whole run.
const DefaultTimeout = 10 * time.Second

// Config is the fully merged run configuration.
type Config struct {
	PID       int           `mapstructure:"pid"`
	Files     []string      `mapstructure:"files"`
	Children  bool          `mapstructure:"children"`
	Container string        `mapstructure:"container"`
	GE        float64       `mapstructure:"ge"`
	LE        float64       `mapstructure:"le"`
	Sort      string        `mapstructure:"sort"`
	Output    string        `mapstructure:"output"`
	Markdown  bool          `mapstructure:"markdown"`
	Ranges    bool          `mapstructure:"ranges"`
	Summary   bool          `mapstructure:"summary"`
	Textfile  string        `mapstructure:"textfile"`
	ProcRoot  string        `mapstructure:"proc_root"`
	LogLevel  string        `mapstructure:"log_level"`
	Banner    bool          `mapstructure:"banner"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("pid", 0)
	v.SetDefault("files", []string{})
	v.SetDefault("children", false)
	v.SetDefault("container", "")
	v.SetDefault("ge", 0.0)
	v.SetDefault("le", 100.0)
	v.SetDefault("sort", "")
	v.SetDefault("output", string(output.FormatTable))
	v.SetDefault("markdown", false)
	v.SetDefault("ranges", false)
	v.SetDefault("summary", false)
	v.SetDefault("textfile", "")
	v.SetDefault("proc_root", types.DefaultProcRoot)
	v.SetDefault("log_level", "warn")
	v.SetDefault("banner", true)
	v.SetDefault("timeout", DefaultTimeout)
}

// Load reads configFile (or pgcache.yaml from the default search path when
// empty), applies PGCACHE_* overrides and decodes the result. A missing
// default config file is not an error; a missing explicit one is.
func Load(v *viper.Viper, configFile string) (Config, error) {
	var cfg Config

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("pgcache")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pgcache"))
		}
		v.AddConfigPath("/etc/pgcache")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return cfg, errors.Wrap(err, "reading config")
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "decoding config")
	}
	return cfg, nil
}

// Range returns the configured percentage filter.
func (c Config) Range() report.Range {
	return report.Range{GE: c.GE, LE: c.LE}
}

// SortOrder parses the configured sort order.
func (c Config) SortOrder() (report.SortOrder, error) {
	return report.ParseSortOrder(c.Sort)
}

// Format resolves the renderer; markdown=true upgrades the default table.
func (c Config) Format() (output.Format, error) {
	f, err := output.ParseFormat(c.Output)
	if err != nil {
		return "", err
	}
	if c.Markdown && f == output.FormatTable {
		return output.FormatMarkdown, nil
	}
	return f, nil
}

// Validate checks everything that must be rejected before any work starts.
func (c Config) Validate() error {
	if err := c.Range().Validate(); err != nil {
		return err
	}
	if _, err := c.SortOrder(); err != nil {
		return err
	}
	if _, err := c.Format(); err != nil {
		return err
	}
	if c.PID < 0 {
		return errors.Errorf("invalid pid %d", c.PID)
	}
	if c.Timeout < 0 {
		return errors.Errorf("invalid timeout %s", c.Timeout)
	}
	return nil
}
