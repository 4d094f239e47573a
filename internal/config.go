package internal

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "NOVABUF"

type NovaBufConfig struct {
	AppName string `mapstructure:"app_name"`

	Buffer struct {
		NumBufs int `mapstructure:"num_bufs"`
	} `mapstructure:"buffer"`

	Storage struct {
		Workdir string `mapstructure:"workdir"`
	} `mapstructure:"storage"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Shell struct {
		HistoryFile string `mapstructure:"history_file"`
	} `mapstructure:"shell"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "novabuf")
	v.SetDefault("buffer.num_bufs", 128)
	v.SetDefault("storage.workdir", "./data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("shell.history_file", "")
}

// NewViper returns a viper instance with defaults and NOVABUF_* env overrides,
// e.g. NOVABUF_BUFFER_NUM_BUFS=64. flags may be nil.
func NewViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		binds := map[string]string{
			"buffer.num_bufs": "num-bufs",
			"storage.workdir": "data-dir",
			"log.level":       "log-level",
		}
		for key, name := range binds {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	return v, nil
}

// LoadConfig reads path (YAML) on top of defaults. An empty path uses
// defaults, environment and flags only.
func LoadConfig(path string, flags *pflag.FlagSet) (*NovaBufConfig, *viper.Viper, error) {
	v, err := NewViper(flags)
	if err != nil {
		return nil, nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*NovaBufConfig, error) {
	var cfg NovaBufConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Buffer.NumBufs <= 0 {
		return nil, fmt.Errorf("config: buffer.num_bufs must be positive, got %d", cfg.Buffer.NumBufs)
	}
	return &cfg, nil
}

// WatchConfig calls onChange with the re-decoded config every time the
// config file changes. Decoding errors are passed through and the old
// config stays in effect.
func WatchConfig(v *viper.Viper, onChange func(*NovaBufConfig, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(decode(v))
	})
	v.WatchConfig()
}
