package config

import (
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watcher watches the configuration file and invokes callbacks with the
// reloaded Config. Only changes that survive Validate are delivered; the
// daemon uses this to re-apply the log level without restarting.
type Watcher struct {
	v       *viper.Viper
	cfgFile string

	mu        sync.RWMutex
	callbacks []func(*Config)
}

// NewWatcher creates a watcher for the given config file (or the discovered
// one when cfgFile is empty).
func NewWatcher(cfgFile string) (*Watcher, error) {
	v := newViper()
	setViperDefaults(v, Default())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return &Watcher{v: v, cfgFile: cfgFile}, nil
}

// OnChange registers a callback invoked with each valid reloaded config.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching. Callbacks run on viper's watch goroutine.
func (w *Watcher) Start() {
	w.v.OnConfigChange(func(fsnotify.Event) {
		w.handleChange()
	})
	w.v.WatchConfig()
}

func (w *Watcher) handleChange() {
	var cfg Config
	if err := w.v.Unmarshal(&cfg); err != nil {
		return
	}
	if err := cfg.Validate(); err != nil {
		return
	}

	w.mu.RLock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(&cfg)
	}
}
