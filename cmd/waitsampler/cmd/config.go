package cmd

import (
	"time"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"

	"github.com/waitsampling-io/waitsampling"
)

// FileConfig is the on-disk configuration of the run command. Periods are
// in milliseconds to match the classic tunables; zero disables a stream.
type FileConfig struct {
	Socket  string `toml:"socket"`
	Workers int    `toml:"workers"`

	HistoryPeriodMs   int  `toml:"history_period"`
	ProfilePeriodMs   int  `toml:"profile_period"`
	HistorySize       int  `toml:"history_size"`
	MaxProfileEntries int  `toml:"max_profile_entries"`
	ProfilePid        bool `toml:"profile_pid"`
	ProfileQueries    bool `toml:"profile_queries"`
}

func defaultFileConfig() FileConfig {
	def := waitsampling.DefaultConfig()
	return FileConfig{
		Workers:           64,
		HistoryPeriodMs:   int(def.HistoryPeriod / time.Millisecond),
		ProfilePeriodMs:   int(def.ProfilePeriod / time.Millisecond),
		HistorySize:       def.HistorySize,
		MaxProfileEntries: def.MaxProfileEntries,
		ProfilePid:        def.PerProcess,
		ProfileQueries:    def.PerQuery,
	}
}

func loadFileConfig(path string) (FileConfig, error) {
	fc := defaultFileConfig()
	if path == "" {
		return fc, nil
	}
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fc, errors.WrapIff(err, "loading config file %s", path)
	}
	return fc, nil
}

// sampling converts the file representation into collector settings.
func (fc FileConfig) sampling() waitsampling.Config {
	return waitsampling.Config{
		HistoryPeriod:     time.Duration(fc.HistoryPeriodMs) * time.Millisecond,
		ProfilePeriod:     time.Duration(fc.ProfilePeriodMs) * time.Millisecond,
		HistorySize:       fc.HistorySize,
		MaxProfileEntries: fc.MaxProfileEntries,
		PerProcess:        fc.ProfilePid,
		PerQuery:          fc.ProfileQueries,
	}
}

// fileSource re-reads the config file on every collector reload.
type fileSource struct {
	path string
}

func (s fileSource) Load() (waitsampling.Config, error) {
	fc, err := loadFileConfig(s.path)
	if err != nil {
		return waitsampling.Config{}, err
	}
	return fc.sampling(), nil
}
