package config

import (
	"auralend/core"

	configUtil "github.com/fox-one/pkg/config"
)

// Load load config file
func Load(configFile string, config *core.Config) error {
	configUtil.AutomaticLoadEnv("AURALEND")
	if err := configUtil.LoadYaml(configFile, config); err != nil {
		return err
	}

	defaults(config)
	return nil
}

func defaults(config *core.Config) {
	if config.Port == 0 {
		config.Port = 7001
	}

	o := &config.Oracle
	if o.StalenessSeconds == 0 {
		o.StalenessSeconds = 120
	}
	if o.EmergencySeconds == 0 {
		o.EmergencySeconds = 3 * 60 * 60
	}
	if o.FutureGraceSeconds == 0 {
		o.FutureGraceSeconds = 30
	}
	if o.CacheSeconds == 0 {
		o.CacheSeconds = 5
	}
	if o.ConfidenceBps == 0 {
		o.ConfidenceBps = 200
	}
	if o.UsdConfidenceBps == 0 {
		o.UsdConfidenceBps = 300
	}
	if o.EmergencyConfidence == 0 {
		o.EmergencyConfidence = 1000
	}
	if o.MaxMovementBps == 0 {
		o.MaxMovementBps = 2000
	}

	m := &config.Market
	if m.SecondsPerSequence == 0 {
		m.SecondsPerSequence = 1
	}
	if m.SafetyBufferBps == 0 {
		m.SafetyBufferBps = 500
	}
	if m.MinHealthFactorBps == 0 {
		m.MinHealthFactorBps = 11000
	}
	if m.MaxStalenessSequences == 0 {
		m.MaxStalenessSequences = 240
	}
}
