package core

import (
	"github.com/fox-one/pkg/store/db"
)

// OracleConfig price oracle settings
type OracleConfig struct {
	Endpoint            string `json:"endpoint" valid:"required"`
	StalenessSeconds    int64  `json:"staleness_seconds" valid:"required"`
	EmergencySeconds    int64  `json:"emergency_seconds"`
	FutureGraceSeconds  int64  `json:"future_grace_seconds"`
	CacheSeconds        int64  `json:"cache_seconds"`
	MaxMovementBps      uint64 `json:"max_movement_bps"`
	ConfidenceBps       uint64 `json:"confidence_bps"`
	UsdConfidenceBps    uint64 `json:"usd_confidence_bps"`
	EmergencyConfidence uint64 `json:"emergency_confidence_bps"`
}

// MarketConfig market-wide sequencing and admission settings
type MarketConfig struct {
	Genesis               int64  `json:"genesis" valid:"required"`
	SecondsPerSequence    int64  `json:"seconds_per_sequence" valid:"required"`
	SafetyBufferBps       uint64 `json:"safety_buffer_bps"`
	MinHealthFactorBps    uint64 `json:"min_health_factor_bps"`
	MaxStalenessSequences uint64 `json:"max_staleness_sequences"`
	Emergency             bool   `json:"emergency"`
}

// Config app config
type Config struct {
	DB     db.Config    `json:"db"`
	Port   int          `json:"port"`
	Oracle OracleConfig `json:"oracle"`
	Market MarketConfig `json:"market"`
}
