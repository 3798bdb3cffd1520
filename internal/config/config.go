package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Tolerance ToleranceConfig `yaml:"tolerance" mapstructure:"tolerance"`
	Ladder    LadderConfig    `yaml:"ladder" mapstructure:"ladder"`
	Solver    SolverConfig    `yaml:"solver" mapstructure:"solver"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ToleranceConfig names every rounding and comparison tolerance the engine
// uses. These are deliberately configuration, not literals buried in code.
type ToleranceConfig struct {
	// PennyTolerance is the allowance for a single rounding operation, in
	// currency units. Checks scale it by the number of roundings involved.
	PennyTolerance float64 `yaml:"penny_tolerance" mapstructure:"penny_tolerance"`
	// PriceTolerancePct is the relative slack on line arithmetic; a line is
	// incoherent only when it exceeds both the absolute and relative bounds.
	PriceTolerancePct float64 `yaml:"price_tolerance_pct" mapstructure:"price_tolerance_pct"`
	// QuantityTolerance is the slack on pack-descriptor arithmetic.
	QuantityTolerance float64 `yaml:"quantity_tolerance" mapstructure:"quantity_tolerance"`
	// ReferenceConflictThreshold is the relative gap between the two
	// highest-ranked price sources above which the ladder reports a conflict.
	ReferenceConflictThreshold float64 `yaml:"reference_conflict_threshold" mapstructure:"reference_conflict_threshold"`
}

// LadderConfig fixes the authority ranking of price sources. Entries ending in
// "*" prefix-match, so "venue_memory_*" covers venue_memory_90d and friends.
type LadderConfig struct {
	Authority []string `yaml:"authority" mapstructure:"authority"`
}

// SolverConfig configures the discount hypothesis search.
type SolverConfig struct {
	// CategoryTolerance is the per-category residual tolerance in currency
	// units; "default" is the fallback.
	CategoryTolerance map[string]float64 `yaml:"category_tolerance" mapstructure:"category_tolerance"`
	// NewSKUTolBonus widens the tolerance for SKUs with no purchase history.
	NewSKUTolBonus float64 `yaml:"new_sku_tol_bonus" mapstructure:"new_sku_tol_bonus"`
	// LargeDiscountPct is the discount magnitude above which a fitting percent
	// hypothesis is always reported as off-contract.
	LargeDiscountPct float64 `yaml:"large_discount_pct" mapstructure:"large_discount_pct"`
	// FixedStep is the granularity fixed-amount-off allowances snap to.
	FixedStep float64 `yaml:"fixed_step" mapstructure:"fixed_step"`
	// Tiers is the quantity-tier table for tiered-volume deals, ordered by
	// ascending MinQuantity.
	Tiers []QuantityTier `yaml:"tiers" mapstructure:"tiers"`
}

// QuantityTier is one row of the tiered-volume discount table.
type QuantityTier struct {
	MinQuantity float64 `yaml:"min_quantity" mapstructure:"min_quantity"`
	DiscountPct float64 `yaml:"discount_pct" mapstructure:"discount_pct"`
}

// EngineConfig configures batch processing.
type EngineConfig struct {
	MaxConcurrentLines int `yaml:"max_concurrent_lines" mapstructure:"max_concurrent_lines"`
}

// EnrichConfig configures the optional narrative enrichment stage. The core
// never reads this; only the enrichment client does.
type EnrichConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	MaxTokens      int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	CallsPerSecond float64 `yaml:"calls_per_second" mapstructure:"calls_per_second"`
	MaxCalls       int     `yaml:"max_calls" mapstructure:"max_calls"`
}

// ServerConfig configures the review webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CategoryToleranceFor returns the residual tolerance for a category, falling
// back to the "default" entry.
func (s SolverConfig) CategoryToleranceFor(category string) float64 {
	if tol, ok := s.CategoryTolerance[category]; ok {
		return tol
	}
	return s.CategoryTolerance["default"]
}

// Default returns the built-in configuration without consulting file or
// environment. Tests and library consumers start from this.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; an unmarshal failure here is a programming error.
		panic(err)
	}
	cfg.Solver.Tiers = defaultTiers()
	return &cfg
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LINECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if len(cfg.Solver.Tiers) == 0 {
		cfg.Solver.Tiers = defaultTiers()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tolerance.penny_tolerance", 0.01)
	v.SetDefault("tolerance.price_tolerance_pct", 0.01)
	v.SetDefault("tolerance.quantity_tolerance", 0.5)
	v.SetDefault("tolerance.reference_conflict_threshold", 0.10)
	v.SetDefault("ladder.authority", []string{"contract_book", "supplier_master", "venue_memory_*"})
	v.SetDefault("solver.category_tolerance", map[string]float64{
		"default": 0.50,
		"spirits": 0.75,
	})
	v.SetDefault("solver.new_sku_tol_bonus", 0.25)
	v.SetDefault("solver.large_discount_pct", 0.30)
	v.SetDefault("solver.fixed_step", 0.25)
	v.SetDefault("engine.max_concurrent_lines", 8)
	v.SetDefault("enrich.model", "claude-haiku-4-5-20251001")
	v.SetDefault("enrich.max_tokens", 1024)
	v.SetDefault("enrich.calls_per_second", 2.0)
	v.SetDefault("enrich.max_calls", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// defaultTiers covers the common wholesale volume breaks. Viper cannot default
// a slice of structs, so these are applied after unmarshal.
func defaultTiers() []QuantityTier {
	return []QuantityTier{
		{MinQuantity: 6, DiscountPct: 0.05},
		{MinQuantity: 12, DiscountPct: 0.10},
		{MinQuantity: 24, DiscountPct: 0.15},
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
