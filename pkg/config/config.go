package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FitnessWeights balances the composite fitness score used by the
// optimizer.
type FitnessWeights struct {
	Sharpe   float64 `yaml:"sharpe" default:"0.4" validate:"gte=0"`
	WinRate  float64 `yaml:"win_rate" default:"0.3" validate:"gte=0"`
	Drawdown float64 `yaml:"drawdown" default:"0.3" validate:"gte=0"`
}

// Scoring holds the gap-analysis constants. The values are hand-tuned
// defaults, not load-bearing correctness requirements, so they stay
// configurable.
type Scoring struct {
	AccuracyGapCap    float64 `yaml:"accuracy_gap_cap" default:"40"`
	SharpeGapCap      float64 `yaml:"sharpe_gap_cap" default:"40"`
	TrendPenalty      float64 `yaml:"trend_penalty" default:"20"`
	TrendBonus        float64 `yaml:"trend_bonus" default:"10"`
	SlopeThreshold    float64 `yaml:"slope_threshold" default:"0.001"`
	LeakagePenalty    float64 `yaml:"leakage_penalty" default:"20"`
	LeakageGapBelow   float64 `yaml:"leakage_gap_below" default:"-0.05"`
	StableCV          float64 `yaml:"stable_cv" default:"0.15"`
	StableAccuracy    float64 `yaml:"stable_accuracy" default:"0.70"`
	SafeBelow         float64 `yaml:"safe_below" default:"30"`
	RejectAbove       float64 `yaml:"reject_above" default:"70"`
	DegradationGrowth float64 `yaml:"degradation_growth" default:"1.2"`
}

// Validation is the single injected configuration surface of the engine.
// The core packages never read files or environment variables themselves.
type Validation struct {
	InitialCapital float64 `yaml:"initial_capital" default:"10000" validate:"gt=0"`

	// Purged cross-validation
	NSplits     int     `yaml:"n_splits" default:"5" validate:"gte=2,lte=20"`
	EmbargoPct  float64 `yaml:"embargo_pct" default:"0.01" validate:"gte=0,lte=0.1"`
	TestSizePct float64 `yaml:"test_size_pct" default:"0.2" validate:"gt=0,lte=0.5"`
	MinTrainPct float64 `yaml:"min_train_pct" default:"0.3" validate:"gt=0,lt=1"`

	// Walk-forward
	TrainWindow int `yaml:"train_window" default:"500" validate:"gt=0"`
	TestWindow  int `yaml:"test_window" default:"100" validate:"gt=0"`
	Step        int `yaml:"step" default:"100" validate:"gt=0"`

	// Simulator execution model
	MinConfidence     float64 `yaml:"min_confidence" default:"0.7" validate:"gte=0,lte=1"`
	MinMovementPct    float64 `yaml:"min_movement_pct" default:"1.0" validate:"gte=0"`
	StopLossATRMult   float64 `yaml:"stop_loss_atr_mult" default:"2.0" validate:"gt=0"`
	TakeProfitATRMult float64 `yaml:"take_profit_atr_mult" default:"3.0" validate:"gt=0"`
	SlippagePct       float64 `yaml:"slippage_pct" default:"0.0005" validate:"gte=0"`
	CommissionPct     float64 `yaml:"commission_pct" default:"0.001" validate:"gte=0"`
	MaxNotionalPct    float64 `yaml:"max_notional_pct" default:"0.95" validate:"gt=0,lte=1"`

	// Genetic optimizer
	Optimize           bool           `yaml:"optimize"`
	PopulationSize     int            `yaml:"population_size" default:"50" validate:"gte=2"`
	Generations        int            `yaml:"generations" default:"20" validate:"gte=1"`
	MutationRate       float64        `yaml:"mutation_rate" default:"0.1" validate:"gte=0,lte=1"`
	CrossoverRate      float64        `yaml:"crossover_rate" default:"0.7" validate:"gte=0,lte=1"`
	TournamentSize     int            `yaml:"tournament_size" default:"3" validate:"gte=2"`
	PlateauGenerations int            `yaml:"plateau_generations" default:"5" validate:"gte=1"`
	Seed               int64          `yaml:"seed" default:"42"`
	FitnessWeights     FitnessWeights `yaml:"fitness_weights"`

	// Orchestrator
	Workers       int           `yaml:"workers" validate:"gte=0"` // 0 = number of CPUs
	SymbolTimeout time.Duration `yaml:"symbol_timeout" default:"10m"`

	// Portfolio recommendation filter
	RecommendMinTrades  int     `yaml:"recommend_min_trades" default:"5" validate:"gte=0"`
	RecommendMinWinRate float64 `yaml:"recommend_min_win_rate" default:"0.55" validate:"gte=0,lte=1"`

	Scoring Scoring `yaml:"scoring"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Logging     struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json or console
		Output string `yaml:"output"`
		// Collect aggregates repeated error logs and ships them to a
		// Kafka topic. Requires the kafka section to be enabled.
		Collect struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval"`
			Threshold int           `yaml:"threshold"`
			Topic     string        `yaml:"topic"`
		} `yaml:"collect"`
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Data struct {
		Dir       string   `yaml:"dir"`
		Symbols   []string `yaml:"symbols"`
		Timeframe string   `yaml:"timeframe"`
		Start     string   `yaml:"start"`
		End       string   `yaml:"end"`
	} `yaml:"data"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Validation Validation `yaml:"validation"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c.Validation); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Data.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Default returns a configuration with all validation defaults applied and
// no external backends enabled. Used by tests and the CLI when no config
// file is given.
func Default() (*Config, error) {
	var c Config
	c.Environment = "development"
	c.Logging.Level = "info"
	c.Logging.Format = "console"
	c.Logging.Output = "stdout"
	if err := defaults.Set(&c.Validation); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if err := c.Validation.Validate(); err != nil {
		return fmt.Errorf("validation section: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate applies struct tags plus the cross-field rules the tags cannot
// express.
func (v *Validation) Validate() error {
	if err := validate.Struct(v); err != nil {
		return err
	}
	// Overlapping test windows would double-count out-of-sample bars.
	if v.Step < v.TestWindow {
		return fmt.Errorf("step (%d) must be >= test_window (%d)", v.Step, v.TestWindow)
	}
	return nil
}
