package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"skill-duel/server/engine"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port        string `env:"PORT"         envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	RulesFile   string `env:"RULES_FILE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV"   envDefault:"false"`
	NoColor  string `env:"NO_COLOR"`

	// DeckSeed 0 draws a fresh seed per process.
	DeckSeed uint64 `env:"DECK_SEED" envDefault:"0"`

	SelectionDelay time.Duration `env:"SELECTION_DELAY"  envDefault:"500ms"`
	NextRoundDelay time.Duration `env:"NEXT_ROUND_DELAY" envDefault:"1500ms"`

	BenchMatches   int    `env:"BENCH_MATCHES"    envDefault:"200"`
	BenchWorkers   int    `env:"BENCH_WORKERS"    envDefault:"4"`
	BenchMaxRounds int    `env:"BENCH_MAX_ROUNDS" envDefault:"200"`
	BenchPolicyA   string `env:"BENCH_POLICY_A"   envDefault:"greedy"`
	BenchPolicyB   string `env:"BENCH_POLICY_B"   envDefault:"random"`
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SelectionDelay < 0 || cfg.NextRoundDelay < 0 {
		return Config{}, fmt.Errorf("delays must not be negative")
	}
	if cfg.BenchWorkers < 1 {
		cfg.BenchWorkers = 1
	}
	return cfg, nil
}

// rulesFile mirrors the tunable engine.Rules; absent keys keep their
// defaults. Hands are always three cards, so hand_size is not a key.
type rulesFile struct {
	MaxHp           *int    `yaml:"max_hp"`
	MaxMp           *int    `yaml:"max_mp"`
	StartDistance   *int    `yaml:"start_distance"`
	MpRegenPerRound *int    `yaml:"mp_regen_per_round"`
	HealAmount      *int    `yaml:"heal_amount"`
	RestoreMpAmount *int    `yaml:"restore_mp_amount"`
	BlockThreshold  *int    `yaml:"block_threshold"`
	PlayerName      *string `yaml:"player_name"`
	OpponentName    *string `yaml:"opponent_name"`
}

// LoadRules returns the default rules, overridden by path when it is set.
func LoadRules(path string) (engine.Rules, error) {
	if path == "" {
		return engine.DefaultRules(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return engine.Rules{}, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(b)
}

func ParseRules(b []byte) (engine.Rules, error) {
	var f rulesFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return engine.Rules{}, fmt.Errorf("decode rules: %w", err)
	}
	r := engine.DefaultRules()
	setInt(&r.MaxHp, f.MaxHp)
	setInt(&r.MaxMp, f.MaxMp)
	setInt(&r.StartDistance, f.StartDistance)
	setInt(&r.MpRegenPerRound, f.MpRegenPerRound)
	setInt(&r.HealAmount, f.HealAmount)
	setInt(&r.RestoreMpAmount, f.RestoreMpAmount)
	setInt(&r.BlockThreshold, f.BlockThreshold)
	if f.PlayerName != nil && *f.PlayerName != "" {
		r.PlayerName = *f.PlayerName
	}
	if f.OpponentName != nil && *f.OpponentName != "" {
		r.OpponentName = *f.OpponentName
	}
	if err := r.Validate(); err != nil {
		return engine.Rules{}, err
	}
	return r, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
