// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/eos/eos-sub010/internal/modules/integration"
	"github.com/eos/eos-sub010/internal/modules/sampling"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for chain databases, always absolute
	AnalysisFile string // YAML analysis description
	ChainDB      string // Chain database file name inside DataDir
	LogLevel     string
	LogPretty    bool
	Sampler      SamplerConfig
	Integration  IntegrationConfig
}

// SamplerConfig holds the Markov-chain sampler settings
type SamplerConfig struct {
	Chains          int
	Seed            uint64
	Workers         int // 0 = logical CPU count
	Parallelize     bool
	PreRunMin       int
	PreRunMax       int
	PreRunUpdate    int
	PreRunHistory   int // 0 keeps the whole pre-run
	Chunks          int
	ChunkSize       int
	MinEfficiency   float64
	MaxEfficiency   float64
	RValueCriterion float64
	StrictRValue    bool
	SkipInitial     float64
	Proposal        string
	StudentTDOF     float64
	StorePreRun     bool
	Store           bool
	ForceMainRun    bool
}

// IntegrationConfig holds the default integrator tolerances
type IntegrationConfig struct {
	EpsRel       float64
	MaxIntervals int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("EOS_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	defaults := sampling.DefaultConfig()
	update := getEnvAsInt("SAMPLER_PRERUN_UPDATE", defaults.PreRunUpdate)

	cfg := &Config{
		DataDir:      absDataDir,
		AnalysisFile: getEnv("EOS_ANALYSIS_FILE", ""),
		ChainDB:      getEnv("EOS_CHAIN_DB", "chains.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getEnvAsBool("LOG_PRETTY", true),
		Sampler: SamplerConfig{
			Chains:          getEnvAsInt("SAMPLER_CHAINS", defaults.Chains),
			Seed:            uint64(getEnvAsInt("SAMPLER_SEED", int(defaults.Seed))),
			Workers:         getEnvAsInt("SAMPLER_WORKERS", 0),
			Parallelize:     getEnvAsBool("SAMPLER_PARALLELIZE", defaults.Parallelize),
			PreRunMin:       getEnvAsInt("SAMPLER_PRERUN_MIN", update), // minimum defaults to one update
			PreRunMax:       getEnvAsInt("SAMPLER_PRERUN_MAX", defaults.PreRunMax),
			PreRunUpdate:    update,
			PreRunHistory:   getEnvAsInt("SAMPLER_PRERUN_HISTORY", 20*update),
			Chunks:          getEnvAsInt("SAMPLER_CHUNKS", defaults.Chunks),
			ChunkSize:       getEnvAsInt("SAMPLER_CHUNK_SIZE", defaults.ChunkSize),
			MinEfficiency:   getEnvAsFloat("SAMPLER_MIN_EFFICIENCY", defaults.MinEfficiency),
			MaxEfficiency:   getEnvAsFloat("SAMPLER_MAX_EFFICIENCY", defaults.MaxEfficiency),
			RValueCriterion: getEnvAsFloat("SAMPLER_RVALUE_CRITERION", defaults.RValueCriterion),
			StrictRValue:    getEnvAsBool("SAMPLER_STRICT_RVALUE", defaults.StrictRValue),
			SkipInitial:     getEnvAsFloat("SAMPLER_SKIP_INITIAL", defaults.SkipInitial),
			Proposal:        getEnv("SAMPLER_PROPOSAL", defaults.Proposal),
			StudentTDOF:     getEnvAsFloat("SAMPLER_STUDENT_T_DOF", defaults.StudentTDOF),
			StorePreRun:     getEnvAsBool("SAMPLER_STORE_PRERUN", defaults.StorePreRun),
			Store:           getEnvAsBool("SAMPLER_STORE", defaults.Store),
			ForceMainRun:    getEnvAsBool("SAMPLER_FORCE_MAIN_RUN", false),
		},
		Integration: IntegrationConfig{
			EpsRel:       getEnvAsFloat("INTEGRATION_EPSREL", 1e-4),
			MaxIntervals: getEnvAsInt("INTEGRATION_MAX_INTERVALS", 1000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the sampler and integrator settings are usable
func (c *Config) Validate() error {
	s := c.Sampler
	if s.Chains <= 0 {
		return fmt.Errorf("SAMPLER_CHAINS must be positive, got %d", s.Chains)
	}
	if s.Chunks <= 0 || s.ChunkSize <= 0 {
		return fmt.Errorf("SAMPLER_CHUNKS and SAMPLER_CHUNK_SIZE must be positive, got %d and %d", s.Chunks, s.ChunkSize)
	}
	if s.PreRunUpdate <= 0 {
		return fmt.Errorf("SAMPLER_PRERUN_UPDATE must be positive, got %d", s.PreRunUpdate)
	}
	if s.PreRunMin > s.PreRunMax {
		return fmt.Errorf("SAMPLER_PRERUN_MIN (%d) exceeds SAMPLER_PRERUN_MAX (%d)", s.PreRunMin, s.PreRunMax)
	}
	if s.PreRunHistory < 0 || (s.PreRunHistory > 0 && s.PreRunHistory < s.PreRunUpdate) {
		return fmt.Errorf("SAMPLER_PRERUN_HISTORY (%d) must be 0 or at least SAMPLER_PRERUN_UPDATE (%d)", s.PreRunHistory, s.PreRunUpdate)
	}
	if s.MinEfficiency < 0 || s.MaxEfficiency > 1 || s.MinEfficiency >= s.MaxEfficiency {
		return fmt.Errorf("invalid efficiency band [%g, %g]", s.MinEfficiency, s.MaxEfficiency)
	}
	if s.RValueCriterion < 1 {
		return fmt.Errorf("SAMPLER_RVALUE_CRITERION must be at least 1, got %g", s.RValueCriterion)
	}
	if s.SkipInitial < 0 || s.SkipInitial >= 1 {
		return fmt.Errorf("SAMPLER_SKIP_INITIAL must be in [0, 1), got %g", s.SkipInitial)
	}
	switch s.Proposal {
	case sampling.ProposalGaussian, sampling.ProposalStudentT:
	default:
		return fmt.Errorf("unknown SAMPLER_PROPOSAL %q", s.Proposal)
	}
	if s.StudentTDOF <= 0 {
		return fmt.Errorf("SAMPLER_STUDENT_T_DOF must be positive, got %g", s.StudentTDOF)
	}
	if c.Integration.EpsRel <= 0 || c.Integration.MaxIntervals <= 0 {
		return fmt.Errorf("invalid integration settings: epsrel %g, max intervals %d", c.Integration.EpsRel, c.Integration.MaxIntervals)
	}
	return nil
}

// ChainDBPath returns the absolute chain database path
func (c *Config) ChainDBPath() string {
	if filepath.IsAbs(c.ChainDB) {
		return c.ChainDB
	}
	return filepath.Join(c.DataDir, c.ChainDB)
}

// SamplerConfig converts the environment settings into the sampler's configuration
func (c *Config) SamplerConfig() sampling.Config {
	s := c.Sampler
	cfg := sampling.DefaultConfig()
	cfg.Chains = s.Chains
	cfg.Seed = s.Seed
	cfg.Workers = s.Workers
	cfg.Parallelize = s.Parallelize
	cfg.PreRunMin = s.PreRunMin
	cfg.PreRunMax = s.PreRunMax
	cfg.PreRunUpdate = s.PreRunUpdate
	cfg.PreRunHistory = s.PreRunHistory
	cfg.Chunks = s.Chunks
	cfg.ChunkSize = s.ChunkSize
	cfg.MinEfficiency = s.MinEfficiency
	cfg.MaxEfficiency = s.MaxEfficiency
	cfg.RValueCriterion = s.RValueCriterion
	cfg.StrictRValue = s.StrictRValue
	cfg.SkipInitial = s.SkipInitial
	cfg.Proposal = s.Proposal
	cfg.StudentTDOF = s.StudentTDOF
	cfg.StorePreRun = s.StorePreRun
	cfg.Store = s.Store
	cfg.ForceMainRun = s.ForceMainRun
	return cfg
}

// IntegrationConfig returns the integrator defaults with the configured tolerances
func (c *Config) IntegrationConfig() integration.Config {
	cfg := integration.DefaultConfig()
	cfg.EpsRel = c.Integration.EpsRel
	cfg.MaxIntervals = c.Integration.MaxIntervals
	return cfg
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
