package config

import (
	"path/filepath"
	"testing"

	"github.com/eos/eos-sub010/internal/modules/sampling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("EOS_DATA_DIR", tmpDir)

	cfg, err := Load()
	require.NoError(t, err)

	absPath, err := filepath.Abs(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, absPath, cfg.DataDir)
	assert.Equal(t, filepath.Join(absPath, "chains.db"), cfg.ChainDBPath())

	assert.Equal(t, 4, cfg.Sampler.Chains)
	assert.Equal(t, 1000, cfg.Sampler.PreRunMin)
	assert.Equal(t, 1000000, cfg.Sampler.PreRunMax)
	assert.Equal(t, 100, cfg.Sampler.Chunks)
	assert.Equal(t, 1000, cfg.Sampler.ChunkSize)
	assert.Equal(t, sampling.DefaultConfig().PreRunHistory, cfg.Sampler.PreRunHistory)
	assert.Equal(t, 0.15, cfg.Sampler.MinEfficiency)
	assert.Equal(t, 0.35, cfg.Sampler.MaxEfficiency)
	assert.Equal(t, 1.1, cfg.Sampler.RValueCriterion)
	assert.True(t, cfg.Sampler.StrictRValue)
	assert.Equal(t, sampling.ProposalGaussian, cfg.Sampler.Proposal)
	assert.Equal(t, 1e-4, cfg.Integration.EpsRel)
	assert.Equal(t, 1000, cfg.Integration.MaxIntervals)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("EOS_DATA_DIR", t.TempDir())
	t.Setenv("SAMPLER_CHAINS", "8")
	t.Setenv("SAMPLER_SEED", "17")
	t.Setenv("SAMPLER_PRERUN_UPDATE", "400")
	t.Setenv("SAMPLER_PROPOSAL", sampling.ProposalStudentT)
	t.Setenv("SAMPLER_STRICT_RVALUE", "false")
	t.Setenv("INTEGRATION_EPSREL", "1e-6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Sampler.Chains)
	assert.Equal(t, uint64(17), cfg.Sampler.Seed)
	assert.Equal(t, 400, cfg.Sampler.PreRunUpdate)
	assert.Equal(t, 400, cfg.Sampler.PreRunMin, "minimum follows the update interval")
	assert.Equal(t, 8000, cfg.Sampler.PreRunHistory, "history follows the update interval")
	assert.False(t, cfg.Sampler.StrictRValue)

	sc := cfg.SamplerConfig()
	assert.Equal(t, 8, sc.Chains)
	assert.Equal(t, sampling.ProposalStudentT, sc.Proposal)
	assert.Equal(t, 8000, sc.PreRunHistory)

	ic := cfg.IntegrationConfig()
	assert.Equal(t, 1e-6, ic.EpsRel)
}

func TestLoad_InvalidValueFallsBackToDefault(t *testing.T) {
	t.Setenv("EOS_DATA_DIR", t.TempDir())
	t.Setenv("SAMPLER_CHAINS", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Sampler.Chains)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Sampler: SamplerConfig{
				Chains: 4, PreRunMin: 1000, PreRunMax: 10000, PreRunUpdate: 1000,
				Chunks: 10, ChunkSize: 100, MinEfficiency: 0.15, MaxEfficiency: 0.35,
				RValueCriterion: 1.1, SkipInitial: 0.1, Proposal: sampling.ProposalGaussian, StudentTDOF: 1,
			},
			Integration: IntegrationConfig{EpsRel: 1e-4, MaxIntervals: 1000},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no chains", func(c *Config) { c.Sampler.Chains = 0 }, "SAMPLER_CHAINS"},
		{"zero chunk size", func(c *Config) { c.Sampler.ChunkSize = 0 }, "SAMPLER_CHUNK_SIZE"},
		{"inverted efficiency band", func(c *Config) { c.Sampler.MinEfficiency = 0.5 }, "efficiency band"},
		{"efficiency above one", func(c *Config) { c.Sampler.MaxEfficiency = 1.5 }, "efficiency band"},
		{"rvalue below one", func(c *Config) { c.Sampler.RValueCriterion = 0.9 }, "SAMPLER_RVALUE_CRITERION"},
		{"skip initial of one", func(c *Config) { c.Sampler.SkipInitial = 1 }, "SAMPLER_SKIP_INITIAL"},
		{"unknown proposal", func(c *Config) { c.Sampler.Proposal = "Cauchy" }, "SAMPLER_PROPOSAL"},
		{"history shorter than one update", func(c *Config) { c.Sampler.PreRunHistory = 500 }, "SAMPLER_PRERUN_HISTORY"},
		{"min above max", func(c *Config) { c.Sampler.PreRunMin = 20000 }, "SAMPLER_PRERUN_MIN"},
		{"bad epsrel", func(c *Config) { c.Integration.EpsRel = 0 }, "integration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
