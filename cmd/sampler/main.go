// Package main runs a Markov-chain analysis: it loads an analysis file,
// samples its posterior with several adaptive chains, stores the chains in
// the chain database and polishes the best mode found.
//
// Configuration comes from the environment (.env is read when present).
// The analysis file is EOS_ANALYSIS_FILE, or the first command-line argument.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/eos/eos-sub010/internal/config"
	"github.com/eos/eos-sub010/internal/database"
	"github.com/eos/eos-sub010/internal/modules/chainstore"
	"github.com/eos/eos-sub010/internal/modules/decays"
	"github.com/eos/eos-sub010/internal/modules/parameters"
	"github.com/eos/eos-sub010/internal/modules/sampling"
	"github.com/eos/eos-sub010/internal/modules/statistics"
	"github.com/eos/eos-sub010/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	if len(os.Args) > 1 {
		cfg.AnalysisFile = os.Args[1]
	}
	if cfg.AnalysisFile == "" {
		log.Fatal().Msg("No analysis file given (set EOS_ANALYSIS_FILE or pass a path)")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		log.Info().
			Uint64("total_mb", vm.Total/1024/1024).
			Uint64("available_mb", vm.Available/1024/1024).
			Msg("Memory")
	}

	// Stop between chunks on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(database.Config{
		Path:    cfg.ChainDBPath(),
		Profile: database.ProfileChains,
		Name:    "chains",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open chain database")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate chain database")
	}

	analysis, err := statistics.LoadAnalysis(cfg.AnalysisFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load analysis")
	}
	params, err := parameters.Defaults()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load default parameters")
	}
	posterior, err := analysis.Build(params, decays.IntegrationOptions(cfg.IntegrationConfig()), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build posterior")
	}

	samplerCfg := cfg.SamplerConfig()
	cfgJSON, err := json.Marshal(samplerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode sampler configuration")
	}

	repo := chainstore.NewRepository(db.Conn(), log)
	runID, err := repo.CreateRun(posterior.Descriptions(), string(cfgJSON))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create run")
	}
	writer, err := repo.Writer(runID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open run writer")
	}

	s, err := sampling.New(posterior, samplerCfg, writer, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sampler")
	}

	start := time.Now()
	info, err := s.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("run_id", runID).Msg("Sampling failed")
	}
	log.Info().
		Str("run_id", runID).
		Bool("converged", info.Converged).
		Int("prerun_iterations", info.Iterations).
		Floats64("rvalues", info.RValues).
		Floats64("efficiencies", info.Efficiencies).
		Dur("elapsed", time.Since(start)).
		Msg("Sampling finished")

	best := bestMode(s.Chains())
	mode, err := statistics.RefineMode(posterior, best.Point, statistics.DefaultRefineConfig())
	if err != nil {
		log.Error().Err(err).Msg("Failed to refine mode")
		return
	}

	event := log.Info().Str("run_id", runID).Float64("log_posterior", mode.LogDensity)
	for i, d := range posterior.Descriptions() {
		event = event.Float64(d.Name, mode.Point[i])
	}
	event.Msg("Best-fit point")
}

// bestMode returns the highest mode seen by any chain
func bestMode(chains []*sampling.Chain) sampling.State {
	best := chains[0].Statistics().Mode
	for _, c := range chains[1:] {
		if m := c.Statistics().Mode; m.LogDensity > best.LogDensity {
			best = m
		}
	}
	return best
}
