package sampling

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/eos/eos-sub010/internal/workers"
	"github.com/eos/eos-sub010/pkg/logger"
)

// PreRunInfo summarizes the pre-run
type PreRunInfo struct {
	Converged               bool
	Iterations              int
	IterationsAtConvergence int
	RValues                 []float64 // per parameter, from the last check
	Efficiencies            []float64 // per chain, from the last chunk
}

type rvalueFunc func(means, variances []float64, length int) (float64, error)

// Sampler drives several independent chains through pre-run and main run
type Sampler struct {
	cfg          Config
	descriptions []ParameterDescription
	chains       []*Chain
	store        Store
	pool         *workers.WorkerPool
	rvalue       rvalueFunc
	info         PreRunInfo
	log          zerolog.Logger
}

// New creates cfg.Chains chains, each on its own clone of density.
// A nil store disables persistence.
func New(density Density, cfg Config, store Store, log zerolog.Logger) (*Sampler, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	descriptions := density.Descriptions()
	if len(descriptions) != density.Dimension() || len(descriptions) == 0 {
		return nil, fmt.Errorf("density reports dimension %d with %d descriptions", density.Dimension(), len(descriptions))
	}

	s := &Sampler{
		cfg:          cfg,
		descriptions: descriptions,
		store:        store,
		pool:         workers.NewWorkerPool(cfg.Workers),
		rvalue:       Approximation,
		log:          logger.WithComponent(log, "sampler"),
	}
	if cfg.StrictRValue {
		s.rvalue = GelmanRubin
	}

	covariance := DiagonalCovariance(descriptions)
	for c := 0; c < cfg.Chains; c++ {
		d, err := density.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone density for chain %d: %w", c, err)
		}
		p, err := NewProposal(cfg.Proposal, covariance, cfg.StudentTDOF)
		if err != nil {
			return nil, err
		}
		chain, err := NewChain(d, c, cfg.Seed, p, cfg.InitialFromPrior)
		if err != nil {
			return nil, err
		}
		s.chains = append(s.chains, chain)
	}

	s.info = PreRunInfo{
		RValues:      filled(len(descriptions), math.MaxFloat64),
		Efficiencies: make([]float64, cfg.Chains),
	}

	s.log.Info().
		Int("chains", cfg.Chains).
		Int("dimension", len(descriptions)).
		Str("proposal", cfg.Proposal).
		Int("workers", s.pool.Size()).
		Bool("parallel", cfg.Parallelize).
		Msg("Sampler initialized")
	return s, nil
}

func validate(cfg Config) error {
	if cfg.Chains <= 0 {
		return fmt.Errorf("number of chains must be positive, got %d", cfg.Chains)
	}
	if cfg.PreRunUpdate <= 0 || cfg.ChunkSize <= 0 {
		return fmt.Errorf("pre-run update (%d) and chunk size (%d) must be positive", cfg.PreRunUpdate, cfg.ChunkSize)
	}
	if cfg.SkipInitial < 0 || cfg.SkipInitial >= 1 {
		return fmt.Errorf("skip initial must be in [0, 1), got %g", cfg.SkipInitial)
	}
	if cfg.PreRunHistory != 0 && cfg.PreRunHistory < cfg.PreRunUpdate {
		return fmt.Errorf("pre-run history (%d) must hold at least one update (%d)", cfg.PreRunHistory, cfg.PreRunUpdate)
	}
	if cfg.MinEfficiency >= cfg.MaxEfficiency {
		return fmt.Errorf("invalid efficiency band [%g, %g]", cfg.MinEfficiency, cfg.MaxEfficiency)
	}
	return nil
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Chains returns the chains in index order
func (s *Sampler) Chains() []*Chain {
	return s.chains
}

// PreRunInfo returns the outcome of the last pre-run
func (s *Sampler) PreRunInfo() PreRunInfo {
	return s.info
}

// Run performs the pre-run and, when it converged or cfg.ForceMainRun is
// set, the main run
func (s *Sampler) Run(ctx context.Context) (PreRunInfo, error) {
	info, err := s.PreRun(ctx)
	if err != nil {
		return info, err
	}
	if !info.Converged && !s.cfg.ForceMainRun {
		s.log.Warn().Msg("Skipping the main run: pre-run did not converge")
		return info, nil
	}
	return info, s.MainRun(ctx)
}

// PreRun runs chunks of cfg.PreRunUpdate iterations, adapting proposals
// after every chunk, until convergence or the iteration budget is spent.
// Failing to converge is not an error.
func (s *Sampler) PreRun(ctx context.Context) (PreRunInfo, error) {
	s.log.Info().
		Int("min", s.cfg.PreRunMin).
		Int("max", s.cfg.PreRunMax).
		Int("update", s.cfg.PreRunUpdate).
		Msg("Starting pre-run")

	s.info.Converged = false
	s.info.Iterations = 0
	s.info.IterationsAtConvergence = 0
	for _, c := range s.chains {
		c.KeepHistory(true)
	}

	for s.info.Iterations < s.cfg.PreRunMin || (!s.info.Converged && s.info.Iterations < s.cfg.PreRunMax) {
		if err := ctx.Err(); err != nil {
			return s.info, err
		}
		if err := s.runChunk(s.cfg.PreRunUpdate); err != nil {
			return s.info, err
		}
		s.info.Iterations += s.cfg.PreRunUpdate

		// output reflects the proposals that produced the chunk
		if s.cfg.StorePreRun {
			if err := s.persist(PhasePreRun, s.cfg.PreRunUpdate); err != nil {
				return s.info, err
			}
		}

		converged, err := s.checkConvergence(s.cfg.PreRunUpdate)
		if err != nil {
			return s.info, err
		}
		s.info.Converged = converged
		s.trimHistories()

		s.log.Info().Int("iterations", s.info.Iterations).Msg("Pre-run progress")
	}

	if s.info.Converged {
		s.info.IterationsAtConvergence = s.info.Iterations
		s.log.Info().Int("iterations", s.info.Iterations).Msg("Pre-run converged")
		if len(s.chains) < 2 {
			s.log.Warn().Msg("R-values are undefined for a single chain, only efficiencies were adjusted")
		}
	} else {
		s.log.Warn().Int("iterations", s.info.Iterations).Msg("Pre-run did not converge")
	}

	if s.cfg.StorePreRun {
		if err := s.saveModes(PhasePreRun); err != nil {
			return s.info, err
		}
	}
	return s.info, nil
}

// MainRun clears the chains and runs cfg.Chunks chunks of cfg.ChunkSize
// iterations without adaptation, persisting each chunk
func (s *Sampler) MainRun(ctx context.Context) error {
	s.log.Info().Int("chunks", s.cfg.Chunks).Int("chunk_size", s.cfg.ChunkSize).Msg("Starting main run")

	for _, c := range s.chains {
		c.Clear()
		c.Reset(true)
		c.KeepHistory(true)
	}

	for chunk := 0; chunk < s.cfg.Chunks; chunk++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runChunk(s.cfg.ChunkSize); err != nil {
			return err
		}

		s.log.Info().Int("iterations", (chunk+1)*s.cfg.ChunkSize).Msg("Main run progress")

		if s.cfg.Store {
			if err := s.persist(PhaseMain, s.cfg.ChunkSize); err != nil {
				return err
			}
		}

		if len(s.chains) >= 2 {
			if _, err := s.checkRValues(0, false); err != nil {
				return err
			}
		}
		for _, c := range s.chains {
			st := c.Statistics()
			s.log.Debug().
				Int("chain", c.Index()).
				Float64("efficiency", st.Efficiency()).
				Int("invalid", st.Invalid).
				Msg("Main run efficiency")
			c.Clear()
		}
	}

	if s.cfg.Store {
		if err := s.saveModes(PhaseMain); err != nil {
			return err
		}
	}
	s.log.Info().Msg("Finished main run")
	return nil
}

// trimHistories bounds the pre-run histories to the R-value window
func (s *Sampler) trimHistories() {
	if s.cfg.PreRunHistory == 0 {
		return
	}
	for _, c := range s.chains {
		c.History().Trim(s.cfg.PreRunHistory)
	}
}

// runChunk is the barrier: every chain finishes n iterations before it returns
func (s *Sampler) runChunk(n int) error {
	if s.cfg.Parallelize {
		return s.pool.Run(len(s.chains), func(i int) error {
			return s.chains[i].Run(n)
		})
	}
	for _, c := range s.chains {
		if err := c.Run(n); err != nil {
			return err
		}
	}
	return nil
}

// checkConvergence adapts every proposal to the last chunk and reports
// whether efficiencies and R-values meet the criteria
func (s *Sampler) checkConvergence(last int) (bool, error) {
	efficienciesOK := true
	for _, c := range s.chains {
		st := c.Statistics()
		eff := st.Efficiency()
		s.info.Efficiencies[c.Index()] = eff
		if eff < s.cfg.MinEfficiency || eff > s.cfg.MaxEfficiency {
			efficienciesOK = false
		}

		states := c.History().States
		if len(states) < last {
			return false, fmt.Errorf("chain %d: cannot adapt from %d states", c.Index(), len(states))
		}
		if err := c.Proposal().Adapt(states[len(states)-last:], eff, s.cfg.MinEfficiency, s.cfg.MaxEfficiency); err != nil {
			return false, fmt.Errorf("chain %d: failed to adapt proposal: %w", c.Index(), err)
		}
		s.log.Debug().
			Int("chain", c.Index()).
			Float64("efficiency", eff).
			Float64("scale", c.Proposal().State().Scale).
			Msg("Proposal adapted")
	}
	if efficienciesOK {
		s.log.Info().Msg("All efficiencies OK")
	}

	rvaluesOK := true
	if len(s.chains) >= 2 {
		ok, err := s.checkRValues(s.cfg.SkipInitial, true)
		if err != nil {
			return false, err
		}
		rvaluesOK = ok
	}
	return efficienciesOK && rvaluesOK, nil
}

// checkRValues computes one R-value per parameter from the chain histories,
// ignoring the leading skip fraction of each
func (s *Sampler) checkRValues(skip float64, record bool) (bool, error) {
	m := len(s.chains)
	means := make([][]float64, m)
	variances := make([][]float64, m)
	length := 0
	for i, c := range s.chains {
		h := c.History()
		from := int(skip * float64(h.Len()))
		mu, v, err := h.MeanAndVariance(from, h.Len())
		if err != nil {
			return false, fmt.Errorf("chain %d: %w", c.Index(), err)
		}
		means[i], variances[i] = mu, v
		length = h.Len() - from
	}

	ok := true
	chainMeans := make([]float64, m)
	chainVariances := make([]float64, m)
	for p, desc := range s.descriptions {
		for i := 0; i < m; i++ {
			chainMeans[i] = means[i][p]
			chainVariances[i] = variances[i][p]
		}
		r, err := s.rvalue(chainMeans, chainVariances, length)
		if err != nil {
			return false, err
		}
		if record {
			s.info.RValues[p] = r
		}
		if math.IsNaN(r) || r > s.cfg.RValueCriterion {
			ok = false
			s.log.Info().
				Str("parameter", desc.Name).
				Float64("rvalue", r).
				Float64("criterion", s.cfg.RValueCriterion).
				Msg("R-value too large")
		}
	}
	if ok {
		s.log.Info().Msg("All R-values OK")
	}
	return ok, nil
}

// persist writes the last n states and the proposal of every chain.
// It runs on the controller goroutine only.
func (s *Sampler) persist(phase Phase, n int) error {
	if s.store == nil {
		return nil
	}
	for _, c := range s.chains {
		states := c.History().States
		if len(states) > n {
			states = states[len(states)-n:]
		}
		if err := s.store.AppendChunk(phase, c.Index(), states); err != nil {
			return fmt.Errorf("failed to store chunk of chain %d: %w", c.Index(), err)
		}
		if err := s.store.SaveProposal(phase, c.Index(), c.Proposal().State()); err != nil {
			return fmt.Errorf("failed to store proposal of chain %d: %w", c.Index(), err)
		}
	}
	return nil
}

func (s *Sampler) saveModes(phase Phase) error {
	if s.store == nil {
		return nil
	}
	for _, c := range s.chains {
		if err := s.store.SaveMode(phase, c.Index(), c.Statistics().Mode); err != nil {
			return fmt.Errorf("failed to store mode of chain %d: %w", c.Index(), err)
		}
	}
	return nil
}
