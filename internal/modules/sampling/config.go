package sampling

// Proposal names accepted by Config.Proposal
const (
	ProposalGaussian = "MultivariateGaussian"
	ProposalStudentT = "MultivariateStudentT"
)

// Config controls the sampler
type Config struct {
	Chains      int
	Seed        uint64 // chain c draws from the stream (Seed, c)
	Workers     int    // pool size, 0 selects the CPU count
	Parallelize bool

	// pre-run
	PreRunMin    int
	PreRunMax    int
	PreRunUpdate int
	StorePreRun  bool
	// PreRunHistory bounds the states kept per chain during the pre-run,
	// 0 keeps every state
	PreRunHistory int

	// main run
	Chunks       int
	ChunkSize    int
	Store        bool
	ForceMainRun bool

	// convergence
	MinEfficiency   float64
	MaxEfficiency   float64
	RValueCriterion float64
	StrictRValue    bool
	SkipInitial     float64 // fraction of the history ignored by R-values

	Proposal    string
	StudentTDOF float64

	// InitialFromPrior draws initial points from the density's prior when it implements PriorSampler
	InitialFromPrior bool
}

// DefaultConfig returns the production settings
func DefaultConfig() Config {
	return Config{
		Chains:          4,
		Seed:            0,
		Workers:         0,
		Parallelize:     true,
		PreRunMin:       1000,
		PreRunMax:       1000000,
		PreRunUpdate:    1000,
		PreRunHistory:   20000,
		StorePreRun:     true,
		Chunks:          100,
		ChunkSize:       1000,
		Store:           true,
		MinEfficiency:   0.15,
		MaxEfficiency:   0.35,
		RValueCriterion: 1.1,
		StrictRValue:    true,
		SkipInitial:     0.1,
		Proposal:        ProposalGaussian,
		StudentTDOF:     1.0,
	}
}

// QuickConfig returns small settings for exploration and tests
func QuickConfig() Config {
	cfg := DefaultConfig()
	cfg.Chains = 1
	cfg.StrictRValue = false
	cfg.PreRunMin = 400
	cfg.PreRunUpdate = 400
	cfg.PreRunMax = 100000
	cfg.PreRunHistory = 8000
	cfg.Chunks = 10
	cfg.ChunkSize = 100
	return cfg
}
