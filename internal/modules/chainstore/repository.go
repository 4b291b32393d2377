// Package chainstore persists sampler output: runs, chain states, modes and
// proposal states, in the chains SQLite database.
package chainstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/eos/eos-sub010/internal/database"
	"github.com/eos/eos-sub010/internal/modules/sampling"
	"github.com/eos/eos-sub010/pkg/logger"
)

// ErrNotFound is returned when a run, mode or proposal does not exist
var ErrNotFound = errors.New("not found")

// Run is the metadata of one sampler run
type Run struct {
	ID         string
	CreatedAt  time.Time
	Dimension  int
	Config     string
	Parameters []sampling.ParameterDescription
}

// Repository reads and writes the chain tables
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a repository over an open chains database
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: logger.WithComponent(log, "chain_repository"),
	}
}

func checkPhase(phase sampling.Phase) error {
	switch phase {
	case sampling.PhasePreRun, sampling.PhaseMain:
		return nil
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}
}

// CreateRun registers a run with its parameter descriptions and returns its id
func (r *Repository) CreateRun(descriptions []sampling.ParameterDescription, cfgJSON string) (string, error) {
	if cfgJSON == "" {
		cfgJSON = "{}"
	}
	id := uuid.New().String()
	now := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO runs (id, created_at, dimension, config)
			VALUES (?, ?, ?, ?)
		`, id, now, len(descriptions), cfgJSON); err != nil {
			return err
		}
		for i, d := range descriptions {
			nuisance := 0
			if d.Nuisance {
				nuisance = 1
			}
			if _, err := tx.Exec(`
				INSERT INTO parameter_descriptions (run_id, idx, name, min, max, nuisance)
				VALUES (?, ?, ?, ?, ?, ?)
			`, id, i, d.Name, d.Min, d.Max, nuisance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	r.log.Info().Str("run_id", id).Int("dimension", len(descriptions)).Msg("Run created")
	return id, nil
}

// Run returns the metadata of one run
func (r *Repository) Run(id string) (*Run, error) {
	var (
		run       Run
		createdAt int64
	)
	err := r.db.QueryRow(`SELECT id, created_at, dimension, config FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &createdAt, &run.Dimension, &run.Config)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	run.CreatedAt = time.Unix(createdAt, 0)

	descs, err := r.descriptions(id)
	if err != nil {
		return nil, err
	}
	run.Parameters = descs
	return &run, nil
}

func (r *Repository) descriptions(id string) ([]sampling.ParameterDescription, error) {
	rows, err := r.db.Query(`
		SELECT name, min, max, nuisance FROM parameter_descriptions
		WHERE run_id = ? ORDER BY idx
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameter descriptions: %w", err)
	}
	defer rows.Close()

	var out []sampling.ParameterDescription
	for rows.Next() {
		var d sampling.ParameterDescription
		if err := rows.Scan(&d.Name, &d.Min, &d.Max, &d.Nuisance); err != nil {
			return nil, fmt.Errorf("failed to scan parameter description: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Runs lists every run, newest first, without parameter descriptions
func (r *Repository) Runs() ([]Run, error) {
	rows, err := r.db.Query(`SELECT id, created_at, dimension, config FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run       Run
			createdAt int64
		)
		if err := rows.Scan(&run.ID, &createdAt, &run.Dimension, &run.Config); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, run)
	}
	return out, rows.Err()
}

// AppendChunk appends states after the last stored state of the chain, in one transaction
func (r *Repository) AppendChunk(runID string, phase sampling.Phase, chain int, states []sampling.State) error {
	if err := checkPhase(phase); err != nil {
		return err
	}
	if len(states) == 0 {
		return nil
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRow(`
			SELECT COALESCE(MAX(seq) + 1, 0) FROM chain_states
			WHERE run_id = ? AND phase = ? AND chain = ?
		`, runID, string(phase), chain).Scan(&next); err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO chain_states (run_id, phase, chain, seq, point, log_density)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, s := range states {
			blob, err := msgpack.Marshal(s.Point)
			if err != nil {
				return fmt.Errorf("failed to encode point: %w", err)
			}
			if _, err := stmt.Exec(runID, string(phase), chain, next+int64(i), blob, s.LogDensity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append chunk for chain %d: %w", chain, err)
	}
	return nil
}

// ReadChains returns the stored history of every chain of a phase, indexed by chain
func (r *Repository) ReadChains(runID string, phase sampling.Phase) ([]sampling.History, error) {
	if err := checkPhase(phase); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(`
		SELECT chain, point, log_density FROM chain_states
		WHERE run_id = ? AND phase = ?
		ORDER BY chain, seq
	`, runID, string(phase))
	if err != nil {
		return nil, fmt.Errorf("failed to query chain states: %w", err)
	}
	defer rows.Close()

	var out []sampling.History
	for rows.Next() {
		var (
			chain int
			blob  []byte
			state sampling.State
		)
		if err := rows.Scan(&chain, &blob, &state.LogDensity); err != nil {
			return nil, fmt.Errorf("failed to scan chain state: %w", err)
		}
		if err := msgpack.Unmarshal(blob, &state.Point); err != nil {
			return nil, fmt.Errorf("failed to decode point of chain %d: %w", chain, err)
		}
		for len(out) <= chain {
			out = append(out, sampling.History{})
		}
		out[chain].States = append(out[chain].States, state)
	}
	return out, rows.Err()
}

// SaveMode stores or replaces the mode of a chain
func (r *Repository) SaveMode(runID string, phase sampling.Phase, chain int, mode sampling.State) error {
	if err := checkPhase(phase); err != nil {
		return err
	}
	blob, err := msgpack.Marshal(mode.Point)
	if err != nil {
		return fmt.Errorf("failed to encode mode: %w", err)
	}
	_, err = r.db.Exec(`
		INSERT INTO chain_modes (run_id, phase, chain, point, log_density, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, phase, chain) DO UPDATE SET
			point = excluded.point,
			log_density = excluded.log_density,
			updated_at = excluded.updated_at
	`, runID, string(phase), chain, blob, mode.LogDensity, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save mode of chain %d: %w", chain, err)
	}
	return nil
}

// Mode returns the stored mode of a chain
func (r *Repository) Mode(runID string, phase sampling.Phase, chain int) (sampling.State, error) {
	var (
		blob  []byte
		state sampling.State
	)
	err := r.db.QueryRow(`
		SELECT point, log_density FROM chain_modes
		WHERE run_id = ? AND phase = ? AND chain = ?
	`, runID, string(phase), chain).Scan(&blob, &state.LogDensity)
	if err == sql.ErrNoRows {
		return sampling.State{}, fmt.Errorf("mode of chain %d: %w", chain, ErrNotFound)
	}
	if err != nil {
		return sampling.State{}, fmt.Errorf("failed to read mode of chain %d: %w", chain, err)
	}
	if err := msgpack.Unmarshal(blob, &state.Point); err != nil {
		return sampling.State{}, fmt.Errorf("failed to decode mode of chain %d: %w", chain, err)
	}
	return state, nil
}

// SaveProposal appends an encoded proposal state
func (r *Repository) SaveProposal(runID string, phase sampling.Phase, chain int, state sampling.ProposalState) error {
	if err := checkPhase(phase); err != nil {
		return err
	}
	blob, err := msgpack.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode proposal state: %w", err)
	}
	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRow(`
			SELECT COALESCE(MAX(seq) + 1, 0) FROM proposal_states
			WHERE run_id = ? AND phase = ? AND chain = ?
		`, runID, string(phase), chain).Scan(&next); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO proposal_states (run_id, phase, chain, seq, state, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, string(phase), chain, next, blob, time.Now().Unix())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save proposal of chain %d: %w", chain, err)
	}
	return nil
}

// LatestProposal returns the most recently saved proposal state of a chain
func (r *Repository) LatestProposal(runID string, phase sampling.Phase, chain int) (sampling.ProposalState, error) {
	var blob []byte
	err := r.db.QueryRow(`
		SELECT state FROM proposal_states
		WHERE run_id = ? AND phase = ? AND chain = ?
		ORDER BY seq DESC LIMIT 1
	`, runID, string(phase), chain).Scan(&blob)
	if err == sql.ErrNoRows {
		return sampling.ProposalState{}, fmt.Errorf("proposal of chain %d: %w", chain, ErrNotFound)
	}
	if err != nil {
		return sampling.ProposalState{}, fmt.Errorf("failed to read proposal of chain %d: %w", chain, err)
	}
	var state sampling.ProposalState
	if err := msgpack.Unmarshal(blob, &state); err != nil {
		return sampling.ProposalState{}, fmt.Errorf("failed to decode proposal of chain %d: %w", chain, err)
	}
	return state, nil
}

// Writer returns a sampling.Store writing into an existing run
func (r *Repository) Writer(runID string) (*Writer, error) {
	run, err := r.Run(runID)
	if err != nil {
		return nil, err
	}
	return &Writer{repo: r, runID: run.ID, dimension: run.Dimension}, nil
}

var _ sampling.Store = (*Writer)(nil)

// Writer binds a repository to one run
type Writer struct {
	repo      *Repository
	runID     string
	dimension int
}

// RunID returns the run the writer appends to
func (w *Writer) RunID() string { return w.runID }

func (w *Writer) checkDimension(states ...sampling.State) error {
	for _, s := range states {
		if len(s.Point) != w.dimension {
			return fmt.Errorf("state has dimension %d, run %s has %d", len(s.Point), w.runID, w.dimension)
		}
	}
	return nil
}

func (w *Writer) AppendChunk(phase sampling.Phase, chain int, states []sampling.State) error {
	if err := w.checkDimension(states...); err != nil {
		return err
	}
	return w.repo.AppendChunk(w.runID, phase, chain, states)
}

func (w *Writer) SaveMode(phase sampling.Phase, chain int, mode sampling.State) error {
	if err := w.checkDimension(mode); err != nil {
		return err
	}
	return w.repo.SaveMode(w.runID, phase, chain, mode)
}

func (w *Writer) SaveProposal(phase sampling.Phase, chain int, state sampling.ProposalState) error {
	return w.repo.SaveProposal(w.runID, phase, chain, state)
}
