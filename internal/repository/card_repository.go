package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// CardRepository mirrors the on-disk card catalog into Postgres. The daemon
// only writes: it syncs every loaded card at startup so authoring tools can
// query the catalog with SQL. The full specification is stored as JSON; a
// few columns are broken out so those queries never have to unmarshal rows.
type CardRepository struct {
	db *sql.DB
}

// NewCardRepository creates a new card catalog repository.
func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

// Save persists a card specification (insert or update by id).
func (r *CardRepository) Save(ctx context.Context, card *domain.CardSpecification) error {
	if card == nil {
		return domain.ErrNilCard
	}

	spec, err := json.Marshal(card)
	if err != nil {
		return err
	}

	var scorecard pqtype.NullRawMessage
	if card.QualityScorecard != (domain.QualityScorecard{}) {
		data, err := json.Marshal(card.QualityScorecard)
		if err != nil {
			return err
		}
		scorecard = pqtype.NullRawMessage{RawMessage: data, Valid: true}
	}

	query := `
		INSERT INTO cards (id, problem_version, title, concept, required_checks, spec, scorecard, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			problem_version = EXCLUDED.problem_version,
			title = EXCLUDED.title,
			concept = EXCLUDED.concept,
			required_checks = EXCLUDED.required_checks,
			spec = EXCLUDED.spec,
			scorecard = EXCLUDED.scorecard,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		card.ID, card.ProblemVersion, card.Title, card.ConceptDescription,
		pq.Array(card.FidelityTarget.RequiredSemanticChecks),
		spec, scorecard, time.Now().UTC(),
	)
	return err
}
