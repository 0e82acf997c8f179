package card

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// Registry provides in-memory access to cards, fixtures and reference
// solutions. It satisfies the verification pipeline's fixture and reference
// resolver contracts.
type Registry struct {
	loader *Loader

	mu        sync.RWMutex
	cards     map[string]*domain.CardSpecification
	fixtures  map[string]*domain.Fixture
	solutions map[string]string
	loaded    bool
}

// NewRegistry creates a new card registry
func NewRegistry(loader *Loader) *Registry {
	return &Registry{
		loader:    loader,
		cards:     make(map[string]*domain.CardSpecification),
		fixtures:  make(map[string]*domain.Fixture),
		solutions: make(map[string]string),
	}
}

// Load loads all cards, fixtures and reference solutions into memory.
// Cards whose reference solution file is missing still load; the pipeline
// reports the missing solution as a blocker.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cards, err := r.loader.LoadCards()
	if err != nil {
		return fmt.Errorf("load cards: %w", err)
	}

	fixtures, err := r.loader.LoadFixtures()
	if err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}

	for _, card := range cards {
		r.cards[card.ID] = card

		source, err := r.loader.LoadReferenceSolution(card)
		if err == nil {
			r.solutions[card.ID] = source
		}
	}
	for id, fixture := range fixtures {
		r.fixtures[id] = fixture
	}

	r.loaded = true
	return nil
}

// Reload clears and reloads everything (useful for authoring sessions).
func (r *Registry) Reload() error {
	r.mu.Lock()
	r.cards = make(map[string]*domain.CardSpecification)
	r.fixtures = make(map[string]*domain.Fixture)
	r.solutions = make(map[string]string)
	r.loaded = false
	r.mu.Unlock()

	return r.Load()
}

// Card returns a card by problem id.
func (r *Registry) Card(id string) (*domain.CardSpecification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	card, ok := r.cards[id]
	if !ok {
		return nil, domain.ErrCardNotFound
	}
	return card, nil
}

// ListCards returns all loaded cards.
func (r *Registry) ListCards() []*domain.CardSpecification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cards := make([]*domain.CardSpecification, 0, len(r.cards))
	for _, card := range r.cards {
		cards = append(cards, card)
	}
	return cards
}

// Fixture returns the execution fixture for a problem id.
func (r *Registry) Fixture(problemID string) (*domain.Fixture, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fixture, ok := r.fixtures[problemID]
	return fixture, ok
}

// ReferenceSolution returns the reference solution source for a problem id.
func (r *Registry) ReferenceSolution(problemID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, ok := r.solutions[problemID]
	return source, ok
}

// RegisterCard installs or replaces a card (used by authoring tools).
func (r *Registry) RegisterCard(card *domain.CardSpecification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[card.ID] = card
}

// RegisterFixture installs or replaces a fixture (used by authoring tools).
func (r *Registry) RegisterFixture(problemID string, fixture *domain.Fixture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fixtures[problemID] = fixture
}

// RegisterReferenceSolution installs or replaces a reference solution.
func (r *Registry) RegisterReferenceSolution(problemID, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solutions[problemID] = source
}
