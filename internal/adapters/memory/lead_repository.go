package memory

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// leadRepository mirrors profileRepository: deep copies in and out,
// version compare-and-swap on Update.
type leadRepository struct {
	mu    sync.RWMutex
	leads map[string]*domain.Lead
	log   zerolog.Logger
}

var _ ports.LeadRepository = (*leadRepository)(nil)

// NewLeadRepository creates an empty in-memory lead store.
func NewLeadRepository(baseLogger *zerolog.Logger) ports.LeadRepository {
	return &leadRepository{
		leads: make(map[string]*domain.Lead),
		log:   baseLogger.With().Str("component", "memory_lead_repo").Logger(),
	}
}

func (r *leadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.leads[lead.ID]; exists {
		return fmt.Errorf("%w: lead %s already exists", domain.ErrConflict, lead.ID)
	}
	stored := lead.Clone()
	stored.Version = 1
	r.leads[lead.ID] = stored
	lead.Version = stored.Version
	return nil
}

func (r *leadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, nil
	}
	return l.Clone(), nil
}

func (r *leadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.leads[lead.ID]
	if !ok {
		return fmt.Errorf("%w: lead %s", domain.ErrNotFound, lead.ID)
	}
	if current.Version != lead.Version {
		return fmt.Errorf("%w: lead %s version %d != %d", domain.ErrConflict, lead.ID, lead.Version, current.Version)
	}
	stored := lead.Clone()
	stored.Version = current.Version + 1
	r.leads[lead.ID] = stored
	lead.Version = stored.Version
	return nil
}

func (r *leadRepository) List(ctx context.Context) ([]*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Lead, 0, len(r.leads))
	for _, l := range r.leads {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
