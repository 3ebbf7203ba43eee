package memory

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type challengeRepository struct {
	mu         sync.RWMutex
	challenges map[uuid.UUID]domain.ClaimChallenge
	log        zerolog.Logger
}

var _ ports.ChallengeRepository = (*challengeRepository)(nil)

// NewChallengeRepository creates an empty in-memory challenge store.
func NewChallengeRepository(baseLogger *zerolog.Logger) ports.ChallengeRepository {
	return &challengeRepository{
		challenges: make(map[uuid.UUID]domain.ClaimChallenge),
		log:        baseLogger.With().Str("component", "memory_challenge_repo").Logger(),
	}
}

func (r *challengeRepository) Create(ctx context.Context, challenge *domain.ClaimChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.challenges[challenge.ID]; exists {
		return fmt.Errorf("%w: challenge %s already exists", domain.ErrConflict, challenge.ID)
	}
	r.challenges[challenge.ID] = *challenge
	return nil
}

func (r *challengeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ClaimChallenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (r *challengeRepository) GetPendingByProfile(ctx context.Context, profileID uuid.UUID) (*domain.ClaimChallenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.challenges {
		if c.ProfileID == profileID && c.Status == domain.ChallengePending {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *challengeRepository) Update(ctx context.Context, challenge *domain.ClaimChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.challenges[challenge.ID]; !ok {
		return fmt.Errorf("%w: challenge %s", domain.ErrNotFound, challenge.ID)
	}
	r.challenges[challenge.ID] = *challenge
	return nil
}
