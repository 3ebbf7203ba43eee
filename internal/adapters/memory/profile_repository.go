package memory

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"StandMatch/internal/matching"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// profileRepository is the in-process store. It keeps deep copies on
// both write and read so callers can never mutate shared state, and
// implements Update as a version compare-and-swap.
type profileRepository struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]*domain.Profile
	log      zerolog.Logger
}

var _ ports.ProfileRepository = (*profileRepository)(nil)

// NewProfileRepository creates an empty in-memory profile store.
func NewProfileRepository(baseLogger *zerolog.Logger) ports.ProfileRepository {
	return &profileRepository{
		profiles: make(map[uuid.UUID]*domain.Profile),
		log:      baseLogger.With().Str("component", "memory_profile_repo").Logger(),
	}
}

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[profile.ID]; exists {
		return fmt.Errorf("%w: profile %s already exists", domain.ErrConflict, profile.ID)
	}
	stored := profile.Clone()
	stored.Version = 1
	r.profiles[profile.ID] = stored
	profile.Version = stored.Version
	return nil
}

func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

// Update succeeds only when the caller read the current version;
// otherwise the mutation lost a race and gets domain.ErrConflict.
func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.profiles[profile.ID]
	if !ok {
		return fmt.Errorf("%w: profile %s", domain.ErrNotFound, profile.ID)
	}
	if current.Version != profile.Version {
		return fmt.Errorf("%w: profile %s version %d != %d", domain.ErrConflict, profile.ID, profile.Version, current.Version)
	}
	stored := profile.Clone()
	stored.Version = current.Version + 1
	r.profiles[profile.ID] = stored
	profile.Version = stored.Version
	return nil
}

func (r *profileRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// ScanByLocation returns active profiles with any presence in the given
// city or country. The router applies the precise qualification rule on
// top of this superset.
func (r *profileRepository) ScanByLocation(ctx context.Context, city, country string) ([]*domain.Profile, error) {
	cityKey := matching.FoldLocation(city)
	countryKey := matching.FoldLocation(country)

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Profile
	for _, p := range r.profiles {
		if !p.Active {
			continue
		}
		if matchesLocation(p, cityKey, countryKey) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func matchesLocation(p *domain.Profile, cityKey, countryKey string) bool {
	locs := append([]domain.Location{p.Headquarters}, p.ServiceLocations...)
	for _, loc := range locs {
		if cityKey != "" && matching.FoldLocation(loc.City) == cityKey {
			return true
		}
		if countryKey != "" && matching.FoldLocation(loc.Country) == countryKey {
			return true
		}
	}
	return false
}
