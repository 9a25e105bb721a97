package memory

import (
	"context"
	"time"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/review/progress"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// JobEntry is a live review: the job, its event log and the way to stop it.
type JobEntry struct {
	Job      *entity.ReviewJob
	Document *entity.Document
	Emitter  *progress.Emitter
	Cancel   context.CancelFunc
}

// JobRepository keeps jobs in memory until their TTL expires.
type JobRepository struct {
	cache *cache.Cache
}

func NewJobRepository(ttl time.Duration) *JobRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	// Purge expired jobs every 10 minutes
	c := cache.New(ttl, 10*time.Minute)
	return &JobRepository{
		cache: c,
	}
}

func (r *JobRepository) Save(entry *JobEntry) {
	r.cache.Set(entry.Job.ID().String(), entry, cache.DefaultExpiration)
}

func (r *JobRepository) Get(id uuid.UUID) (*JobEntry, bool) {
	if x, found := r.cache.Get(id.String()); found {
		return x.(*JobEntry), true
	}
	return nil, false
}

func (r *JobRepository) Delete(id uuid.UUID) {
	r.cache.Delete(id.String())
}

func (r *JobRepository) Count() int {
	return r.cache.ItemCount()
}
