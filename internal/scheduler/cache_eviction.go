package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/phungthien97/portfolio-profit-maximizer/internal/cache"
)

// CacheEvictionJob removes expired cache entries on a schedule so the cache
// database does not grow without bound between restarts.
type CacheEvictionJob struct {
	cache *cache.Cache
	log   zerolog.Logger
}

// NewCacheEvictionJob creates a new cache eviction job.
func NewCacheEvictionJob(c *cache.Cache, log zerolog.Logger) *CacheEvictionJob {
	return &CacheEvictionJob{
		cache: c,
		log:   log.With().Str("component", "cache_eviction").Logger(),
	}
}

// Name returns the job name.
func (j *CacheEvictionJob) Name() string {
	return "cache_eviction"
}

// Run deletes expired entries.
func (j *CacheEvictionJob) Run() error {
	removed, err := j.cache.DeleteExpired()
	if err != nil {
		return err
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Evicted expired cache entries")
	}
	return nil
}
