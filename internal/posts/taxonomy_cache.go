package posts

import (
	"encoding/json"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	categoriesCacheKey = "categories"
	tagsCacheKey       = "tags"
)

// TaxonomyCache keeps the categories and tags lists for the editor; both change rarely
type TaxonomyCache struct {
	cache         *freecache.Cache
	expireSeconds int
}

// NewTaxonomyCache returns a cache keeping entries for ttl; ttl <= 0 disables it
func NewTaxonomyCache(ttl time.Duration) *TaxonomyCache {
	megabyte := 1024 * 1024
	cacheSize := 2 * megabyte

	return &TaxonomyCache{
		cache:         freecache.NewCache(cacheSize),
		expireSeconds: int(ttl.Seconds()),
	}
}

func (tc *TaxonomyCache) enabled() bool {
	return tc != nil && tc.expireSeconds > 0
}

func (tc *TaxonomyCache) get(key string, out any) bool {
	if !tc.enabled() {
		return false
	}

	cachedBytes, err := tc.cache.Get([]byte(key))
	if err != nil {
		log.Tracef("taxonomy cache, get %s: %s", key, err)
		return false
	}
	if err := json.Unmarshal(cachedBytes, out); err != nil {
		log.Errorf("taxonomy cache, unmarshal %s: %s", key, err)
		return false
	}

	return true
}

func (tc *TaxonomyCache) set(key string, value any) {
	if !tc.enabled() {
		return
	}

	valueBytes, err := json.Marshal(value)
	if err != nil {
		log.Errorf("taxonomy cache, marshal %s: %s", key, err)
		return
	}
	if err := tc.cache.Set([]byte(key), valueBytes, tc.expireSeconds); err != nil {
		log.Errorf("taxonomy cache, set %s: %s", key, err)
	}
}

func (tc *TaxonomyCache) invalidate(key string) {
	if tc == nil {
		return
	}
	tc.cache.Del([]byte(key))
}

func (tc *TaxonomyCache) EntryCount() int64 {
	return tc.cache.EntryCount()
}
