// CacheService — LRU-кэш записей реестра с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/verify-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей реестра.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей реестра.",
	})
)

const (
	keyPrefixID   = "id:"
	keyPrefixHash = "hash:"
)

// CacheService — кэш записей по verificationId и по отпечатку.
// Записи неизменяемы, поэтому инвалидация не нужна: достаточно TTL.
// Кэшируются только найденные записи, промахи всегда идут в хранилище.
type CacheService struct {
	cache *expirable.LRU[string, *model.VideoRecord]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.VideoRecord](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// GetByID возвращает запись по verificationId.
func (c *CacheService) GetByID(verificationID string) (*model.VideoRecord, bool) {
	return c.get(keyPrefixID + verificationID)
}

// GetByHash возвращает запись по отпечатку содержимого.
func (c *CacheService) GetByHash(contentHash string) (*model.VideoRecord, bool) {
	return c.get(keyPrefixHash + contentHash)
}

// Set добавляет запись под обоими ключами.
func (c *CacheService) Set(rec *model.VideoRecord) {
	if rec == nil {
		return
	}
	c.cache.Add(keyPrefixID+rec.VerificationID, rec)
	c.cache.Add(keyPrefixHash+rec.ContentHash, rec)
}

// Len — количество ключей в кэше.
func (c *CacheService) Len() int {
	return c.cache.Len()
}

func (c *CacheService) get(key string) (*model.VideoRecord, bool) {
	val, ok := c.cache.Get(key)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}
