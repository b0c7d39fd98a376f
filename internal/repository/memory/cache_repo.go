package memory

import (
	"context"
	"sync"
	"time"

	"github.com/DRSN-tech/order-backend/internal/usecase"
)

// CacheRepo — кэш карточек товаров в памяти процесса с TTL.
// versions считает инвалидации и не истекает.
type CacheRepo struct {
	mu       sync.RWMutex
	items    map[string]cacheEntry
	versions map[string]int64
	ttl      time.Duration
}

type cacheEntry struct {
	info      usecase.ProductInfo
	expiresAt time.Time
}

func NewCacheRepo(ttl time.Duration) *CacheRepo {
	return &CacheRepo{
		items:    make(map[string]cacheEntry),
		versions: make(map[string]int64),
		ttl:      ttl,
	}
}

func (c *CacheRepo) GetProducts(_ context.Context, ids []string) (map[string]usecase.ProductInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	result := make(map[string]usecase.ProductInfo, len(ids))
	for _, id := range ids {
		entry, ok := c.items[id]
		if !ok || now.After(entry.expiresAt) {
			continue
		}
		result[id] = entry.info
	}
	return result, nil
}

func (c *CacheRepo) Versions(_ context.Context, ids []string) (map[string]int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	versions := make(map[string]int64, len(ids))
	for _, id := range ids {
		versions[id] = c.versions[id]
	}
	return versions, nil
}

// SetProducts пропускает товары, инвалидированные после чтения versions.
func (c *CacheRepo) SetProducts(_ context.Context, products []usecase.ProductInfo, versions map[string]int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)
	for _, p := range products {
		ver, ok := versions[p.ID]
		if !ok || ver != c.versions[p.ID] {
			continue
		}
		c.items[p.ID] = cacheEntry{info: p, expiresAt: expiresAt}
	}
	return nil
}

func (c *CacheRepo) DeleteProducts(_ context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.items, id)
		c.versions[id]++
	}
	return nil
}
