package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/DRSN-tech/order-backend/internal/cfg"
	"github.com/DRSN-tech/order-backend/internal/domain"
	"github.com/DRSN-tech/order-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/order-backend/internal/usecase"
	"github.com/DRSN-tech/order-backend/pkg/clients"
	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/jimlawless/whereami"
	goredis "github.com/redis/go-redis/v9"
)

// versionTTL должен пережить любое фоновое заполнение кэша.
const versionTTL = 24 * time.Hour

// setIfVersion пишет карточку, только если версия товара не изменилась с момента чтения.
// KEYS[1] — карточка, KEYS[2] — версия; ARGV: данные, ожидаемая версия, TTL в мс.
var setIfVersion = goredis.NewScript(`
local ver = redis.call('GET', KEYS[2]) or '0'
if ver ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// CacheRepo кэширует карточки товаров в Redis.
// Карточка лежит под product:<id>, счётчик инвалидаций под product:ver:<id>.
// Карточки с малым остатком живут меньше: их остаток устаревает быстрее всего.
type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.ProductInfoConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.ProductInfoConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetProducts возвращает попадания. Битые и чужие записи считаются промахом и удаляются.
func (r *CacheRepo) GetProducts(ctx context.Context, ids []string) (map[string]usecase.ProductInfo, error) {
	if len(ids) == 0 {
		return map[string]usecase.ProductInfo{}, nil
	}

	values, err := r.client.Client.MGet(ctx, keysFor(ids, productKey)...).Result()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make(map[string]usecase.ProductInfo, len(values))
	var broken []string
	for i, val := range values {
		if val == nil {
			continue
		}

		info, err := r.decode(ids[i], val)
		if err != nil {
			r.logger.Warnf("evicting cached product %s: %v", ids[i], err)
			broken = append(broken, productKey(ids[i]))
			continue
		}
		result[ids[i]] = info
	}

	if len(broken) > 0 {
		if err := r.client.Client.Del(ctx, broken...).Err(); err != nil {
			r.logger.Warnf("Redis DEL failed: %v", e.Wrap(whereami.WhereAmI(), err))
		}
	}

	return result, nil
}

// Versions читает счётчики инвалидаций. Отсутствующий счётчик равен нулю.
func (r *CacheRepo) Versions(ctx context.Context, ids []string) (map[string]int64, error) {
	versions := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return versions, nil
	}

	values, err := r.client.Client.MGet(ctx, keysFor(ids, versionKey)...).Result()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	for i, val := range values {
		s, ok := val.(string)
		if !ok {
			versions[ids[i]] = 0
			continue
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		versions[ids[i]] = v
	}

	return versions, nil
}

// SetProducts кладёт карточки, версия которых совпадает с versions.
// Товар без версии в versions не кэшируется.
func (r *CacheRepo) SetProducts(ctx context.Context, products []usecase.ProductInfo, versions map[string]int64) error {
	if len(products) == 0 {
		return nil
	}

	pipe := r.client.Client.Pipeline()
	cmds := make(map[string]*goredis.Cmd, len(products))
	for i := range products {
		ver, ok := versions[products[i].ID]
		if !ok {
			continue
		}

		data, err := json.Marshal(r.conv.ToRedisModel(&products[i]))
		if err != nil {
			r.logger.Warnf("Failed to marshal product for caching (Product ID: %s): %v", products[i].ID, e.Wrap(whereami.WhereAmI(), err))
			continue
		}

		cmds[products[i].ID] = setIfVersion.Eval(ctx, pipe,
			[]string{productKey(products[i].ID), versionKey(products[i].ID)},
			data, strconv.FormatInt(ver, 10), r.ttlFor(&products[i]).Milliseconds(),
		)
	}
	if len(cmds) == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	for id, cmd := range cmds {
		if stored, _ := cmd.Int(); stored == 0 {
			r.logger.Debugf("cache fill skipped, product %s changed during read", id)
		}
	}

	return nil
}

// DeleteProducts удаляет карточки и увеличивает их версии в одной транзакции Redis.
func (r *CacheRepo) DeleteProducts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pipe := r.client.Client.TxPipeline()
	pipe.Del(ctx, keysFor(ids, productKey)...)
	for _, id := range ids {
		pipe.Incr(ctx, versionKey(id))
		pipe.Expire(ctx, versionKey(id), versionTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// ttlFor выбирает срок жизни по остатку.
func (r *CacheRepo) ttlFor(p *usecase.ProductInfo) time.Duration {
	if r.cfg.LowStockTTL <= 0 {
		return r.cfg.ProductTTL
	}
	if p.Stock <= r.cfg.LowStockThreshold || p.Status == string(domain.ProductOutOfStock) {
		return r.cfg.LowStockTTL
	}
	return r.cfg.ProductTTL
}

func (r *CacheRepo) decode(id string, val interface{}) (usecase.ProductInfo, error) {
	s, ok := val.(string)
	if !ok {
		return usecase.ProductInfo{}, fmt.Errorf("unexpected Redis value type %T", val)
	}

	var model converter.ProductInfoRedisModel
	if err := json.Unmarshal([]byte(s), &model); err != nil {
		return usecase.ProductInfo{}, err
	}
	if model.ID != id {
		return usecase.ProductInfo{}, fmt.Errorf("cached id %q does not match key", model.ID)
	}

	return *r.conv.ToUseCase(&model), nil
}

func keysFor(ids []string, key func(string) string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	return keys
}

func productKey(id string) string {
	return "product:" + id
}

func versionKey(id string) string {
	return "product:ver:" + id
}
