package cfg

import (
	"testing"
	"time"

	"github.com/DRSN-tech/order-backend/pkg/e"
	"github.com/DRSN-tech/order-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MemoryDriverDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, c.Store.Driver)
	assert.False(t, c.Store.CacheEnabled)
	assert.Nil(t, c.Db, "postgres settings are not required for memory driver")
	assert.False(t, c.Kafka.Enabled)
	assert.Equal(t, "orders.events", c.Kafka.Topic)
	assert.Equal(t, "8080", c.Http.Port)
	assert.Equal(t, 8*time.Second, c.Http.RequestTimeout)
	assert.Equal(t, "8091", c.Grpc.Port)
	assert.Equal(t, 10, c.Outbox.BatchSize)
	assert.Equal(t, 50, c.Order.MaxItems)
	assert.Equal(t, 10, c.Order.DefaultPageSize)
	assert.Equal(t, 100, c.Order.MaxPageSize)
}

func TestLoad_PostgresRequiresCredentials(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "orders")

	_, err := Load(logger.NewNopLogger())
	assert.Error(t, err)
}

func TestLoad_Postgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_USER", "app")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "orders")
	t.Setenv("POSTGRES_HOST", "db")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	require.NotNil(t, c.Db)
	assert.True(t, c.Store.CacheEnabled)
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=orders sslmode=disable", c.Db.DSN())
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load(logger.NewNopLogger())
	assert.ErrorIs(t, err, e.ErrUnknownStoreDriver)
}

func TestLoad_Kafka(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KAFKA_TOPIC", "shop.orders")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "shop.orders", c.Kafka.Topic)
	assert.Equal(t, 3, c.Kafka.Partitions)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"HTTP_READ_TIMEOUT":    "soon",
		"OUTBOX_BATCH_SIZE":    "0",
		"ORDER_MAX_ITEMS":      "-1",
		"PAGE_SIZE_MAX":        "5",
		"OUTBOX_POLL_INTERVAL": "1x",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv("STORE_DRIVER", "memory")
			t.Setenv(key, value)

			_, err := Load(logger.NewNopLogger())
			assert.Error(t, err)
		})
	}
}
