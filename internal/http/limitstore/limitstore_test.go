package limitstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/http/limitstore"
)

var _ fiber.Storage = (*limitstore.Store)(nil)

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("STOREFRONT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOREFRONT_TEST_REDIS_ADDR not set")
	}
	st, err := limitstore.Dial(context.Background(), addr, "storefront-test:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Reset()
		_ = st.Close()
	})

	v, err := st.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, st.Set("1.2.3.4|login", []byte("3"), time.Minute))
	v, err = st.Get("1.2.3.4|login")
	require.NoError(t, err)
	assert.Equal(t, "3", string(v))

	require.NoError(t, st.Set("short", []byte("x"), 50*time.Millisecond))
	time.Sleep(150 * time.Millisecond)
	v, err = st.Get("short")
	require.NoError(t, err)
	assert.Nil(t, v, "expired keys read as missing")

	require.NoError(t, st.Delete("1.2.3.4|login"))
	v, err = st.Get("1.2.3.4|login")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, st.Set("a", []byte("1"), 0))
	require.NoError(t, st.Set("b", []byte("2"), 0))
	require.NoError(t, st.Reset())
	v, _ = st.Get("a")
	assert.Nil(t, v)
}
