package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonwalker/entitycache/pkg/store"
)

func seed(t *testing.T, c *Client, prefix Prefix, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := SaveEntity(context.Background(), c, prefix, ID(fmt.Sprintf("%02d", i)), newEntity(fmt.Sprintf("e%02d", i)), nil)
		require.Nil(t, err)
	}
}

func TestScanEmpty(t *testing.T) {
	c, rs := newTestClient(t)

	res, err := Scan[testEntity](context.Background(), c, "Test:Nothing:*", nil)
	require.Nil(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
	assert.Equal(t, 1, rs.pages)
	assert.Equal(t, 0, rs.mgets)
}

func TestScanChunks(t *testing.T) {
	c, rs := newTestClient(t)
	seed(t, c, "TestEntity", 5)
	seed(t, c, "Other", 3)

	res, err := Scan[testEntity](context.Background(), c, "Test:TestEntity:*", &ScanOptions{ChunkSize: 2})
	require.Nil(t, err)
	assert.Equal(t, 3, rs.pages)
	assert.Equal(t, 3, rs.mgets)
	require.Len(t, res, 5)
	assert.Equal(t, "e00", res[0].Name)
	assert.Equal(t, "e04", res[4].Name)
}

func TestScanDefaults(t *testing.T) {
	c, rs := newTestClient(t)
	seed(t, c, "TestEntity", 5)

	res, err := ScanPrefix[testEntity](context.Background(), c, "TestEntity", nil)
	require.Nil(t, err)
	assert.Len(t, res, 5)
	assert.Equal(t, 1, rs.pages)
}

func TestScanLimit(t *testing.T) {
	c, rs := newTestClient(t)
	seed(t, c, "TestEntity", 10)

	res, err := Scan[testEntity](context.Background(), c, "Test:TestEntity:*", &ScanOptions{ChunkSize: 3, Limit: 3})
	require.Nil(t, err)
	assert.Len(t, res, 3)
	assert.Equal(t, 1, rs.pages)
}

func TestScanLimitCountsWholePages(t *testing.T) {
	c, rs := newTestClient(t)
	seed(t, c, "TestEntity", 10)

	// the limit is checked after each page, 2+2 records are retrieved
	res, err := Scan[testEntity](context.Background(), c, "Test:TestEntity:*", &ScanOptions{ChunkSize: 2, Limit: 3})
	require.Nil(t, err)
	assert.Len(t, res, 4)
	assert.Equal(t, 2, rs.pages)
}

func TestScanLimitCountsUndecodable(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	seed(t, c, "TestEntity", 4)
	require.Nil(t, c.Store().Set(ctx, c.Key("TestEntity", "00"), []byte("garbage"), nil))

	// the bad first record still uses up the limit
	res, err := Scan[testEntity](ctx, c, "Test:TestEntity:*", &ScanOptions{ChunkSize: 2, Limit: 2})
	require.Nil(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "e01", res[0].Name)
}

func TestScanSkipsUndecodable(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	seed(t, c, "TestEntity", 5)
	require.Nil(t, c.Store().Set(ctx, c.Key("TestEntity", "02"), []byte(`{"name": 12}`), nil))

	res, err := Scan[testEntity](ctx, c, "Test:TestEntity:*", &ScanOptions{ChunkSize: 2})
	require.Nil(t, err)
	require.Len(t, res, 4)
	for _, e := range res {
		assert.NotEqual(t, "e02", e.Name)
	}
}

func TestScanExpiredBetweenPageAndMGet(t *testing.T) {
	c, rs := newTestClient(t)
	seed(t, c, "TestEntity", 5)
	rs.expire = true

	res, err := Scan[testEntity](context.Background(), c, "Test:TestEntity:*", &ScanOptions{ChunkSize: 2})
	require.Nil(t, err)
	assert.Empty(t, res)
	assert.Equal(t, 3, rs.pages)
}

func TestScanTransportErrorOnPage(t *testing.T) {
	c, rs := newTestClient(t)
	seed(t, c, "TestEntity", 5)
	rs.failPage = 2

	res, err := Scan[testEntity](context.Background(), c, "Test:TestEntity:*", &ScanOptions{ChunkSize: 2})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, errConnReset)
	assert.Equal(t, 2, rs.pages)
}

func TestScanTransportErrorOnMGet(t *testing.T) {
	c, rs := newTestClient(t)
	seed(t, c, "TestEntity", 5)
	rs.failMGet = true

	res, err := Scan[testEntity](context.Background(), c, "Test:TestEntity:*", nil)
	assert.Nil(t, res)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "mget", te.Op)
}

func TestScanInvalidOptions(t *testing.T) {
	c, rs := newTestClient(t)

	_, err := Scan[testEntity](context.Background(), c, "*", &ScanOptions{ChunkSize: -1})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = Scan[testEntity](context.Background(), c, "*", &ScanOptions{Limit: -5})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	assert.Equal(t, 0, rs.pages)
}

func TestScanAll(t *testing.T) {
	c, _ := newTestClient(t)
	for i := 0; i < LegacyLimit+50; i++ {
		err := SaveEntity(context.Background(), c, "TestEntity", ID(fmt.Sprintf("%04d", i)), newEntity("x"), nil)
		require.Nil(t, err)
	}

	res, err := ScanAll[testEntity](context.Background(), c, "Test:TestEntity:*")
	require.Nil(t, err)
	assert.Len(t, res, LegacyLimit)
}

func TestEach(t *testing.T) {
	c, _ := newTestClient(t)
	seed(t, c, "TestEntity", 3)

	var names []string
	err := Each(context.Background(), c, "Test:TestEntity:*", &ScanOptions{ChunkSize: 1}, func(e testEntity) {
		names = append(names, e.Name)
	})
	require.Nil(t, err)
	assert.Equal(t, []string{"e00", "e01", "e02"}, names)
}

func TestScanUnsupportedPattern(t *testing.T) {
	c, rs := newTestClient(t)
	seed(t, c, "TestEntity", 2)

	res, err := Scan[testEntity](context.Background(), c, "Test:TestEntity:[0]*", nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, store.ErrUnsupportedPattern)
	assert.Equal(t, 0, rs.mgets)
}
