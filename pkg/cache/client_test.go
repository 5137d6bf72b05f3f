package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/moonwalker/entitycache/pkg/store/memory"
)

func TestEntity(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	e := newEntity("ann")
	id := ID(e.ID.String())

	err := SaveEntity(ctx, c, "TestEntity", id, e, nil)
	require.Nil(t, err)

	got, err := GetEntity[testEntity](ctx, c, "TestEntity", id)
	require.Nil(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e, *got)

	// stored under the composed key
	raw, err := c.Store().Get(ctx, "Test:TestEntity:"+string(id))
	require.Nil(t, err)
	assert.NotNil(t, raw)

	require.Nil(t, RemoveEntity(ctx, c, "TestEntity", id))
	require.Nil(t, RemoveEntity(ctx, c, "TestEntity", id))

	got, err = GetEntity[testEntity](ctx, c, "TestEntity", id)
	assert.Nil(t, err)
	assert.Nil(t, got)
}

func TestEntityOverwrite(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	require.Nil(t, SaveEntity(ctx, c, "TestEntity", "1", newEntity("ann"), nil))
	require.Nil(t, SaveEntity(ctx, c, "TestEntity", "1", newEntity("bob"), nil))

	got, err := GetEntity[testEntity](ctx, c, "TestEntity", "1")
	require.Nil(t, err)
	assert.Equal(t, "bob", got.Name)
}

func TestEntityExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := New(memstore.New(memstore.WithClock(func() time.Time { return now })), "Test")

	require.Nil(t, SaveEntity(ctx, c, "TestEntity", "1", newEntity("ann"), &SaveOptions{TTL: 10}))

	got, err := GetEntity[testEntity](ctx, c, "TestEntity", "1")
	require.Nil(t, err)
	assert.NotNil(t, got)

	now = now.Add(10 * time.Second)
	got, err = GetEntity[testEntity](ctx, c, "TestEntity", "1")
	assert.Nil(t, err)
	assert.Nil(t, got)
}

func TestGetEntityCorrupt(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	require.Nil(t, c.Store().Set(ctx, c.Key("TestEntity", "1"), []byte("{not json"), nil))

	got, err := GetEntity[testEntity](ctx, c, "TestEntity", "1")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestSaveEntityEncodeFailed(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	err := SaveEntity(ctx, c, "TestEntity", "1", map[string]interface{}{"ch": make(chan int)}, nil)
	assert.ErrorIs(t, err, ErrEncodeFailed)

	raw, _ := c.Store().Get(ctx, c.Key("TestEntity", "1"))
	assert.Nil(t, raw)
}

func TestEntityTransportError(t *testing.T) {
	ctx := context.Background()
	c, rs := newTestClient(t)
	rs.failAll = true

	_, err := GetEntity[testEntity](ctx, c, "TestEntity", "1")
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, errConnReset)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "get", te.Op)
	assert.Equal(t, "Test:TestEntity:1", te.Key)

	err = SaveEntity(ctx, c, "TestEntity", "1", newEntity("ann"), nil)
	assert.ErrorIs(t, err, ErrTransport)

	err = RemoveEntity(ctx, c, "TestEntity", "1")
	assert.ErrorIs(t, err, ErrTransport)
}
