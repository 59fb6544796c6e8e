package memlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAppendAssignsSequentialOffsets(t *testing.T) {
	log := NewLog()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		offset, err := log.Append(ctx, []byte{byte(i)})
		require.NoError(t, err)
		assert.Equal(t, int64(i), offset)
	}

	end, err := log.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), end)
}

func TestLogReplayRange(t *testing.T) {
	log := NewLog()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}

	recs, err := log.Replay(ctx, 1, 4)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, int64(1), recs[0].Offset)
	assert.Equal(t, []byte{3}, recs[2].Data)

	// Negative to means "to the end".
	recs, err = log.Replay(ctx, 3, -1)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = log.Replay(ctx, 9, -1)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLogReplayReturnsCopies(t *testing.T) {
	log := NewLog()
	ctx := context.Background()
	_, err := log.Append(ctx, []byte{1, 2, 3})
	require.NoError(t, err)

	recs, err := log.Replay(ctx, 0, -1)
	require.NoError(t, err)
	recs[0].Data[0] = 99

	again, err := log.Replay(ctx, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, byte(1), again[0].Data[0], "mutating a replayed record must not touch the log")
}

func TestLogStampsKnowledgeTime(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	log := NewLogAt(func() time.Time { return fixed })
	ctx := context.Background()

	_, err := log.Append(ctx, []byte("x"))
	require.NoError(t, err)

	recs, err := log.Replay(ctx, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T12:00:00Z", recs[0].KnowledgeTime)
}

func TestKVPutGet(t *testing.T) {
	kv := NewKV()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Put(ctx, "k", []byte("v")))
	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}
