package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAppendAssignsSequentialOffsets(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		offset, err := st.Append(ctx, []byte{byte(i)})
		require.NoError(t, err)
		assert.Equal(t, int64(i), offset, "offsets start at 0")
	}

	end, err := st.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), end)
}

func TestReplayRange(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := st.Append(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}

	recs, err := st.Replay(ctx, 1, 4)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, int64(1), recs[0].Offset)
	assert.Equal(t, []byte{3}, recs[2].Data)
	assert.NotEmpty(t, recs[0].KnowledgeTime)

	recs, err = st.Replay(ctx, 3, -1)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = st.Replay(ctx, 9, -1)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLogSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.db")
	ctx := context.Background()

	st, err := Open(path)
	require.NoError(t, err)
	_, err = st.Append(ctx, []byte("one"))
	require.NoError(t, err)
	_, err = st.Append(ctx, []byte("two"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	recs, err := st.Replay(ctx, 0, -1)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []byte("one"), recs[0].Data)
	assert.Equal(t, []byte("two"), recs[1].Data)

	// New appends continue the sequence.
	offset, err := st.Append(ctx, []byte("three"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), offset)
}

func TestKVPutGet(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, ok, err := st.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Put(ctx, "k", []byte("v")))
	v, ok, err := st.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	// Writing the same key again is safe.
	require.NoError(t, st.Put(ctx, "k", []byte("v")))
	v, ok, err = st.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}
