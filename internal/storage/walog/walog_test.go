package walog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendAssignsSequentialOffsets(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		offset, err := l.Append(ctx, []byte{byte(i)})
		require.NoError(t, err)
		assert.Equal(t, int64(i), offset)
	}

	end, err := l.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), end)
}

func TestReplayRange(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := l.Append(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}

	recs, err := l.Replay(ctx, 1, 4)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, int64(1), recs[0].Offset)
	assert.Equal(t, []byte{3}, recs[2].Data)
	assert.NotEmpty(t, recs[0].KnowledgeTime)

	recs, err = l.Replay(ctx, 3, -1)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestLogSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	l, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	_, err = l.Append(ctx, []byte("one"))
	require.NoError(t, err)
	_, err = l.Append(ctx, []byte("two"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	defer l.Close()

	recs, err := l.Replay(ctx, 0, -1)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []byte("one"), recs[0].Data)

	offset, err := l.Append(ctx, []byte("three"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), offset)
}
