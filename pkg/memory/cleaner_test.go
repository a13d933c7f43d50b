package memory

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rizal/memdex/pkg/vector"
)

func TestNewCleaner_RejectsBadSchedule(t *testing.T) {
	store := openTestStore(t)
	_, err := NewCleaner(store, nil, CleanerConfig{Schedule: "not a cron"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewCleaner_AppliesDefaults(t *testing.T) {
	store := openTestStore(t)
	c, err := NewCleaner(store, nil, CleanerConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 90, c.cfg.MaxAgeDays)
	assert.Equal(t, 0.3, c.cfg.MinImportanceScore)
	assert.Equal(t, "0 3 * * *", c.cfg.Schedule)
}

func TestCleaner_RunOnceDeletesOnlyOldAndUnimportant(t *testing.T) {
	store := openTestStore(t)
	index := vector.NewIndex(zerolog.Nop())
	ctx := context.Background()
	old := time.Now().Add(-100 * 24 * time.Hour)

	victim := testRecord("victim", "old and unimportant")
	victim.CreatedAt = old
	victim.Importance = 0.1
	require.NoError(t, store.SaveRecord(ctx, victim, nil, nil))
	index.Insert(&vector.Entry{ID: "victim", Content: victim.Content, Embedding: []float32{1, 0}})

	keeper := testRecord("keeper", "old but important")
	keeper.CreatedAt = old
	keeper.Importance = 0.8
	require.NoError(t, store.SaveRecord(ctx, keeper, nil, nil))
	index.Insert(&vector.Entry{ID: "keeper", Content: keeper.Content, Embedding: []float32{0, 1}})

	c, err := NewCleaner(store, index, CleanerConfig{MaxAgeDays: 90, MinImportanceScore: 0.3}, zerolog.Nop())
	require.NoError(t, err)

	res, err := c.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsDeleted)
	assert.Equal(t, []string{"victim"}, res.DeletedIDs)

	// the vector entry goes with the record
	assert.Equal(t, 1, index.Len())
	_, err = index.Get("keeper")
	assert.NoError(t, err)
}

func TestCleaner_StartStopIdempotent(t *testing.T) {
	store := openTestStore(t)
	c, err := NewCleaner(store, nil, CleanerConfig{}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, c.Start())
	require.NoError(t, c.Start())
	c.Stop()
	c.Stop()
}
