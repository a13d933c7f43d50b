package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "test.db"), 0, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id, content string) *Record {
	now := time.Now()
	return &Record{
		ID:         id,
		Content:    content,
		Source:     SourceManual,
		Type:       TypeFact,
		Priority:   3,
		Importance: 0.3,
		State:      StateActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestStore_SaveAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("r1", "the capital of France is Paris")
	rec.Tags = []string{"geo", "capital"}
	rec.Metadata = map[string]interface{}{"lang": "en"}

	require.NoError(t, s.SaveRecord(ctx, rec, nil, nil))

	got, err := s.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, rec.Content, got.Content)
	assert.Equal(t, SourceManual, got.Source)
	assert.Equal(t, TypeFact, got.Type)
	assert.Equal(t, []string{"geo", "capital"}, got.Tags)
	assert.Equal(t, "en", got.Metadata["lang"])
	assert.Equal(t, rec.Importance, got.Importance)
	assert.Empty(t, got.ChunkIDs)
}

func TestStore_GetUnknownID(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveReplacesExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, testRecord("r1", "first version"), nil, nil))
	require.NoError(t, s.SaveRecord(ctx, testRecord("r1", "second version"), nil, nil))

	got, err := s.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "second version", got.Content)

	records, _, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, records)
}

func TestStore_ChunksPersistInOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("r1", "long content")
	chunks := []Chunk{
		{ID: "r1#0", RecordID: "r1", Position: 0, Content: "long "},
		{ID: "r1#1", RecordID: "r1", Position: 1, Content: "content"},
	}
	require.NoError(t, s.SaveRecord(ctx, rec, chunks, nil))

	got, err := s.Chunks(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, 1, got[1].Position)

	rec2, err := s.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1#0", "r1#1"}, rec2.ChunkIDs)
}

func TestStore_Touch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, testRecord("r1", "touched"), nil, nil))
	require.NoError(t, s.Touch(ctx, "r1"))
	require.NoError(t, s.Touch(ctx, "r1"))

	got, err := s.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.AccessCount)
	assert.NotNil(t, got.LastAccessed)
}

func TestStore_DeleteCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chunks := []Chunk{{ID: "r1#0", RecordID: "r1", Position: 0, Content: "chunked"}}
	require.NoError(t, s.SaveRecord(ctx, testRecord("r1", "chunked"), chunks, nil))
	require.NoError(t, s.DeleteRecord(ctx, "r1"))

	_, err := s.GetRecord(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)

	records, chunkCount, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, records)
	assert.Equal(t, 0, chunkCount)

	matches, err := s.SearchKeyword(ctx, `"chunked"`, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStore_DeleteUnknownID(t *testing.T) {
	s := openTestStore(t)
	assert.ErrorIs(t, s.DeleteRecord(context.Background(), "missing"), ErrNotFound)
}

func TestStore_SearchKeywordRanksByRelevance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, testRecord("dense", "python python python tutorial"), nil, nil))
	require.NoError(t, s.SaveRecord(ctx, testRecord("sparse", "a tutorial mentioning python once in passing among many other words"), nil, nil))
	require.NoError(t, s.SaveRecord(ctx, testRecord("unrelated", "gardening tips for spring"), nil, nil))

	matches, err := s.SearchKeyword(ctx, `"python"`, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "dense", matches[0].RecordID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestStore_SearchKeywordGroupsChunksByRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ID: "r1#0", RecordID: "r1", Position: 0, Content: "python basics"},
		{ID: "r1#1", RecordID: "r1", Position: 1, Content: "python advanced"},
	}
	require.NoError(t, s.SaveRecord(ctx, testRecord("r1", "python basics python advanced"), chunks, nil))

	matches, err := s.SearchKeyword(ctx, `"python"`, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "r1", matches[0].RecordID)
}

func TestStore_SearchKeywordAggregatesAcrossRecordsWithLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	dense := []Chunk{
		{ID: "hit#0", RecordID: "hit", Position: 0, Content: "rust ownership rust borrowing"},
		{ID: "hit#1", RecordID: "hit", Position: 1, Content: "rust lifetimes"},
	}
	require.NoError(t, s.SaveRecord(ctx, testRecord("hit", "rust ownership rust borrowing rust lifetimes"), dense, nil))

	sparse := []Chunk{
		{ID: "miss#0", RecordID: "miss", Position: 0, Content: "a long chapter that mentions rust once near the end"},
		{ID: "miss#1", RecordID: "miss", Position: 1, Content: "unrelated closing remarks"},
	}
	require.NoError(t, s.SaveRecord(ctx, testRecord("miss", "a long chapter that mentions rust once near the end"), sparse, nil))

	matches, err := s.SearchKeyword(ctx, `"rust"`, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "hit", matches[0].RecordID)
	assert.Positive(t, matches[0].Score)
}

func TestStore_ListFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := testRecord("doc", "a document")
	doc.Source = SourceDocument
	doc.Tags = []string{"alpha"}
	require.NoError(t, s.SaveRecord(ctx, doc, nil, nil))

	conv := testRecord("conv", "a conversation")
	conv.Source = SourceConversation
	require.NoError(t, s.SaveRecord(ctx, conv, nil, nil))

	bySource, err := s.List(ctx, ListFilter{Source: SourceDocument})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, "doc", bySource[0].ID)

	byTag, err := s.List(ctx, ListFilter{Tags: []string{"alpha"}})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, "doc", byTag[0].ID)

	all, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_DeleteExpiredRequiresBothConditions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-100 * 24 * time.Hour)

	oldLow := testRecord("old-low", "old and unimportant")
	oldLow.CreatedAt = old
	oldLow.Importance = 0.1
	require.NoError(t, s.SaveRecord(ctx, oldLow, nil, nil))

	oldHigh := testRecord("old-high", "old but important")
	oldHigh.CreatedAt = old
	oldHigh.Importance = 0.9
	require.NoError(t, s.SaveRecord(ctx, oldHigh, nil, nil))

	freshLow := testRecord("fresh-low", "recent and unimportant")
	freshLow.Importance = 0.1
	require.NoError(t, s.SaveRecord(ctx, freshLow, nil, nil))

	res, err := s.DeleteExpired(ctx, time.Now().Add(-90*24*time.Hour), 0.3)
	require.NoError(t, err)

	assert.Equal(t, 1, res.RecordsDeleted)
	assert.Equal(t, []string{"old-low"}, res.DeletedIDs)

	_, err = s.GetRecord(ctx, "old-low")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRecord(ctx, "old-high")
	assert.NoError(t, err)
	_, err = s.GetRecord(ctx, "fresh-low")
	assert.NoError(t, err)
}

func TestStore_DeleteExpiredCountsChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("old", "chunked and old")
	rec.CreatedAt = time.Now().Add(-100 * 24 * time.Hour)
	rec.Importance = 0.1
	chunks := []Chunk{
		{ID: "old#0", RecordID: "old", Position: 0, Content: "chunked"},
		{ID: "old#1", RecordID: "old", Position: 1, Content: "and old"},
	}
	require.NoError(t, s.SaveRecord(ctx, rec, chunks, nil))

	res, err := s.DeleteExpired(ctx, time.Now().Add(-90*24*time.Hour), 0.3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsDeleted)
	assert.Equal(t, 2, res.ChunksDeleted)
}

func TestStore_Optimize(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, testRecord("r1", "optimize me"), nil, nil))
	assert.NoError(t, s.Optimize(ctx))
}
