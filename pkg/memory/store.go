package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// Store persists records, chunks, the full-text index, and the durable
// vector table on a single sqlite database. The vector table exists only so
// the in-memory index can be rebuilt; record rows remain independently
// reconstructible without it.
type Store struct {
	db        *sql.DB
	dimension int
	logger    zerolog.Logger
}

// OpenStore opens (creating if needed) the store at path. A dimension of 0
// disables the durable vector table.
func OpenStore(path string, dimension int, logger zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", path+"?_fts5=1&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL for read concurrency during background cleanup
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, dimension: dimension, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			type TEXT NOT NULL,
			priority INTEGER NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			metadata TEXT NOT NULL DEFAULT '{}',
			importance REAL NOT NULL,
			state TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 0,
			last_accessed INTEGER,
			has_embedding INTEGER NOT NULL DEFAULT 0,
			user_id TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_records_source ON records(source);
		CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);
		CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);
		CREATE INDEX IF NOT EXISTS idx_records_importance ON records(importance);

		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			record_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_record ON chunks(record_id);

		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			record_id UNINDEXED,
			content,
			tokenize='porter unicode61'
		);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if s.dimension > 0 {
		vectorSchema := fmt.Sprintf(`
			CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(
				record_id TEXT PRIMARY KEY,
				embedding float[%d] distance_metric=cosine
			);
		`, s.dimension)
		if _, err := s.db.Exec(vectorSchema); err != nil {
			return fmt.Errorf("failed to create vector table: %w", err)
		}
	}

	return nil
}

// SaveRecord writes a record, its chunks, full-text rows, and durable vector
// in one transaction. An existing record with the same id is replaced.
func (s *Store) SaveRecord(ctx context.Context, rec *Record, chunks []Chunk, emb []float32) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.deleteRecordTx(ctx, tx, rec.ID); err != nil {
		return err
	}

	var lastAccessed interface{}
	if rec.LastAccessed != nil {
		lastAccessed = rec.LastAccessed.Unix()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records
			(id, content, source, type, priority, tags, metadata, importance, state,
			 created_at, updated_at, access_count, last_accessed, has_embedding, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Content, string(rec.Source), string(rec.Type), rec.Priority,
		string(tags), string(metadata), rec.Importance, string(rec.State),
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(), rec.AccessCount, lastAccessed,
		boolToInt(rec.HasEmbedding), rec.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	if len(chunks) > 0 {
		for _, c := range chunks {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO chunks (id, record_id, position, content) VALUES (?, ?, ?, ?)",
				c.ID, rec.ID, c.Position, c.Content,
			); err != nil {
				return fmt.Errorf("failed to insert chunk: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO records_fts (record_id, content) VALUES (?, ?)",
				rec.ID, c.Content,
			); err != nil {
				return fmt.Errorf("failed to insert full-text row: %w", err)
			}
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO records_fts (record_id, content) VALUES (?, ?)",
			rec.ID, rec.Content,
		); err != nil {
			return fmt.Errorf("failed to insert full-text row: %w", err)
		}
	}

	if s.dimension > 0 && len(emb) == s.dimension {
		embJSON, err := json.Marshal(emb)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vectors (record_id, embedding) VALUES (?, ?)",
			rec.ID, string(embJSON),
		); err != nil {
			return fmt.Errorf("failed to insert vector row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record: %w", err)
	}
	return nil
}

// GetRecord returns a record by id without touching access stats.
func (s *Store) GetRecord(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, source, type, priority, tags, metadata, importance,
		       state, created_at, updated_at, access_count, last_accessed,
		       has_embedding, user_id
		FROM records WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.ChunkIDs, err = s.chunkIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Touch bumps a record's access counter and last-accessed time.
func (s *Store) Touch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE records SET access_count = access_count + 1, last_accessed = ? WHERE id = ?",
		time.Now().Unix(), id)
	return err
}

// DeleteRecord removes a record, cascading to its chunks, full-text rows,
// and durable vector.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	if err := s.deleteDerivedTx(ctx, tx, id); err != nil {
		return err
	}

	return tx.Commit()
}

// deleteRecordTx removes a record and its derived rows inside an open tx.
// Missing records are not an error (used by save-replace).
func (s *Store) deleteRecordTx(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete previous record: %w", err)
	}
	return s.deleteDerivedTx(ctx, tx, id)
}

func (s *Store) deleteDerivedTx(ctx context.Context, tx *sql.Tx, id string) error {
	// chunks cascade via the foreign key; fts and vectors are virtual tables
	if _, err := tx.ExecContext(ctx, "DELETE FROM records_fts WHERE record_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete full-text rows: %w", err)
	}
	if s.dimension > 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE record_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete vector row: %w", err)
		}
	}
	return nil
}

// List returns records matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	query := `
		SELECT id, content, source, type, priority, tags, metadata, importance,
		       state, created_at, updated_at, access_count, last_accessed,
		       has_embedding, user_id
		FROM records`

	var conds []string
	var args []interface{}

	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(filter.Type))
	}
	for _, tag := range filter.Tags {
		conds = append(conds, "tags LIKE ?")
		args = append(args, `%"`+tag+`"%`)
	}
	if filter.CreatedAfter != nil {
		conds = append(conds, "created_at > ?")
		args = append(args, filter.CreatedAfter.Unix())
	}
	if filter.CreatedBefore != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, filter.CreatedBefore.Unix())
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SearchKeyword runs an FTS5 match and aggregates bm25 hits per record.
// Scores are returned positive, higher is better.
func (s *Store) SearchKeyword(ctx context.Context, match string, limit int) ([]KeywordMatch, error) {
	if match == "" {
		return nil, nil
	}

	// bm25 is an fts5 auxiliary function and cannot run inside an aggregate
	// query, so score per row in a subquery and aggregate outside.
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, MIN(score) AS score
		FROM (
			SELECT record_id, bm25(records_fts) AS score
			FROM records_fts
			WHERE records_fts MATCH ?
		)
		GROUP BY record_id
		ORDER BY score
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("full-text search failed: %w", err)
	}
	defer rows.Close()

	var matches []KeywordMatch
	for rows.Next() {
		var m KeywordMatch
		var score float64
		if err := rows.Scan(&m.RecordID, &score); err != nil {
			return nil, err
		}
		// bm25 scores are negative in fts5
		m.Score = -score
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// StoredVector is one durable vector row joined with its record snapshot.
type StoredVector struct {
	RecordID    string
	Content     string
	Embedding   []float32
	Metadata    map[string]interface{}
	CreatedAt   time.Time
	AccessCount int64
}

// LoadVectors reads every durable vector row for index rebuild.
func (s *Store) LoadVectors(ctx context.Context) ([]StoredVector, error) {
	if s.dimension == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.record_id, v.embedding, r.content, r.metadata, r.created_at, r.access_count
		FROM vectors v
		JOIN records r ON r.id = v.record_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	defer rows.Close()

	var out []StoredVector
	for rows.Next() {
		var sv StoredVector
		var blob []byte
		var metadata string
		var createdAt int64
		if err := rows.Scan(&sv.RecordID, &blob, &sv.Content, &metadata, &createdAt, &sv.AccessCount); err != nil {
			return nil, err
		}
		sv.Embedding = decodeVectorBlob(blob)
		sv.CreatedAt = time.Unix(createdAt, 0)
		if metadata != "" {
			_ = json.Unmarshal([]byte(metadata), &sv.Metadata)
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// Vector returns the durable embedding stored for a record, or nil when the
// record has none.
func (s *Store) Vector(ctx context.Context, recordID string) ([]float32, error) {
	if s.dimension == 0 {
		return nil, nil
	}

	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT embedding FROM vectors WHERE record_id = ?", recordID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vector: %w", err)
	}
	return decodeVectorBlob(blob), nil
}

// DeleteExpired removes records that are BOTH older than cutoff AND below
// minImportance. Either condition alone retains the record.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time, minImportance float64) (CleanupResult, error) {
	var result CleanupResult

	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM records WHERE created_at < ? AND importance < ?",
		cutoff.Unix(), minImportance)
	if err != nil {
		return result, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return result, err
		}
		result.DeletedIDs = append(result.DeletedIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, err
	}

	if len(result.DeletedIDs) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	for _, id := range result.DeletedIDs {
		var chunkCount int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM chunks WHERE record_id = ?", id).Scan(&chunkCount); err != nil {
			return result, err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id); err != nil {
			return result, err
		}
		if err := s.deleteDerivedTx(ctx, tx, id); err != nil {
			return result, err
		}
		result.RecordsDeleted++
		result.ChunksDeleted += chunkCount
		if s.dimension > 0 {
			result.VectorsDeleted++
		}
	}

	if err := tx.Commit(); err != nil {
		return CleanupResult{}, err
	}
	return result, nil
}

// Optimize compacts the full-text index and reanalyzes the database.
// Live records are neither lost nor reordered.
func (s *Store) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "INSERT INTO records_fts(records_fts) VALUES('optimize')"); err != nil {
		return fmt.Errorf("failed to optimize full-text index: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("failed to analyze: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	return nil
}

// Counts returns total records and chunks.
func (s *Store) Counts(ctx context.Context) (records, chunks int, err error) {
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&records); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&chunks); err != nil {
		return 0, 0, err
	}
	return records, chunks, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) chunkIDs(ctx context.Context, recordID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE record_id = ? ORDER BY position", recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Chunks returns a record's chunks in position order.
func (s *Store) Chunks(ctx context.Context, recordID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, record_id, position, content FROM chunks WHERE record_id = ? ORDER BY position", recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.RecordID, &c.Position, &c.Content); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var source, typ, state, tags, metadata string
	var createdAt, updatedAt int64
	var lastAccessed sql.NullInt64
	var hasEmbedding int

	err := row.Scan(&rec.ID, &rec.Content, &source, &typ, &rec.Priority, &tags,
		&metadata, &rec.Importance, &state, &createdAt, &updatedAt,
		&rec.AccessCount, &lastAccessed, &hasEmbedding, &rec.UserID)
	if err != nil {
		return nil, err
	}

	rec.Source = Source(source)
	rec.Type = Type(typ)
	rec.State = State(state)
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	rec.HasEmbedding = hasEmbedding != 0
	if lastAccessed.Valid {
		t := time.Unix(lastAccessed.Int64, 0)
		rec.LastAccessed = &t
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &rec, nil
}

// decodeVectorBlob turns vec0's packed little-endian float32 storage back
// into a slice.
func decodeVectorBlob(blob []byte) []float32 {
	if len(blob)%4 != 0 {
		return nil
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
