// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package surreal implements storage.DocumentStore on SurrealDB, using an HNSW
// index for vector queries and a BM25 full-text index for text queries.
package surreal

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/storage"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// Force HTTP/1.1 for WSS connections to prevent HTTP/2 ALPN negotiation.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL        string `yaml:"url"`
	Namespace  string `yaml:"namespace"`
	Database   string `yaml:"database"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	AuthLevel  string `yaml:"auth_level"` // "root" or "database"
	Dimensions int    `yaml:"-"`
}

// DocumentStore implements storage.DocumentStore for SurrealDB.
type DocumentStore struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	cfg    Config
	logger logger.Logger
}

var _ storage.DocumentStore = (*DocumentStore)(nil)

// Open connects with an auto-reconnecting WebSocket, signs in, selects the
// namespace/database and ensures the schema exists.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*DocumentStore, error) {
	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.With("component", "surreal").Handler())

	codec := surrealcbor.New()

	// gorillaws adds /rpc itself
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	sdkLogger.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	auth := surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}
	if cfg.AuthLevel == "database" {
		auth.Namespace = cfg.Namespace
		auth.Database = cfg.Database
	}
	if _, err := db.SignIn(ctx, auth); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	s := &DocumentStore{conn: conn, db: db, cfg: cfg, logger: sdkLogger}
	if err := s.InitSchema(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

// InitSchema defines the document table and its indexes.
func (s *DocumentStore) InitSchema(ctx context.Context) error {
	dims := s.cfg.Dimensions
	if dims <= 0 {
		dims = core.DefaultDimensions
	}
	if _, err := surrealdb.Query[any](ctx, s.db, schemaSQL(dims), nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close closes the SurrealDB connection.
func (s *DocumentStore) Close() error {
	return s.conn.Close(context.Background())
}

// WipeData deletes every document. Use for testing only.
func (s *DocumentStore) WipeData(ctx context.Context) error {
	_, err := surrealdb.Query[any](ctx, s.db, "DELETE "+table, nil)
	return err
}

// row is the stored shape of a document plus the computed score.
type row struct {
	DocID            string         `json:"doc_id"`
	SourceType       string         `json:"source_type"`
	SourceID         string         `json:"source_id"`
	SourceCollection string         `json:"source_collection"`
	OwnerID          *string        `json:"owner_id,omitempty"`
	TeamID           *string        `json:"team_id,omitempty"`
	Embedding        []float32      `json:"embedding"`
	Content          string         `json:"content"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	Keywords         []string       `json:"keywords,omitempty"`
	Status           string         `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Score            float64        `json:"score,omitempty"`
}

func (r row) document() *core.VectorDocument {
	doc := &core.VectorDocument{
		ID:               r.DocID,
		SourceType:       r.SourceType,
		SourceID:         r.SourceID,
		SourceCollection: r.SourceCollection,
		Embedding:        r.Embedding,
		Content:          r.Content,
		Metadata:         r.Metadata,
		Tags:             r.Tags,
		Keywords:         r.Keywords,
		Status:           core.DocumentStatus(r.Status),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.OwnerID != nil {
		doc.OwnerID = *r.OwnerID
	}
	if r.TeamID != nil {
		doc.TeamID = *r.TeamID
	}
	return doc
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

const upsertSQL = `
	UPSERT type::record("` + table + `", $id) SET
		doc_id = $id,
		source_type = $source_type,
		source_id = $source_id,
		source_collection = $source_collection,
		owner_id = $owner_id,
		team_id = $team_id,
		embedding = $embedding,
		content = $content,
		metadata = $metadata,
		tags = $tags,
		keywords = $keywords,
		status = $status,
		created_at = created_at ?? time::now(),
		updated_at = time::now()
	RETURN NONE
`

// Upsert inserts or replaces documents by ID, keeping created_at of existing rows.
func (s *DocumentStore) Upsert(ctx context.Context, docs ...*core.VectorDocument) error {
	for _, doc := range docs {
		status := doc.Status
		if status == "" {
			status = core.DocumentActive
		}
		_, err := surrealdb.Query[any](ctx, s.db, upsertSQL, map[string]any{
			"id":                doc.ID,
			"source_type":       doc.SourceType,
			"source_id":         doc.SourceID,
			"source_collection": doc.SourceCollection,
			"owner_id":          optional(doc.OwnerID),
			"team_id":           optional(doc.TeamID),
			"embedding":         doc.Embedding,
			"content":           doc.Content,
			"metadata":          doc.Metadata,
			"tags":              doc.Tags,
			"keywords":          doc.Keywords,
			"status":            string(status),
		})
		if err != nil {
			return fmt.Errorf("upsert %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Get retrieves a single document by ID.
func (s *DocumentStore) Get(ctx context.Context, id string) (*core.VectorDocument, error) {
	results, err := surrealdb.Query[[]row](ctx, s.db,
		`SELECT * FROM type::record("`+table+`", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return rows[0].document(), nil
}

// Delete removes documents by ID.
func (s *DocumentStore) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		_, err := surrealdb.Query[any](ctx, s.db,
			`DELETE type::record("`+table+`", $id)`, map[string]any{"id": id})
		if err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return nil
}

// DeleteByFilter removes every document matching filter.
func (s *DocumentStore) DeleteByFilter(ctx context.Context, filter core.Filter) (int, error) {
	if filter.IsEmpty() {
		return 0, storage.ErrInvalidQuery
	}
	where, vars := filterClause(filter, "WHERE")
	results, err := surrealdb.Query[[]row](ctx, s.db,
		fmt.Sprintf("DELETE %s %s RETURN BEFORE", table, where), vars)
	if err != nil {
		return 0, fmt.Errorf("delete by filter: %w", err)
	}
	return len(firstResult(results)), nil
}

// VectorQuery runs an HNSW nearest-neighbour query and re-scores with exact cosine similarity.
func (s *DocumentStore) VectorQuery(ctx context.Context, query storage.VectorQuery) ([]*core.ScoredDocument, error) {
	if len(query.Vector) == 0 || query.Limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	candidates := query.Candidates
	if candidates < query.Limit {
		candidates = query.Limit
	}

	where, vars := filterClause(query.Filter, "AND")
	vars["emb"] = query.Vector
	vars["limit"] = query.Limit

	sql := fmt.Sprintf(`
		SELECT *, vector::similarity::cosine(embedding, $emb) AS score
		FROM %s
		WHERE embedding <|%d,40|> $emb %s
		ORDER BY score DESC
		LIMIT $limit
	`, table, candidates, where)

	results, err := surrealdb.Query[[]row](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	rows := firstResult(results)
	scored := make([]*core.ScoredDocument, 0, len(rows))
	for _, r := range rows {
		scored = append(scored, &core.ScoredDocument{Document: r.document(), Score: r.Score, VectorScore: r.Score})
	}
	return scored, nil
}

// TextQuery runs a BM25 full-text query. Scores are scaled by the best hit into [0,1].
func (s *DocumentStore) TextQuery(ctx context.Context, query storage.TextQuery) ([]*core.ScoredDocument, error) {
	if strings.TrimSpace(query.Text) == "" || query.Limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	where, vars := filterClause(query.Filter, "AND")
	vars["q"] = query.Text
	vars["limit"] = query.Limit

	sql := fmt.Sprintf(`
		SELECT *, search::score(0) AS score
		FROM %s
		WHERE content @0@ $q %s
		ORDER BY score DESC
		LIMIT $limit
	`, table, where)

	results, err := surrealdb.Query[[]row](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("text query: %w", err)
	}

	rows := firstResult(results)
	var best float64
	for _, r := range rows {
		if r.Score > best {
			best = r.Score
		}
	}
	scored := make([]*core.ScoredDocument, 0, len(rows))
	for _, r := range rows {
		score := 0.0
		if best > 0 {
			score = r.Score / best
		}
		scored = append(scored, &core.ScoredDocument{Document: r.document(), Score: score, TextScore: score})
	}
	return scored, nil
}

type countRow struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Count returns the number of documents matching filter.
func (s *DocumentStore) Count(ctx context.Context, filter core.Filter) (int, error) {
	where, vars := filterClause(filter, "WHERE")
	results, err := surrealdb.Query[[]countRow](ctx, s.db,
		fmt.Sprintf("SELECT count() AS count FROM %s %s GROUP ALL", table, where), vars)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	rows := firstResult(results)
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}

// Stats returns collection statistics.
func (s *DocumentStore) Stats(ctx context.Context) (*core.CollectionStats, error) {
	stats := &core.CollectionStats{
		BySourceType: make(map[string]int),
		ByStatus:     make(map[string]int),
	}

	for field, into := range map[string]map[string]int{"source_type": stats.BySourceType, "status": stats.ByStatus} {
		sql := fmt.Sprintf("SELECT %[1]s AS key, count() AS count FROM %[2]s GROUP BY %[1]s", field, table)
		results, err := surrealdb.Query[[]countRow](ctx, s.db, sql, nil)
		if err != nil {
			return nil, fmt.Errorf("stats by %s: %w", field, err)
		}
		for _, r := range firstResult(results) {
			into[r.Key] = r.Count
		}
	}
	for _, n := range stats.BySourceType {
		stats.TotalDocuments += n
	}
	return stats, nil
}

// IndexExists accepts either the generic names vector/text/source or a raw SurrealDB index name.
func (s *DocumentStore) IndexExists(ctx context.Context, name string) (bool, error) {
	switch name {
	case "vector":
		name = vectorIndex
	case "text":
		name = textIndex
	case "source":
		name = sourceIndex
	}

	results, err := surrealdb.Query[map[string]any](ctx, s.db, "INFO FOR TABLE "+table, nil)
	if err != nil {
		return false, fmt.Errorf("info for table: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return false, nil
	}
	indexes, _ := (*results)[0].Result["indexes"].(map[string]any)
	_, ok := indexes[name]
	return ok, nil
}

// filterClause renders filter as SurrealQL predicates joined by AND and
// prefixed by lead ("WHERE" or "AND"). Values travel as query variables.
func filterClause(filter core.Filter, lead string) (string, map[string]any) {
	vars := map[string]any{}
	var preds []string
	if filter.SourceType != "" {
		preds = append(preds, "source_type = $f_source_type")
		vars["f_source_type"] = filter.SourceType
	}
	if filter.Status != "" {
		preds = append(preds, "status = $f_status")
		vars["f_status"] = string(filter.Status)
	}
	if filter.OwnerID != "" {
		preds = append(preds, "owner_id = $f_owner_id")
		vars["f_owner_id"] = filter.OwnerID
	}
	i := 0
	for k, v := range filter.Metadata {
		preds = append(preds, fmt.Sprintf("<string> metadata[$f_mk%d] = $f_mv%d", i, i))
		vars[fmt.Sprintf("f_mk%d", i)] = k
		vars[fmt.Sprintf("f_mv%d", i)] = v
		i++
	}
	if len(preds) == 0 {
		return "", vars
	}
	return lead + " " + strings.Join(preds, " AND "), vars
}

func firstResult[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}
