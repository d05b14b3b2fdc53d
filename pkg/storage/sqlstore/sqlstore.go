// Package sqlstore implements storage.Driver on ent's dialect-aware SQL
// builders. The sqlite and postgres drivers share it and differ only in the
// ent dialect they open with.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/dialect/sql/sqlgraph"
	"entgo.io/ent/schema/field"

	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/storage"
	"github.com/papercomputeco/ragtube/pkg/transcript"
)

const messagesTable = "messages"

// maxPutAttempts bounds the retries of PutMessages when a concurrent writer
// claimed the same sequence numbers first.
const maxPutAttempts = 3

var (
	// MessagesColumns holds the columns for the "messages" table.
	MessagesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "session_id", Type: field.TypeString},
		{Name: "seq", Type: field.TypeInt},
		{Name: "role", Type: field.TypeString},
		{Name: "text", Type: field.TypeString, Size: 2147483647},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "context", Type: field.TypeString, Size: 2147483647},
		{Name: "is_error", Type: field.TypeBool, Default: false},
	}

	// MessagesTable holds the schema information for the "messages" table.
	MessagesTable = &schema.Table{
		Name:       messagesTable,
		Columns:    MessagesColumns,
		PrimaryKey: []*schema.Column{MessagesColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "messages_session_seq",
				Unique:  true,
				Columns: []*schema.Column{MessagesColumns[1], MessagesColumns[2]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{MessagesTable}
)

var messageColumns = []string{"id", "session_id", "seq", "role", "text", "created_at", "context", "is_error"}

// Store is a storage.Driver over an ent SQL driver.
type Store struct {
	drv *entsql.Driver
}

// New wraps db with ent's SQL driver for the given dialect (dialect.SQLite
// or dialect.Postgres), migrates the schema and returns a Store.
func New(ctx context.Context, db *sql.DB, dialect string) (*Store, error) {
	drv := entsql.OpenDB(dialect, db)

	migrate, err := schema.NewMigrate(drv)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare migration: %w", err)
	}

	// Append-only: new tables, columns and indexes are created, nothing is
	// dropped.
	if err := migrate.Create(ctx, Tables...); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{drv: drv}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.drv.DB()
}

// PutMessages inserts msgs in one transaction, skipping existing IDs. When a
// concurrent writer takes the same sequence numbers the transaction is
// retried from a fresh read of the session.
func (s *Store) PutMessages(ctx context.Context, sessionID string, msgs []storage.StoredMessage) error {
	if sessionID == "" {
		return errors.New("cannot store messages without a session id")
	}
	if len(msgs) == 0 {
		return nil
	}
	for _, m := range msgs {
		if m.ID == "" {
			return errors.New("cannot store message without an id")
		}
	}

	var err error
	for range maxPutAttempts {
		err = s.putMessages(ctx, sessionID, msgs)
		if err == nil || !sqlgraph.IsUniqueConstraintError(err) {
			return err
		}
	}
	return fmt.Errorf("storing session %s after %d attempts: %w", sessionID, maxPutAttempts, err)
}

func (s *Store) putMessages(ctx context.Context, sessionID string, msgs []storage.StoredMessage) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b := entsql.Dialect(s.drv.Dialect())
	t := b.Table(messagesTable)

	query, args := b.Select(entsql.Max(t.C("seq"))).
		From(t).
		Where(entsql.EQ(t.C("session_id"), sessionID)).
		Query()

	var rows entsql.Rows
	if err := tx.Query(ctx, query, args, &rows); err != nil {
		return fmt.Errorf("reading session sequence: %w", err)
	}
	var maxSeq sql.NullInt64
	if rows.Next() {
		if err := rows.Scan(&maxSeq); err != nil {
			rows.Close()
			return fmt.Errorf("reading session sequence: %w", err)
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("reading session sequence: %w", err)
	}

	next := 0
	if maxSeq.Valid {
		next = int(maxSeq.Int64) + 1
	}

	for _, m := range msgs {
		docs, err := encodeContext(m.Context)
		if err != nil {
			return err
		}

		query, args := b.Insert(messagesTable).
			Columns(messageColumns...).
			Values(m.ID, sessionID, next, m.Role, m.Text, m.Timestamp.UTC().UnixMicro(), docs, m.IsError).
			OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
			Query()

		var res sql.Result
		if err := tx.Exec(ctx, query, args, &res); err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			next++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}
	return nil
}

// ListSessions summarizes sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, query storage.SessionQuery) ([]storage.SessionSummary, error) {
	b := entsql.Dialect(s.drv.Dialect())
	t := b.Table(messagesTable)

	sel := b.Select(
		t.C("session_id"),
		entsql.As(entsql.Count("*"), "message_count"),
		entsql.As(entsql.Min(t.C("created_at")), "started_at"),
		entsql.As(entsql.Max(t.C("created_at")), "updated_at"),
	).
		From(t).
		GroupBy(t.C("session_id")).
		OrderBy(entsql.Desc("updated_at"), t.C("session_id"))

	switch {
	case query.Limit > 0:
		sel.Limit(query.Limit)
	case query.Offset > 0:
		// SQLite has no OFFSET without LIMIT.
		sel.Limit(math.MaxInt32)
	}
	if query.Offset > 0 {
		sel.Offset(query.Offset)
	}

	q, args := sel.Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	summaries := []storage.SessionSummary{}
	for rows.Next() {
		var (
			sum            storage.SessionSummary
			started, ended int64
		)
		if err := rows.Scan(&sum.ID, &sum.MessageCount, &started, &ended); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sum.StartedAt = time.UnixMicro(started).UTC()
		sum.UpdatedAt = time.UnixMicro(ended).UTC()
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.fillFirstQuestions(ctx, summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// fillFirstQuestions sets FirstQuestion to the earliest user message of
// each summarized session.
func (s *Store) fillFirstQuestions(ctx context.Context, summaries []storage.SessionSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	ids := make([]any, len(summaries))
	index := make(map[string]int, len(summaries))
	for i, sum := range summaries {
		ids[i] = sum.ID
		index[sum.ID] = i
	}

	b := entsql.Dialect(s.drv.Dialect())
	t := b.Table(messagesTable)
	q, args := b.Select(t.C("session_id"), t.C("text")).
		From(t).
		Where(entsql.And(
			entsql.In(t.C("session_id"), ids...),
			entsql.EQ(t.C("role"), string(transcript.RoleUser)),
		)).
		OrderBy(t.C("session_id"), t.C("seq")).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return fmt.Errorf("reading first questions: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool, len(summaries))
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return fmt.Errorf("scanning first question: %w", err)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		summaries[index[id]].FirstQuestion = text
	}
	return rows.Err()
}

// GetSession returns one session's messages in order.
func (s *Store) GetSession(ctx context.Context, sessionID string) ([]storage.StoredMessage, error) {
	b := entsql.Dialect(s.drv.Dialect())
	t := b.Table(messagesTable)

	cols := make([]string, len(messageColumns))
	for i, c := range messageColumns {
		cols[i] = t.C(c)
	}
	q, args := b.Select(cols...).
		From(t).
		Where(entsql.EQ(t.C("session_id"), sessionID)).
		OrderBy(t.C("seq")).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("reading session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var msgs []storage.StoredMessage
	for rows.Next() {
		var (
			m       storage.StoredMessage
			created int64
			docs    string
			err     error
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Role, &m.Text, &created, &docs, &m.IsError); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Timestamp = time.UnixMicro(created).UTC()
		if m.Context, err = decodeContext(docs); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(msgs) == 0 {
		return nil, storage.NotFoundError{SessionID: sessionID}
	}
	return msgs, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.drv.Close()
}

func encodeContext(docs []rag.SourceDocument) (string, error) {
	if len(docs) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("encoding context: %w", err)
	}
	return string(b), nil
}

func decodeContext(s string) ([]rag.SourceDocument, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var docs []rag.SourceDocument
	if err := json.Unmarshal([]byte(s), &docs); err != nil {
		return nil, fmt.Errorf("decoding context: %w", err)
	}
	return docs, nil
}

var _ storage.Driver = (*Store)(nil)
