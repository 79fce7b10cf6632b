package history

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"askbridge/internal/model"
)

// SQLiteStore keeps an audit trail of questions. Pending rows are never
// restored; Init marks leftovers from a previous process as abandoned.
type SQLiteStore struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and marks questions left pending by a previous
// process as abandoned. Only the serving process should call it.
func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`UPDATE questions SET status = ? WHERE status = ?`,
		string(model.StatusAbandoned), string(model.StatusPending),
	)
	return err
}

func (s *SQLiteStore) open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return err
	}

	schema := `
CREATE TABLE IF NOT EXISTS questions (
  question_id TEXT PRIMARY KEY,
  question TEXT NOT NULL,
  answer TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  asked_unix INTEGER NOT NULL,
  answered_unix INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_questions_asked ON questions(asked_unix);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) RecordAsked(ctx context.Context, id, question string) error {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO questions(question_id, question, status, asked_unix) VALUES(?, ?, ?, ?)
		 ON CONFLICT(question_id) DO UPDATE SET question=excluded.question, status=excluded.status, asked_unix=excluded.asked_unix`,
		id, question, string(model.StatusPending), time.Now().Unix(),
	)
	return err
}

func (s *SQLiteStore) RecordAnswered(ctx context.Context, id, answer string) error {
	return s.finish(ctx, id, answer, model.StatusAnswered)
}

func (s *SQLiteStore) RecordInterrupted(ctx context.Context, id string) error {
	return s.finish(ctx, id, "", model.StatusInterrupted)
}

func (s *SQLiteStore) finish(ctx context.Context, id, answer string, status model.QuestionStatus) error {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE questions SET answer = ?, status = ?, answered_unix = ? WHERE question_id = ? AND status = ?`,
		answer, string(status), time.Now().Unix(), id, string(model.StatusPending),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("no pending question " + id)
	}
	return nil
}

// Recent returns up to limit questions, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]model.QuestionRecord, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx,
		`SELECT question_id, question, answer, status, asked_unix, answered_unix
		 FROM questions ORDER BY asked_unix DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QuestionRecord
	for rows.Next() {
		var (
			rec             model.QuestionRecord
			status          string
			asked, answered int64
		)
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Answer, &status, &asked, &answered); err != nil {
			return nil, err
		}
		rec.Status = model.QuestionStatus(status)
		rec.AskedAt = time.Unix(asked, 0)
		if answered > 0 {
			rec.AnsweredAt = time.Unix(answered, 0)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) ensureDB(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db != nil {
		return db, nil
	}
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.New("history store closed")
	}
	return s.db, nil
}

var _ model.HistoryStore = (*SQLiteStore)(nil)
