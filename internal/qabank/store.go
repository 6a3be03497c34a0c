// Package qabank is the durable learned-answer store. Questions answered
// by the generator are persisted here and reused on later runs, so the
// same question is never paid for twice.
package qabank

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/polzovatel/easy-apply-agent/internal/answers"
)

const schema = `
CREATE TABLE IF NOT EXISTS question_bank (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question TEXT NOT NULL,
	question_normalized TEXT NOT NULL,
	answer TEXT NOT NULL,
	job_title TEXT,
	company TEXT,
	job_context TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	last_used TIMESTAMP,
	times_used INTEGER DEFAULT 1,
	success_count INTEGER DEFAULT 0,
	similarity_hash TEXT,
	UNIQUE(question_normalized)
);
CREATE INDEX IF NOT EXISTS idx_question_norm ON question_bank(question_normalized);
CREATE INDEX IF NOT EXISTS idx_similarity_hash ON question_bank(similarity_hash);
`

// Entry is one row of the question bank.
type Entry struct {
	ID                 int64
	Question           string
	QuestionNormalized string
	Answer             string
	JobTitle           string
	Company            string
	JobContext         string
	CreatedAt          time.Time
	LastUsed           time.Time
	TimesUsed          int
	SuccessCount       int
	SimilarityHash     string
}

// Store is a file-backed SQLite question bank. It assumes a single
// writer: one automation session per store file. Concurrent processes
// sharing a file must serialize access externally.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the store at path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		path,
	))
	if err != nil {
		return nil, fmt.Errorf("open question bank: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping question bank: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize question bank schema: %w", err)
	}
	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger.Info().Str("path", path).Msg("question bank opened")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup finds the entry best matching question: an exact match on the
// normalized text first, then a fuzzy scan of near-duplicates. Returns
// (nil, 0, nil) when nothing scores at or above threshold.
func (s *Store) Lookup(question string, threshold float64) (*Entry, float64, error) {
	norm := answers.Normalize(question)
	if norm == "" {
		return nil, 0, nil
	}

	entry, err := s.selectOne(`SELECT `+columns+` FROM question_bank
		WHERE question_normalized = ?
		ORDER BY times_used DESC, last_used DESC LIMIT 1`, norm)
	if err != nil {
		return nil, 0, err
	}
	if entry != nil {
		return entry, 1.0, nil
	}

	// Same fingerprint bucket first, then the full bank. The bank stays
	// small enough (hundreds of rows) that a full scan is fine.
	best, bestScore, err := s.scan(question, threshold, `SELECT `+columns+` FROM question_bank
		WHERE similarity_hash = ?
		ORDER BY times_used DESC, last_used DESC LIMIT 5`, Fingerprint(question))
	if err != nil {
		return nil, 0, err
	}
	if best != nil {
		return best, bestScore, nil
	}
	return s.scan(question, threshold, `SELECT `+columns+` FROM question_bank`)
}

// Upsert inserts a question/answer pair, or bumps usage stats on the
// existing row when the normalized question is already present.
func (s *Store) Upsert(question, answer string, jobCtx answers.JobContext) error {
	norm := answers.Normalize(question)
	if norm == "" {
		return errors.New("empty question")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`INSERT INTO question_bank
		(question, question_normalized, answer, job_title, company, job_context, similarity_hash, created_at, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(question_normalized) DO UPDATE SET
			answer = excluded.answer,
			job_title = excluded.job_title,
			company = excluded.company,
			job_context = excluded.job_context,
			times_used = times_used + 1,
			last_used = excluded.last_used`,
		question, norm, answer, jobCtx.Title, jobCtx.Company, jobCtx.Description,
		Fingerprint(question), now, now)
	if err != nil {
		return fmt.Errorf("upsert question: %w", err)
	}
	return nil
}

// TouchUsage bumps times_used and last_used for a reused entry.
func (s *Store) TouchUsage(id int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.Exec(`UPDATE question_bank
		SET times_used = times_used + 1, last_used = ? WHERE id = ?`, now, id); err != nil {
		return fmt.Errorf("update usage: %w", err)
	}
	return nil
}

// RecordSuccess bumps success_count after the answer made it into a
// submitted application.
func (s *Store) RecordSuccess(id int64) error {
	if _, err := s.db.Exec(`UPDATE question_bank
		SET success_count = success_count + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	return nil
}

// All returns up to limit entries, most used first.
func (s *Store) All(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+columns+` FROM question_bank
		ORDER BY times_used DESC, last_used DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// FindSimilar adapts Lookup to the cascade's LearnedStore interface.
func (s *Store) FindSimilar(question string, threshold float64) (*answers.Learned, error) {
	entry, score, err := s.Lookup(question, threshold)
	if err != nil || entry == nil {
		return nil, err
	}
	return &answers.Learned{
		ID:       entry.ID,
		Question: entry.Question,
		Answer:   entry.Answer,
		Score:    score,
	}, nil
}

// Remember persists a generated answer for later reuse.
func (s *Store) Remember(q answers.Question, answer string) error {
	return s.Upsert(q.Text, answer, q.Context)
}

// MarkUsed records a reuse of a stored answer.
func (s *Store) MarkUsed(id int64) error {
	return s.TouchUsage(id)
}

const columns = `id, question, question_normalized, answer,
	COALESCE(job_title, ''), COALESCE(company, ''), COALESCE(job_context, ''),
	COALESCE(created_at, ''), COALESCE(last_used, ''),
	times_used, success_count, COALESCE(similarity_hash, '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (*Entry, error) {
	var e Entry
	var createdAt, lastUsed string
	if err := r.Scan(&e.ID, &e.Question, &e.QuestionNormalized, &e.Answer,
		&e.JobTitle, &e.Company, &e.JobContext,
		&createdAt, &lastUsed,
		&e.TimesUsed, &e.SuccessCount, &e.SimilarityHash); err != nil {
		return nil, fmt.Errorf("scan question row: %w", err)
	}
	e.CreatedAt = parseTime(createdAt)
	e.LastUsed = parseTime(lastUsed)
	return &e, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	// CURRENT_TIMESTAMP default format.
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

func (s *Store) selectOne(query string, args ...any) (*Entry, error) {
	entry, err := scanEntry(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

func (s *Store) scan(question string, threshold float64, query string, args ...any) (*Entry, float64, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("scan question bank: %w", err)
	}
	defer rows.Close()

	var best *Entry
	bestScore := 0.0
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		score := answers.Jaccard(question, e.Question)
		if score >= threshold && score > bestScore {
			best, bestScore = e, score
		}
	}
	return best, bestScore, rows.Err()
}
