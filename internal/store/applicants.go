package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/gradstream/applicant-pipeline/internal/record"
)

// DefaultBatchSize bounds how many rows one INSERT carries. Correctness
// is independent of the chunk size; it only limits statement size.
const DefaultBatchSize = 1000

const applicantColumnCount = 14

const createApplicantsSQL = `
CREATE TABLE IF NOT EXISTS applicants (
	p_id SERIAL PRIMARY KEY,
	program TEXT,
	comments TEXT,
	date_added DATE,
	url TEXT,
	status TEXT,
	term TEXT,
	us_or_international TEXT,
	gpa DOUBLE PRECISION,
	gre DOUBLE PRECISION,
	gre_v DOUBLE PRECISION,
	gre_aw DOUBLE PRECISION,
	degree TEXT,
	llm_generated_program TEXT,
	llm_generated_university TEXT
)`

const createApplicantsURLIndexSQL = `
CREATE UNIQUE INDEX IF NOT EXISTS applicants_url_uniq ON applicants (url)`

// ApplicantStore loads canonical records into the applicants table with
// conflict-ignoring batch inserts keyed on url.
type ApplicantStore struct {
	db        DBTX
	batchSize int
}

// NewApplicantStore constructs a store over db. A batchSize of zero or
// less falls back to DefaultBatchSize.
func NewApplicantStore(db DBTX, batchSize int) *ApplicantStore {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ApplicantStore{db: db, batchSize: batchSize}
}

// EnsureSchema creates the applicants table and the unique url index if
// they do not exist. The unique index is what makes re-runs and
// concurrent workers duplicate-free.
func (s *ApplicantStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createApplicantsSQL); err != nil {
		return fmt.Errorf("create applicants table: %w", err)
	}
	if _, err := s.db.Exec(ctx, createApplicantsURLIndexSQL); err != nil {
		return fmt.Errorf("create applicants url index: %w", err)
	}
	return nil
}

// UpsertBatch inserts records in chunks with ON CONFLICT (url) DO
// NOTHING and returns how many rows were actually inserted. Re-applying
// the same batch inserts zero rows.
func (s *ApplicantStore) UpsertBatch(ctx context.Context, records []record.Record) (int64, error) {
	var inserted int64
	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]
		sql, args := buildApplicantInsert(chunk)
		tag, err := s.db.Exec(ctx, sql, args...)
		if err != nil {
			return inserted, fmt.Errorf("insert applicants chunk: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func buildApplicantInsert(records []record.Record) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO applicants (
	program, comments, date_added, url, status, term, us_or_international,
	gpa, gre, gre_v, gre_aw, degree, llm_generated_program, llm_generated_university
) VALUES `)

	args := make([]any, 0, len(records)*applicantColumnCount)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for col := 0; col < applicantColumnCount; col++ {
			if col > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*applicantColumnCount+col+1)
		}
		sb.WriteString(")")
		args = append(args,
			rec.Program,
			rec.Comments,
			rec.DateAdded,
			rec.URL,
			rec.Status,
			rec.Term,
			rec.USOrInternational,
			rec.GPA,
			rec.GRE,
			rec.GREVerbal,
			rec.GREWriting,
			rec.Degree,
			rec.LLMGeneratedProgram,
			rec.LLMGeneratedUniversity,
		)
	}
	sb.WriteString(" ON CONFLICT (url) DO NOTHING")
	return sb.String(), args
}
