package store

import "context"

// Well-known table names. Each table is a named channel between two pipeline
// stages: a stage writes its table before the next stage reads it.
const (
	TableRawScores           = "raw_student_scores"
	TableValidatedResults    = "validated_results"
	TableSubjectAnalytics    = "subject_analytics"
	TableSubjectInsights     = "subject_insights"
	TableSubjectSummaries    = "subject_summaries"
	TableConsolidatedHistory = "student_consolidated_history"
	TableConsolidatedLatest  = "student_consolidated_latest"
)

// Table is the in-memory shape of a named table: a header row followed by
// data rows. Cells are plain strings; typed interpretation belongs to the
// readers.
type Table struct {
	Header []string
	Rows   [][]string
}

// Empty reports whether the table holds no data rows.
func (t Table) Empty() bool {
	return len(t.Header) == 0 || len(t.Rows) == 0
}

// Records maps each data row to a header-keyed cell map. Rows shorter than
// the header yield empty cells for the missing columns.
func (t Table) Records() []map[string]string {
	records := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Header))
		for i, col := range t.Header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records
}

// Store is the persistence boundary every pipeline stage depends on.
//
// Upsert and Write are full-table read-modify-rewrite operations. The store
// assumes a single writer per table; concurrent writers to the same table can
// lose updates. This matches the batch pipeline's sequential execution model
// and is a documented precondition, not an oversight.
type Store interface {
	// Read returns the named table. A missing table, or one with fewer than a
	// header plus one data row, yields an empty Table and no error.
	Read(ctx context.Context, table string) (Table, error)

	// Write clears the table (creating it if needed) and writes header + rows.
	Write(ctx context.Context, table string, data Table) error

	// Append adds rows beneath the existing header. If the table is new or its
	// header differs from the incoming one, Append behaves like Write.
	Append(ctx context.Context, table string, data Table) error

	// Upsert removes existing rows whose key tuple (over keyColumns) appears in
	// the incoming rows, appends the incoming rows, and rewrites the table.
	// Last write wins per key; at most one row per key remains when the
	// incoming data itself is key-unique.
	Upsert(ctx context.Context, table string, data Table, keyColumns []string) error
}

// keyTuple joins the key column values of a record into a comparable string.
func keyTuple(rec map[string]string, keyColumns []string) string {
	key := ""
	for i, col := range keyColumns {
		if i > 0 {
			key += "\x1f"
		}
		key += rec[col]
	}
	return key
}

// mergeUpsert implements the shared upsert row merge: existing rows whose key
// appears in the incoming data are dropped, then the incoming rows are
// appended after the survivors.
func mergeUpsert(existing, incoming Table, keyColumns []string) Table {
	incomingKeys := make(map[string]struct{}, len(incoming.Rows))
	for _, rec := range incoming.Records() {
		incomingKeys[keyTuple(rec, keyColumns)] = struct{}{}
	}

	merged := Table{Header: existing.Header}
	existingRecs := existing.Records()
	for i, rec := range existingRecs {
		if _, replaced := incomingKeys[keyTuple(rec, keyColumns)]; !replaced {
			merged.Rows = append(merged.Rows, existing.Rows[i])
		}
	}

	// Incoming rows are re-projected onto the existing header so the rewritten
	// table stays rectangular even if column order differs.
	incomingRecs := incoming.Records()
	for _, rec := range incomingRecs {
		row := make([]string, len(existing.Header))
		for j, col := range existing.Header {
			row[j] = rec[col]
		}
		merged.Rows = append(merged.Rows, row)
	}
	return merged
}

func sameHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
