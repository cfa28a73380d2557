package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRecords(t *testing.T) {
	table := Table{
		Header: []string{"student_id", "subject", "score"},
		Rows: [][]string{
			{"S001", "Math", "55"},
			{"S002", "Physics"},
		},
	}

	records := table.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "S001", records[0]["student_id"])
	assert.Equal(t, "55", records[0]["score"])
	// short rows pad missing columns with empty cells
	assert.Equal(t, "", records[1]["score"])
}

func TestTableEmpty(t *testing.T) {
	assert.True(t, Table{}.Empty())
	assert.True(t, Table{Header: []string{"a"}}.Empty())
	assert.False(t, Table{Header: []string{"a"}, Rows: [][]string{{"1"}}}.Empty())
}

func TestMemoryStoreReadMissingTable(t *testing.T) {
	s := NewMemoryStore()

	got, err := s.Read(context.Background(), "nope")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestMemoryStoreWriteOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := Table{Header: []string{"a"}, Rows: [][]string{{"1"}, {"2"}}}
	require.NoError(t, s.Write(ctx, "t", first))

	second := Table{Header: []string{"a"}, Rows: [][]string{{"3"}}}
	require.NoError(t, s.Write(ctx, "t", second))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"3"}}, got.Rows)
}

func TestMemoryStoreAppend(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "x"}}}
	require.NoError(t, s.Append(ctx, "t", base))

	more := Table{Header: []string{"a", "b"}, Rows: [][]string{{"2", "y"}}}
	require.NoError(t, s.Append(ctx, "t", more))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "x"}, {"2", "y"}}, got.Rows)
}

func TestMemoryStoreAppendHeaderMismatchRewrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "t", Table{Header: []string{"a"}, Rows: [][]string{{"1"}}}))
	require.NoError(t, s.Append(ctx, "t", Table{Header: []string{"a", "b"}, Rows: [][]string{{"2", "y"}}}))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Header)
	assert.Equal(t, [][]string{{"2", "y"}}, got.Rows)
}

func TestMemoryStoreUpsert(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	existing := Table{
		Header: []string{"student_id", "note"},
		Rows:   [][]string{{"S001", "old"}, {"S002", "keep"}},
	}
	require.NoError(t, s.Write(ctx, "t", existing))

	incoming := Table{
		Header: []string{"student_id", "note"},
		Rows:   [][]string{{"S001", "new"}, {"S003", "added"}},
	}
	require.NoError(t, s.Upsert(ctx, "t", incoming, []string{"student_id"}))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"S002", "keep"},
		{"S001", "new"},
		{"S003", "added"},
	}, got.Rows)
}

func TestMemoryStoreUpsertIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	row := Table{Header: []string{"student_id", "note"}, Rows: [][]string{{"S001", "v"}}}
	require.NoError(t, s.Upsert(ctx, "t", row, []string{"student_id"}))
	require.NoError(t, s.Upsert(ctx, "t", row, []string{"student_id"}))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Len(t, got.Rows, 1)
}

func TestMemoryStoreReadIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "t", Table{Header: []string{"a"}, Rows: [][]string{{"1"}}}))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	got.Rows[0][0] = "mutated"

	again, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "1", again.Rows[0][0])
}
