package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkbookStore(t *testing.T) *ExcelStore {
	t.Helper()
	return NewExcelStore(filepath.Join(t.TempDir(), "pipeline.xlsx"))
}

func TestExcelStoreReadMissingWorkbook(t *testing.T) {
	s := newWorkbookStore(t)

	got, err := s.Read(context.Background(), "raw_student_scores")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestExcelStoreReadMissingSheet(t *testing.T) {
	s := newWorkbookStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "t", Table{Header: []string{"a"}, Rows: [][]string{{"1"}}}))

	got, err := s.Read(ctx, "other")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestExcelStoreWriteOverwrites(t *testing.T) {
	s := newWorkbookStore(t)
	ctx := context.Background()

	first := Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "x"}, {"2", "y"}}}
	require.NoError(t, s.Write(ctx, "t", first))

	second := Table{Header: []string{"a", "b"}, Rows: [][]string{{"3", "z"}}}
	require.NoError(t, s.Write(ctx, "t", second))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Header)
	assert.Equal(t, [][]string{{"3", "z"}}, got.Rows)
}

func TestExcelStoreAppendMatchingHeader(t *testing.T) {
	s := newWorkbookStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "t", Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "x"}}}))
	require.NoError(t, s.Append(ctx, "t", Table{Header: []string{"a", "b"}, Rows: [][]string{{"2", "y"}}}))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "x"}, {"2", "y"}}, got.Rows)
}

func TestExcelStoreAppendHeaderMismatchRewrites(t *testing.T) {
	s := newWorkbookStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "t", Table{Header: []string{"a"}, Rows: [][]string{{"1"}}}))
	require.NoError(t, s.Append(ctx, "t", Table{Header: []string{"a", "b"}, Rows: [][]string{{"2", "y"}}}))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Header)
	assert.Equal(t, [][]string{{"2", "y"}}, got.Rows)
}

func TestExcelStoreAppendEmptyIsNoop(t *testing.T) {
	s := newWorkbookStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "t", Table{Header: []string{"a"}, Rows: [][]string{{"1"}}}))
	require.NoError(t, s.Append(ctx, "t", Table{Header: []string{"a"}}))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1"}}, got.Rows)
}

func TestExcelStoreAppendCreatesMissingSheet(t *testing.T) {
	s := newWorkbookStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "t", Table{Header: []string{"a"}, Rows: [][]string{{"1"}}}))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Header)
	assert.Equal(t, [][]string{{"1"}}, got.Rows)
}

func TestExcelStoreUpsert(t *testing.T) {
	s := newWorkbookStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "t", Table{
		Header: []string{"student_id", "note"},
		Rows:   [][]string{{"S001", "old"}, {"S002", "keep"}},
	}))
	require.NoError(t, s.Upsert(ctx, "t", Table{
		Header: []string{"student_id", "note"},
		Rows:   [][]string{{"S001", "new"}, {"S003", "added"}},
	}, []string{"student_id"}))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"S002", "keep"},
		{"S001", "new"},
		{"S003", "added"},
	}, got.Rows)
}

func TestExcelStoreUpsertIdempotent(t *testing.T) {
	s := newWorkbookStore(t)
	ctx := context.Background()

	incoming := Table{
		Header: []string{"student_id", "note"},
		Rows:   [][]string{{"S001", "v"}},
	}
	require.NoError(t, s.Upsert(ctx, "t", incoming, []string{"student_id"}))
	require.NoError(t, s.Upsert(ctx, "t", incoming, []string{"student_id"}))

	got, err := s.Read(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"S001", "v"}}, got.Rows)
}
