package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

// ExcelStore persists tables as worksheets of a single .xlsx workbook. It is
// the workbook analogue of a spreadsheet database: one file, one sheet per
// table, header in the first row.
//
// Every operation opens the workbook, applies the change, and saves. The
// in-process mutex serialises writers within this process only; the
// single-writer assumption on Store still applies across processes.
type ExcelStore struct {
	path string
	mu   sync.Mutex
}

// NewExcelStore builds a workbook-backed store at the given path. The file is
// created on first write.
func NewExcelStore(path string) *ExcelStore {
	return &ExcelStore{path: path}
}

func (s *ExcelStore) Read(ctx context.Context, table string) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		if os.IsNotExist(err) {
			return Table{}, nil
		}
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return readSheet(f, table)
}

func (s *ExcelStore) Write(ctx context.Context, table string, data Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := replaceSheet(f, table, data); err != nil {
		return err
	}
	return s.save(f)
}

func (s *ExcelStore) Append(ctx context.Context, table string, data Table) error {
	if len(data.Rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	existing, err := readSheet(f, table)
	if err != nil {
		return err
	}

	if len(existing.Header) == 0 || !sameHeader(existing.Header, data.Header) {
		if err := replaceSheet(f, table, data); err != nil {
			return err
		}
		return s.save(f)
	}

	start := len(existing.Rows) + 2 // 1-based, after header and existing rows
	for i, row := range data.Rows {
		if err := setRow(f, table, start+i, row); err != nil {
			return err
		}
	}
	return s.save(f)
}

func (s *ExcelStore) Upsert(ctx context.Context, table string, data Table, keyColumns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	existing, err := readSheet(f, table)
	if err != nil {
		return err
	}

	merged := data
	if !existing.Empty() {
		merged = mergeUpsert(existing, data, keyColumns)
	}
	if err := replaceSheet(f, table, merged); err != nil {
		return err
	}
	return s.save(f)
}

func (s *ExcelStore) open() (*excelize.File, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, err
	}
	return excelize.OpenFile(s.path)
}

func (s *ExcelStore) openOrCreate() (*excelize.File, error) {
	f, err := s.open()
	if err == nil {
		return f, nil
	}
	if os.IsNotExist(err) {
		return excelize.NewFile(), nil
	}
	return nil, fmt.Errorf("open workbook: %w", err)
}

func (s *ExcelStore) save(f *excelize.File) error {
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func readSheet(f *excelize.File, table string) (Table, error) {
	idx, err := f.GetSheetIndex(table)
	if err != nil || idx < 0 {
		return Table{}, nil
	}

	rows, err := f.GetRows(table)
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %s: %w", table, err)
	}
	if len(rows) < 2 {
		return Table{}, nil
	}
	return Table{Header: rows[0], Rows: rows[1:]}, nil
}

func replaceSheet(f *excelize.File, table string, data Table) error {
	if idx, err := f.GetSheetIndex(table); err == nil && idx >= 0 {
		if err := f.DeleteSheet(table); err != nil {
			return fmt.Errorf("clear sheet %s: %w", table, err)
		}
	}
	if _, err := f.NewSheet(table); err != nil {
		return fmt.Errorf("create sheet %s: %w", table, err)
	}

	if err := setRow(f, table, 1, data.Header); err != nil {
		return err
	}
	for i, row := range data.Rows {
		if err := setRow(f, table, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, table string, rowNum int, cells []string) error {
	values := make([]interface{}, len(cells))
	for i, cell := range cells {
		values[i] = cell
	}
	axis, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(table, axis, &values); err != nil {
		return fmt.Errorf("write sheet %s row %d: %w", table, rowNum, err)
	}
	return nil
}
