package excel

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func sheetBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()

	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName() error = %v", err)
		}
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return buf.Bytes()
}

func TestParse(t *testing.T) {
	t.Parallel()

	data := sheetBytes(t, [][]any{
		{"Candidate_ID", "Candidate_Name", "NOS2_Practical", "NOS1_Theory", "NOS1_Practical", "NOS2_Theory"},
		{"EXT-1", "Ada Lovelace", 65, 70, 72, 80},
		{"EXT-2", "Alan Turing", nil, 55, nil, 60},
	})

	workbook, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if workbook.NOSCount != 2 {
		t.Fatalf("nos count = %d, want 2", workbook.NOSCount)
	}
	if len(workbook.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(workbook.Rows))
	}
	if len(workbook.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", workbook.Warnings)
	}

	first := workbook.Rows[0]
	if first.ExternalID != "EXT-1" || first.Name != "Ada Lovelace" || first.RowNumber != 2 {
		t.Fatalf("first row = %+v", first)
	}

	// Groups come back sorted by identifier even when columns are shuffled.
	if len(first.Marks) != 2 || first.Marks[0].NOSIdentifier != "NOS1" || first.Marks[1].NOSIdentifier != "NOS2" {
		t.Fatalf("marks = %+v", first.Marks)
	}
	if first.Marks[0].TheoryMarks == nil || *first.Marks[0].TheoryMarks != 70 {
		t.Fatalf("NOS1 theory = %v", first.Marks[0].TheoryMarks)
	}
	if first.Marks[0].PracticalMarks == nil || *first.Marks[0].PracticalMarks != 72 {
		t.Fatalf("NOS1 practical = %v", first.Marks[0].PracticalMarks)
	}

	second := workbook.Rows[1]
	if second.Marks[0].PracticalMarks != nil {
		t.Fatalf("blank cell should parse to nil, got %v", *second.Marks[0].PracticalMarks)
	}
	if second.Marks[1].TheoryMarks == nil || *second.Marks[1].TheoryMarks != 60 {
		t.Fatalf("NOS2 theory = %v", second.Marks[1].TheoryMarks)
	}
}

func TestParseWarnsOnMissingCells(t *testing.T) {
	t.Parallel()

	data := sheetBytes(t, [][]any{
		{"Candidate_ID", "Candidate_Name", "NOS1_Theory"},
		{"", "No Identifier", 50},
		{"EXT-2", "", 60},
	})

	workbook, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(workbook.Warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", workbook.Warnings)
	}
}

func TestParseSkipsEmptyRows(t *testing.T) {
	t.Parallel()

	data := sheetBytes(t, [][]any{
		{"Candidate_ID", "Candidate_Name", "NOS1_Theory"},
		{"EXT-1", "Ada", 50},
		{"", "", ""},
		{"EXT-2", "Alan", 60},
	})

	workbook, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(workbook.Rows) != 2 {
		t.Fatalf("rows = %d, want empty row skipped", len(workbook.Rows))
	}
	if workbook.Rows[1].RowNumber != 4 {
		t.Fatalf("second row number = %d, want original sheet position 4", workbook.Rows[1].RowNumber)
	}
}

func TestParseRejectsBadInputs(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("not a workbook")); err == nil {
		t.Fatal("garbage bytes should fail")
	}

	headerOnly := sheetBytes(t, [][]any{{"Candidate_ID", "NOS1_Theory"}})
	if _, err := Parse(headerOnly); err == nil {
		t.Fatal("header-only sheet should fail")
	}

	noIDColumn := sheetBytes(t, [][]any{
		{"Name", "NOS1_Theory"},
		{"Ada", 50},
	})
	if _, err := Parse(noIDColumn); err == nil {
		t.Fatal("sheet without Candidate_ID should fail")
	}
}

func TestParseIgnoresNonMarkNOSColumns(t *testing.T) {
	t.Parallel()

	data := sheetBytes(t, [][]any{
		{"Candidate_ID", "NOS1_Theory", "NOS1_Comment", "Notes"},
		{"EXT-1", 50, "solid", "n/a"},
	})

	workbook, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if workbook.NOSCount != 1 {
		t.Fatalf("nos count = %d, want 1", workbook.NOSCount)
	}
	if len(workbook.Rows[0].Marks) != 1 {
		t.Fatalf("marks = %+v", workbook.Rows[0].Marks)
	}
}
