package service

import (
	"bytes"
	"context"
	"testing"

	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"

	"github.com/xuri/excelize/v2"
)

func exportFixture() (*ExportService, *mockScoreStore, *mockResultStore) {
	ledger, scores, dir, _ := scoreFixture()
	results := newMockResultStore()
	svc := NewExportService(results, scores, dir, ledger)
	return svc, scores, results
}

func TestBroadsheetLayout(t *testing.T) {
	svc, scores, results := exportFixture()
	scores.add(model.Score{StudentID: 1, SubjectID: 1, ClassID: 1, Term: testTerm, Session: testSession, Total: 92, Grade: "A", Status: model.ScoreSubmitted})
	results.Save(&model.TermResult{StudentID: 1, ClassID: 1, Term: testTerm, Session: testSession, TotalScore: 92, Average: 92, Position: 1, Status: model.ResultApproved})

	buf, filename, err := svc.Broadsheet(context.Background(), 1, testTerm, testSession)
	if err != nil {
		t.Fatalf("Broadsheet: %v", err)
	}
	if filename == "" {
		t.Error("empty filename")
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Broadsheet")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// Header plus one row per student in the class.
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	header := rows[0]
	if header[0] != "S/N" || header[1] != "Reg No" || header[2] != "Student Name" {
		t.Errorf("unexpected header: %v", header)
	}
	// Two assigned subjects, a Total/Grade pair each, then the aggregates.
	if header[3] != "MTH" || header[5] != "ENG" {
		t.Errorf("subject columns wrong: %v", header)
	}

	if rows[1][1] != "REG-001" {
		t.Errorf("first student row = %v", rows[1])
	}
	if rows[1][3] != "92" || rows[1][4] != "A" {
		t.Errorf("maths cells = %q %q", rows[1][3], rows[1][4])
	}
}

func TestImportSheetRoundTrip(t *testing.T) {
	svc, scores, _ := exportFixture()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"Reg No", "Student Name", "Subject", "CA1 (20)", "CA2 (20)", "Exam (60)"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, col+"1", h)
	}
	fill := func(row int, regNo string, ca1, ca2, exam interface{}) {
		cells := []interface{}{regNo, "", "Mathematics", ca1, ca2, exam}
		for i, v := range cells {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}
	fill(2, "REG-001", 18, 16, 58)
	fill(3, "REG-002", 15, 15, 55)
	fill(4, "REG-001", "abc", 1, 1) // non-numeric cell

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	result, err := svc.ImportSheet(context.Background(), bytes.NewReader(buf.Bytes()), testTerm, testSession, Actor{ID: 20, Role: model.RoleClassTeacher})
	if err != nil {
		t.Fatalf("ImportSheet: %v", err)
	}
	if result.Saved != 2 {
		t.Errorf("saved = %d, want 2", result.Saved)
	}
	if len(result.Failed) != 1 {
		t.Errorf("failed = %d, want 1: %+v", len(result.Failed), result.Failed)
	}

	s, err := scores.FindByIdentity(1, 1, testTerm, testSession)
	if err != nil {
		t.Fatalf("imported score missing: %v", err)
	}
	if s.Total != 92 || s.Grade != "A" {
		t.Errorf("imported score = total %v grade %q", s.Total, s.Grade)
	}
}

func TestImportSheetFailureIndicesMatchSheetRows(t *testing.T) {
	svc, _, _ := exportFixture()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"Reg No", "Student Name", "Subject", "CA1 (20)", "CA2 (20)", "Exam (60)"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, col+"1", h)
	}
	fill := func(row int, regNo string, ca1, ca2, exam interface{}) {
		cells := []interface{}{regNo, "", "Mathematics", ca1, ca2, exam}
		for i, v := range cells {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}
	fill(2, "REG-001", 18, 16, 58)
	fill(3, "REG-002", "abc", 1, 1) // parse failure, data row 1
	fill(4, "NO-SUCH", 10, 10, 40)  // resolution failure, data row 2

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	result, err := svc.ImportSheet(context.Background(), bytes.NewReader(buf.Bytes()), testTerm, testSession, Actor{ID: 20, Role: model.RoleClassTeacher})
	if err != nil {
		t.Fatalf("ImportSheet: %v", err)
	}
	if result.Saved != 1 {
		t.Errorf("saved = %d, want 1", result.Saved)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("failed = %d, want 2: %+v", len(result.Failed), result.Failed)
	}

	// Every failure index is a data-row position in the uploaded sheet, no
	// matter which stage rejected the row.
	byIndex := make(map[int]string, len(result.Failed))
	for _, fail := range result.Failed {
		byIndex[fail.Index] = fail.Kind
	}
	if byIndex[1] != util.KindValidation {
		t.Errorf("row 3 failure = %q at %v, want validation at index 1", byIndex[1], byIndex)
	}
	if byIndex[2] != util.KindNotFound {
		t.Errorf("row 4 failure = %q at %v, want not-found at index 2", byIndex[2], byIndex)
	}
}

func TestImportSheetRejectsGarbage(t *testing.T) {
	svc, _, _ := exportFixture()

	_, err := svc.ImportSheet(context.Background(), bytes.NewReader([]byte("not a spreadsheet")), testTerm, testSession, Actor{ID: 20, Role: model.RoleClassTeacher})
	if err == nil {
		t.Fatal("expected error for non-xlsx input")
	}
}
