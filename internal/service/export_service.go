package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ExportService renders the class broadsheet as a spreadsheet and ingests
// score sheets back into the ledger.
type ExportService struct {
	Results   ResultStore
	Scores    ScoreStore
	Directory DirectoryStore
	Ledger    *ScoreService
}

func NewExportService(results ResultStore, scores ScoreStore, directory DirectoryStore, ledger *ScoreService) *ExportService {
	return &ExportService{
		Results:   results,
		Scores:    scores,
		Directory: directory,
		Ledger:    ledger,
	}
}

// Broadsheet writes one row per student with a Total/Grade column pair per
// subject, followed by the compiled aggregate columns. Students without a
// compiled result still appear with their raw scores.
func (s *ExportService) Broadsheet(ctx context.Context, classID uint, term, session string) (*bytes.Buffer, string, error) {
	class, err := s.Directory.FindClass(classID)
	if err != nil {
		return nil, "", err
	}
	students, err := s.Directory.ListStudentsByClass(classID)
	if err != nil {
		return nil, "", err
	}
	subjects, err := s.Directory.ListSubjectsByClass(classID, session)
	if err != nil {
		return nil, "", err
	}
	scores, err := s.Scores.ListByClass(classID, term, session)
	if err != nil {
		return nil, "", err
	}
	results, err := s.Results.ListByClass(classID, term, session)
	if err != nil {
		return nil, "", err
	}

	scoreByKey := make(map[string]model.Score, len(scores))
	for _, sc := range scores {
		scoreByKey[fmt.Sprintf("%d:%d", sc.StudentID, sc.SubjectID)] = sc
	}
	resultByStudent := make(map[uint]model.TermResult, len(results))
	for _, r := range results {
		resultByStudent[r.StudentID] = r
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Broadsheet"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, "", err
	}

	headers := []string{"S/N", "Reg No", "Student Name"}
	for _, sub := range subjects {
		headers = append(headers, sub.Code, sub.Code+" Grd")
	}
	headers = append(headers, "Total", "Average", "Position", "Status")

	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, "", err
		}
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for rowIdx, student := range students {
		row := rowIdx + 2
		values := []interface{}{rowIdx + 1, student.RegNo, student.FullName()}
		for _, sub := range subjects {
			if sc, ok := scoreByKey[fmt.Sprintf("%d:%d", student.ID, sub.ID)]; ok {
				values = append(values, sc.Total, sc.Grade)
			} else {
				values = append(values, "", "")
			}
		}
		if res, ok := resultByStudent[student.ID]; ok {
			values = append(values, res.TotalScore, res.Average, res.Position, string(res.Status))
		} else {
			values = append(values, "", "", "", "not compiled")
		}

		for i, v := range values {
			col, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return nil, "", err
			}
			f.SetCellValue(sheet, col+strconv.Itoa(row), v)
		}
	}

	f.SetColWidth(sheet, "B", "C", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("broadsheet_%s_%s_%s.xlsx", class.Name, term, session)
	return buf, filename, nil
}

// BlankSheet produces the template subject teachers fill in and re-upload:
// one pre-filled row per student for a single subject.
func (s *ExportService) BlankSheet(ctx context.Context, classID, subjectID uint, term, session string) (*bytes.Buffer, string, error) {
	subject, err := s.Directory.FindSubject(subjectID)
	if err != nil {
		return nil, "", err
	}
	students, err := s.Directory.ListStudentsByClass(classID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Scores"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Reg No", "Student Name", "Subject", "CA1 (20)", "CA2 (20)", "Exam (60)"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, col+"1", h)
	}
	for i, student := range students {
		row := strconv.Itoa(i + 2)
		f.SetCellValue(sheet, "A"+row, student.RegNo)
		f.SetCellValue(sheet, "B"+row, student.FullName())
		f.SetCellValue(sheet, "C"+row, subject.Name)
	}
	f.SetColWidth(sheet, "A", "C", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("scoresheet_%s_%s_%s.xlsx", subject.Code, term, session)
	return buf, filename, nil
}

// ImportSheet parses an uploaded score sheet and feeds it through the ledger's
// batch write. Layout matches BlankSheet: RegNo, Name, Subject, CA1, CA2, Exam
// with one header row.
func (s *ExportService) ImportSheet(ctx context.Context, r io.Reader, term, session string, actor Actor) (*BatchResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable spreadsheet: %v", util.ErrValidation, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrValidation, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: sheet has no data rows", util.ErrValidation)
	}

	var entries []SheetEntry
	var failures []EntryFailure
	rowOf := make(map[int]int) // entries position -> data-row index in the sheet
	for i, row := range rows[1:] {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		if len(row) < 6 {
			failures = append(failures, EntryFailure{
				Index:   i,
				Kind:    util.KindValidation,
				Message: fmt.Sprintf("row %d has %d columns, expected 6", i+2, len(row)),
			})
			continue
		}
		ca1, err1 := parseCell(row[3])
		ca2, err2 := parseCell(row[4])
		exam, err3 := parseCell(row[5])
		if err1 != nil || err2 != nil || err3 != nil {
			failures = append(failures, EntryFailure{
				Index:   i,
				Kind:    util.KindValidation,
				Message: fmt.Sprintf("row %d has non-numeric score cells", i+2),
			})
			continue
		}
		rowOf[len(entries)] = i
		entries = append(entries, SheetEntry{
			RegNo:       row[0],
			SubjectName: row[2],
			CA1:         ca1,
			CA2:         ca2,
			Exam:        exam,
		})
	}

	result, err := s.Ledger.RecordSheet(ctx, entries, term, session, actor)
	if err != nil {
		return nil, err
	}
	// RecordSheet reports indices into the entries slice; translate them back
	// to sheet rows so they line up with the parse failures above.
	for j := range result.Failed {
		result.Failed[j].Index = rowOf[result.Failed[j].Index]
	}
	result.Failed = append(result.Failed, failures...)
	return result, nil
}

func parseCell(cell string) (float64, error) {
	if cell == "" {
		return 0, nil
	}
	return strconv.ParseFloat(cell, 64)
}
