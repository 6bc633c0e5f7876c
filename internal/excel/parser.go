package excel

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	candidateIDHeader   = "Candidate_ID"
	candidateNameHeader = "Candidate_Name"
	nosHeaderPrefix     = "NOS"
	theorySuffix        = "_Theory"
	practicalSuffix     = "_Practical"
)

// ParsedMark is one NOS score pair read from a row.
type ParsedMark struct {
	NOSIdentifier  string
	TheoryMarks    *int
	PracticalMarks *int
}

// Row is one candidate row from the workbook, in sheet order.
type Row struct {
	ExternalID string
	Name       string
	RowNumber  int
	Marks      []ParsedMark
}

// Workbook is the parsed upload spreadsheet: the header list, the candidate
// rows in sheet order, and per-row warnings for missing required cells.
type Workbook struct {
	Headers  []string
	Rows     []Row
	Warnings []string
	NOSCount int
}

type nosGroup struct {
	identifier   string
	theoryCol    int
	practicalCol int
}

// Parse reads the first worksheet of an xlsx upload. The sheet must carry
// Candidate_ID and Candidate_Name columns plus any number of NOS<n>_Theory /
// NOS<n>_Practical pairs.
func Parse(data []byte) (*Workbook, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("workbook needs a header row and at least one candidate row")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	idCol := indexOf(headers, candidateIDHeader)
	nameCol := indexOf(headers, candidateNameHeader)
	if idCol < 0 {
		return nil, fmt.Errorf("missing required column: %s", candidateIDHeader)
	}

	groups := parseNOSHeaders(headers)

	workbook := &Workbook{
		Headers:  headers,
		NOSCount: len(groups),
	}

	for i, row := range rows[1:] {
		rowNumber := i + 2
		if isEmptyRow(row) {
			continue
		}

		parsed := Row{
			ExternalID: cellValue(row, idCol),
			Name:       cellValue(row, nameCol),
			RowNumber:  rowNumber,
		}

		if parsed.ExternalID == "" {
			workbook.Warnings = append(workbook.Warnings,
				fmt.Sprintf("row %d: missing %s", rowNumber, candidateIDHeader))
		}
		if nameCol >= 0 && parsed.Name == "" {
			workbook.Warnings = append(workbook.Warnings,
				fmt.Sprintf("row %d: missing %s", rowNumber, candidateNameHeader))
		}

		for _, group := range groups {
			parsed.Marks = append(parsed.Marks, ParsedMark{
				NOSIdentifier:  group.identifier,
				TheoryMarks:    parseMark(cellValue(row, group.theoryCol)),
				PracticalMarks: parseMark(cellValue(row, group.practicalCol)),
			})
		}

		workbook.Rows = append(workbook.Rows, parsed)
	}

	if len(workbook.Rows) == 0 {
		return nil, fmt.Errorf("workbook has no candidate rows")
	}

	return workbook, nil
}

// parseNOSHeaders groups NOS<n>_Theory / NOS<n>_Practical columns by NOS
// identifier, preserving identifier order.
func parseNOSHeaders(headers []string) []nosGroup {
	byIdentifier := make(map[string]*nosGroup)

	for col, header := range headers {
		if !strings.HasPrefix(header, nosHeaderPrefix) {
			continue
		}

		var identifier string
		var isTheory bool
		switch {
		case strings.HasSuffix(header, theorySuffix):
			identifier = strings.TrimSuffix(header, theorySuffix)
			isTheory = true
		case strings.HasSuffix(header, practicalSuffix):
			identifier = strings.TrimSuffix(header, practicalSuffix)
		default:
			continue
		}

		group, ok := byIdentifier[identifier]
		if !ok {
			group = &nosGroup{identifier: identifier, theoryCol: -1, practicalCol: -1}
			byIdentifier[identifier] = group
		}
		if isTheory {
			group.theoryCol = col
		} else {
			group.practicalCol = col
		}
	}

	groups := make([]nosGroup, 0, len(byIdentifier))
	for _, group := range byIdentifier {
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].identifier < groups[j].identifier
	})

	return groups
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}

func cellValue(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func parseMark(value string) *int {
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &parsed
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
