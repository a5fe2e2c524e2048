package report

import (
	"fmt"
	"io"
	"strings"

	gofpdf "github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/probe"
)

// outcome colours (RGB)
var pdfOutcomeColors = map[probe.Outcome][3]int{
	probe.OutcomePass:  {22, 163, 74},
	probe.OutcomeFail:  {220, 38, 38},
	probe.OutcomeError: {217, 119, 6},
}

// PDFExporter renders an A4 report: cover block, executive summary and one
// section per result, with "Page i of n" footers.
type PDFExporter struct {
	opts       Options
	noCompress bool
}

func (e *PDFExporter) Extension() string { return "pdf" }

func (e *PDFExporter) Export(w io.Writer, run *finding.Run) error {
	if run == nil {
		return ErrNoRun
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(!e.noCompress)
	pdf.SetTitle(e.opts.Title, true)
	pdf.SetAuthor(e.opts.Author, true)
	pdf.SetCreator(e.opts.Author, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("{nb}")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	e.addCover(pdf, tr, run)
	e.addSummary(pdf, run.Summary)
	e.addResults(pdf, tr, run.Results)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func (e *PDFExporter) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	y := pdf.GetY()
	pdf.SetDrawColor(203, 213, 225)
	pdf.Line(left, y, pageW-right, y)
	pdf.Ln(4)
}

func (e *PDFExporter) addCover(pdf *gofpdf.Fpdf, tr func(string) string, run *finding.Run) {
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(30, 41, 59)
	pdf.MultiCell(0, 10, tr(e.opts.Title), "", "L", false)
	pdf.Ln(2)

	rows := [][2]string{
		{"Target", run.Target},
		{"Generated", e.opts.Now().UTC().Format("2006-01-02 15:04:05 MST")},
		{"Started", run.StartedAt.UTC().Format("2006-01-02 15:04:05 MST")},
		{"Duration", formatDuration(run.Duration())},
		{"Author", e.opts.Author},
	}
	if e.opts.RunID != "" {
		rows = append(rows, [2]string{"Run", e.opts.RunID})
	}
	for _, r := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(80, 80, 80)
		pdf.CellFormat(30, 6, r[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(30, 30, 30)
		pdf.CellFormat(0, 6, tr(r[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (e *PDFExporter) addSummary(pdf *gofpdf.Fpdf, s finding.Summary) {
	e.addSectionHeader(pdf, "Executive Summary")

	cells := []struct {
		label string
		value string
		color [3]int
	}{
		{"Total", fmt.Sprintf("%d", s.Total), [3]int{30, 41, 59}},
		{"Passed", fmt.Sprintf("%d", s.Passed), pdfOutcomeColors[probe.OutcomePass]},
		{"Failed", fmt.Sprintf("%d", s.Failed), pdfOutcomeColors[probe.OutcomeFail]},
		{"Errored", fmt.Sprintf("%d", s.Errored), pdfOutcomeColors[probe.OutcomeError]},
		{"Pass rate", fmt.Sprintf("%.1f%%", s.PassRatePercent), [3]int{30, 41, 59}},
	}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	cellW := (pageW - left - right) / float64(len(cells))

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(241, 245, 249)
	pdf.SetTextColor(80, 80, 80)
	for _, c := range cells {
		pdf.CellFormat(cellW, 7, c.label, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "B", 14)
	for _, c := range cells {
		pdf.SetTextColor(c.color[0], c.color[1], c.color[2])
		pdf.CellFormat(cellW, 12, c.value, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, postureSummary(s), "", "L", false)
	pdf.Ln(4)
}

func (e *PDFExporter) addResults(pdf *gofpdf.Fpdf, tr func(string) string, results []probe.Result) {
	if len(results) == 0 {
		return
	}
	e.addSectionHeader(pdf, "Results")
	titleCase := cases.Title(language.English)
	_, pageH := pdf.GetPageSize()

	for _, r := range results {
		// keep a result header with at least its first lines
		if pdf.GetY()+25 > pageH-20 {
			pdf.AddPage()
		}
		color := pdfOutcomeColors[r.Outcome]
		if _, ok := pdfOutcomeColors[r.Outcome]; !ok {
			color = pdfOutcomeColors[probe.OutcomeError]
		}

		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(color[0], color[1], color[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(18, 7, outcomeLabel(r.Outcome), "", 0, "C", true, 0, "")
		pdf.CellFormat(2, 7, "", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(30, 41, 59)
		name := r.DisplayName
		if name == "" {
			name = titleCase.String(strings.ReplaceAll(r.ProbeID, "-", " "))
		}
		pdf.CellFormat(0, 7, tr(name), "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(50, 50, 50)
		pdf.MultiCell(0, 5, tr(r.Summary), "", "L", false)
		if r.Detail != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.SetTextColor(90, 90, 90)
			for _, line := range strings.Split(r.Detail, "\n") {
				pdf.MultiCell(0, 4.5, tr(line), "", "L", false)
			}
		}
		pdf.Ln(4)
	}
}

func postureSummary(s finding.Summary) string {
	switch {
	case s.Total == 0:
		return "No probes were run."
	case s.Failed == 0 && s.Errored == 0:
		return "Every probe passed. No issues were identified."
	case s.Failed == 0:
		return fmt.Sprintf("No issues were identified, but %d of %d probes could not complete; their areas remain unassessed.", s.Errored, s.Total)
	default:
		return fmt.Sprintf("%d of %d probes identified issues that need attention. Details and recommendations follow.", s.Failed, s.Total)
	}
}
