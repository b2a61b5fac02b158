package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/worksheetlab/server/internal/domain"
)

// PDFRenderer renders worksheets as A4 PDFs: a header band, the
// passage when present, numbered questions per section, and an answer
// key on its own page at the end.
type PDFRenderer struct {
	pageWidth    float64
	pageHeight   float64
	margin       float64
	contentWidth float64
}

// NewPDFRenderer creates a PDF renderer with default page settings.
func NewPDFRenderer() *PDFRenderer {
	margin := 15.0
	pageWidth := 210.0
	return &PDFRenderer{
		pageWidth:    pageWidth,
		pageHeight:   297.0,
		margin:       margin,
		contentWidth: pageWidth - (2 * margin),
	}
}

// Render writes the worksheet PDF to w.
func (r *PDFRenderer) Render(ctx context.Context, ws *domain.Worksheet, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(ws.Content.Title, true)
	pdf.SetCreator("WorksheetLab", true)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		r.addFooter(pdf)
	})

	r.addHeader(pdf, ws)
	if ws.Content.Passage != "" {
		r.addPassage(pdf, ws.Content.Passage)
	}

	num := 1
	for _, section := range ws.Content.Sections {
		num = r.addSection(pdf, section, num)
	}

	r.addAnswerKey(pdf, &ws.Content)

	if err := pdf.Error(); err != nil {
		return 0, domain.RenderFailed(err, "render.pdf")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return 0, domain.RenderFailed(err, "render.pdf")
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func (r *PDFRenderer) addHeader(pdf *fpdf.Fpdf, ws *domain.Worksheet) {
	pdf.AddPage()

	cr, cg, cb := HexToRGB(Palette.Header)
	pdf.SetFillColor(cr, cg, cb)
	pdf.Rect(0, 0, r.pageWidth, 34, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(r.margin, 8)
	pdf.Cell(0, 10, ws.Content.Title)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(r.margin, 20)
	pdf.Cell(0, 6, "Grade "+ws.GradeLevel)

	cr, cg, cb = HexToRGB(Palette.TextDark)
	pdf.SetTextColor(cr, cg, cb)

	// Name / date line for the student
	pdf.SetXY(r.margin, 42)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(r.contentWidth*0.6, 7, "Name: "+strings.Repeat("_", 40))
	pdf.Cell(0, 7, "Date: "+strings.Repeat("_", 16))
	pdf.Ln(14)
}

func (r *PDFRenderer) addPassage(pdf *fpdf.Fpdf, passage string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Reading Passage")
	pdf.Ln(9)

	// Numbered lines so line-reference questions have an anchor.
	pdf.SetFont("Helvetica", "", 11)
	cr, cg, cb := HexToRGB(Palette.TextMuted)
	for i, line := range strings.Split(passage, "\n") {
		pdf.SetTextColor(cr, cg, cb)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(8, 6, fmt.Sprintf("%d", i+1), "", 0, "R", false, 0, "")
		dr, dg, db := HexToRGB(Palette.TextDark)
		pdf.SetTextColor(dr, dg, db)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(r.contentWidth-10, 6, " "+line, "", "L", false)
	}
	pdf.Ln(6)
}

func (r *PDFRenderer) addSection(pdf *fpdf.Fpdf, section domain.Section, num int) int {
	r.addSectionHeader(pdf, section)

	if section.Timeline != nil {
		r.addTimeline(pdf, section.Timeline)
	}

	for _, q := range section.Questions {
		r.addQuestion(pdf, q, num)
		num++
	}
	return num
}

func (r *PDFRenderer) addSectionHeader(pdf *fpdf.Fpdf, section domain.Section) {
	title := section.Title
	if title == "" {
		switch section.Kind {
		case domain.SectionGuided:
			title = "Guided Practice"
		case domain.SectionIndependent:
			title = "Independent Practice"
		}
	}

	pdf.Ln(4)
	cr, cg, cb := HexToRGB(Palette.Header)
	pdf.SetTextColor(cr, cg, cb)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 9, title)
	pdf.Ln(10)

	cr, cg, cb = HexToRGB(Palette.Rule)
	pdf.SetDrawColor(cr, cg, cb)
	pdf.Line(r.margin, pdf.GetY(), r.pageWidth-r.margin, pdf.GetY())
	pdf.Ln(4)

	cr, cg, cb = HexToRGB(Palette.TextDark)
	pdf.SetTextColor(cr, cg, cb)
}

func (r *PDFRenderer) addTimeline(pdf *fpdf.Fpdf, tl *domain.TimelineItem) {
	if tl.Instructions != "" {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(r.contentWidth, 6, tl.Instructions, "", "L", false)
		pdf.Ln(2)
	}
	pdf.SetFont("Helvetica", "", 11)
	for _, entry := range tl.Entries {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(32, 7, entry.Date)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(r.contentWidth-32, 7, entry.Event, "", "L", false)
	}
	pdf.Ln(4)
}

func (r *PDFRenderer) addQuestion(pdf *fpdf.Fpdf, q domain.Question, num int) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(10, 7, fmt.Sprintf("%d.", num))
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(r.contentWidth-10, 7, q.Prompt, "", "L", false)

	switch q.Type {
	case domain.QuestionMultipleChoice, domain.QuestionMultiSelect, domain.QuestionChooseLine:
		for _, choice := range q.Choices {
			pdf.SetX(r.margin + 12)
			pdf.Cell(10, 6, strings.ToUpper(choice.ID)+")")
			pdf.MultiCell(r.contentWidth-24, 6, choice.Text, "", "L", false)
		}
		if q.Type == domain.QuestionMultiSelect {
			pdf.SetX(r.margin + 12)
			pdf.SetFont("Helvetica", "I", 9)
			pdf.Cell(0, 5, "Choose all answers that apply.")
			pdf.Ln(6)
		}
	case domain.QuestionOpenEnded, domain.QuestionShortResponse:
		lines := 3
		if q.Type == domain.QuestionShortResponse {
			lines = 6
		}
		pdf.SetFont("Helvetica", "", 11)
		for i := 0; i < lines; i++ {
			pdf.SetX(r.margin + 12)
			pdf.Cell(0, 8, strings.Repeat("_", 72))
			pdf.Ln(8)
		}
	}
	pdf.Ln(3)
}

func (r *PDFRenderer) addAnswerKey(pdf *fpdf.Fpdf, content *domain.WorksheetContent) {
	pdf.AddPage()

	cr, cg, cb := HexToRGB(Palette.Header)
	pdf.SetTextColor(cr, cg, cb)
	pdf.SetFont("Helvetica", "B", 15)
	pdf.Cell(0, 10, "Answer Key")
	pdf.Ln(12)

	cr, cg, cb = HexToRGB(Palette.TextDark)
	pdf.SetTextColor(cr, cg, cb)
	pdf.SetFont("Helvetica", "", 11)

	num := 1
	for _, section := range content.Sections {
		for _, q := range section.Questions {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.Cell(10, 7, fmt.Sprintf("%d.", num))
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(r.contentWidth-10, 7, answerText(q), "", "L", false)
			num++
		}
	}
}

// answerText formats a question's expected answer for the key page.
func answerText(q domain.Question) string {
	switch q.Type {
	case domain.QuestionMultipleChoice:
		return strings.ToUpper(q.Answer)
	case domain.QuestionMultiSelect:
		upper := make([]string, len(q.AnswerIDs))
		for i, id := range q.AnswerIDs {
			upper[i] = strings.ToUpper(id)
		}
		return strings.Join(upper, ", ")
	case domain.QuestionChooseLine:
		if q.Line == nil {
			return ""
		}
		if q.Line.LineText != "" {
			return q.Line.LineText
		}
		if q.Line.LineIndex != nil {
			return fmt.Sprintf("Line %d", *q.Line.LineIndex+1)
		}
		return ""
	case domain.QuestionShortResponse:
		if q.Rubric != nil && len(q.Rubric.PointAnchors) > 0 {
			return fmt.Sprintf("Scored out of %d points. %s", q.Rubric.MaxPoints, strings.Join(q.Rubric.PointAnchors, " "))
		}
		return "See rubric."
	default:
		return "Answers will vary."
	}
}

func (r *PDFRenderer) addFooter(pdf *fpdf.Fpdf) {
	pdf.SetY(-15)
	cr, cg, cb := HexToRGB(Palette.TextMuted)
	pdf.SetTextColor(cr, cg, cb)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
}
