// Package export renders a briefing document as a PDF.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/jimdaga/briefdesk/internal/briefing"
	"github.com/jimdaga/briefdesk/internal/labels"
	"github.com/jimdaga/briefdesk/internal/metrics"
)

// Filename is the name offered for download.
const Filename = "briefing.pdf"

// Layout, in millimetres on an A4 portrait page.
const (
	marginTop    = 20.0
	marginBottom = 20.0
	marginLeft   = 20.0
	bulletIndent = 25.0
	contentWidth = 170.0
	lineHeight   = 7.0
	// paragraphs advance by lineHeight * (lines + paragraphPadding): one line
	// for the label and one blank line after the body.
	paragraphPadding = 2

	titleSize = 16.0
	labelSize = 12.0
	bodySize  = 11.0
	fontName  = "Helvetica"
)

// epoch is stamped as creation and modification date so identical documents
// produce identical bytes.
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Render writes doc as a PDF to w. title heads the first page; set provides
// section headings and the currency label.
func Render(w io.Writer, title string, doc briefing.Document, set *labels.LabelSet) error {
	if set == nil {
		set = labels.MustLookup(labels.DefaultLocale)
	}
	if strings.TrimSpace(title) == "" {
		title = "Briefing"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(epoch)
	pdf.SetModificationDate(epoch)
	pdf.SetCatalogSort(true)
	pdf.SetAutoPageBreak(false, marginBottom)
	pdf.SetMargins(marginLeft, marginTop, marginLeft)
	pdf.AddPage()

	pw, ph := pdf.GetPageSize()
	r := &renderer{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		y:     marginTop,
		pageW: pw,
		maxY:  ph - marginBottom,
	}

	r.title(title)
	r.paragraph(set.Sections.Objective, doc.Objective)
	r.paragraph(set.Sections.TargetAudience, doc.TargetAudience)
	r.list(set.Sections.References, doc.References)
	r.paragraphs(set.Sections.Deadlines, []string{
		fmt.Sprintf("%s: %s", set.Sections.Start, doc.Deadlines.Start),
		fmt.Sprintf("%s: %s", set.Sections.Delivery, doc.Deadlines.Delivery),
		fmt.Sprintf("%s: %s", set.Sections.IntermediateStages, doc.Deadlines.IntermediateStages),
	})
	r.paragraphs(set.Sections.Budget, []string{
		fmt.Sprintf("%s: %s %s", set.Sections.Total, set.Currency, FormatAmount(doc.Budget.Total)),
		fmt.Sprintf("%s: %s %s", set.Sections.PerStage, set.Currency, FormatAmount(doc.Budget.PerStage)),
	})
	r.list(set.Sections.Notes, doc.Notes)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	metrics.PDFExports.Inc()
	return nil
}

// FormatAmount formats a budget value with two decimals.
func FormatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

type renderer struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	y     float64
	pageW float64
	maxY  float64
}

// ensure starts a new page when a line at the cursor would cross the bottom
// margin.
func (r *renderer) ensure() {
	if r.y > r.maxY {
		r.pdf.AddPage()
		r.y = marginTop
	}
}

func (r *renderer) line(x float64, text string) {
	r.ensure()
	r.pdf.Text(x, r.y, r.tr(text))
	r.y += lineHeight
}

func (r *renderer) title(text string) {
	r.pdf.SetFont(fontName, "B", titleSize)
	for _, l := range r.wrap(text, contentWidth) {
		x := (r.pageW - r.width(l)) / 2
		r.line(x, l)
	}
	r.y += lineHeight
}

func (r *renderer) label(text string) {
	r.pdf.SetFont(fontName, "B", labelSize)
	r.line(marginLeft, text)
	r.pdf.SetFont(fontName, "", bodySize)
}

// paragraph draws a bold label and wrapped body text. The cursor ends
// lineHeight * (lines + paragraphPadding) below where it started.
func (r *renderer) paragraph(label, body string) {
	r.paragraphs(label, []string{body})
}

func (r *renderer) paragraphs(label string, bodies []string) {
	r.label(label)
	for _, body := range bodies {
		for _, l := range r.wrap(body, contentWidth) {
			r.line(marginLeft, l)
		}
	}
	r.y += lineHeight * (paragraphPadding - 1)
}

// list draws one bulleted line per item. Items wrap inside the indented
// column, after the bullet.
func (r *renderer) list(label string, items []string) {
	r.label(label)
	const bullet, hang = "• ", "  "
	width := contentWidth - (bulletIndent - marginLeft) - r.width(bullet)
	for _, item := range items {
		for i, l := range r.wrap(item, width) {
			if i == 0 {
				l = bullet + l
			} else {
				l = hang + l
			}
			r.line(bulletIndent, l)
		}
	}
	r.y += lineHeight
}

func (r *renderer) width(s string) float64 {
	return r.pdf.GetStringWidth(r.tr(s))
}

// wrap splits text into lines no wider than width at the current font,
// breaking on spaces and keeping explicit newlines. A word wider than a
// whole line is broken between runes.
func (r *renderer) wrap(text string, width float64) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		cur := ""
		for _, w := range strings.Fields(para) {
			for r.width(w) > width {
				if cur != "" {
					out = append(out, cur)
					cur = ""
				}
				head, rest := r.breakWord(w, width)
				out = append(out, head)
				w = rest
			}
			switch {
			case w == "":
			case cur == "":
				cur = w
			case r.width(cur+" "+w) > width:
				out = append(out, cur)
				cur = w
			default:
				cur += " " + w
			}
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	return out
}

// breakWord returns the longest prefix of word that fits width, never less
// than one rune, and the remainder.
func (r *renderer) breakWord(word string, width float64) (string, string) {
	runes := []rune(word)
	n := 1
	for n < len(runes) && r.width(string(runes[:n+1])) <= width {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}
