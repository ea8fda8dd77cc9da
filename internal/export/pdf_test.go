package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"

	"github.com/jimdaga/briefdesk/internal/briefing"
	"github.com/jimdaga/briefdesk/internal/labels"
)

func fullDocument() briefing.Document {
	return briefing.Document{
		Objective:      "Redesign the coffee shop logo",
		TargetAudience: "Young professionals",
		References:     []string{"Blue Bottle", "Stumptown"},
		Deadlines: briefing.Deadlines{
			Start:              "2025-02-01",
			Delivery:           "2025-03-15",
			IntermediateStages: "Sketch review",
		},
		Budget: briefing.Budget{Total: 1200, PerStage: 400.5},
		Notes:  []string{"Deliver SVG", "Keep the brown palette"},
	}
}

func render(t *testing.T, title string, doc briefing.Document, set *labels.LabelSet) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Render(&buf, title, doc, set); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.Bytes()
}

func extract(t *testing.T, data []byte) (string, int) {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open pdf: %v", err)
	}
	text, err := r.GetPlainText()
	if err != nil {
		t.Fatalf("extract text: %v", err)
	}
	out, err := io.ReadAll(text)
	if err != nil {
		t.Fatalf("read text: %v", err)
	}
	return string(out), r.NumPage()
}

func TestRenderContainsEveryField(t *testing.T) {
	doc := fullDocument()
	text, _ := extract(t, render(t, "Logo", doc, nil))

	want := []string{
		"Logo",
		doc.Objective,
		doc.TargetAudience,
		"Blue Bottle",
		"Stumptown",
		"2025-02-01",
		"2025-03-15",
		"Sketch review",
		"1200.00",
		"400.50",
		"Deliver SVG",
		"Keep the brown palette",
	}
	for _, w := range want {
		if !strings.Contains(text, w) {
			t.Errorf("extracted text missing %q", w)
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	a := render(t, "Logo", fullDocument(), nil)
	b := render(t, "Logo", fullDocument(), nil)
	if !bytes.Equal(a, b) {
		t.Error("identical documents produced different bytes")
	}
}

func TestRenderBreaksPages(t *testing.T) {
	doc := fullDocument()
	doc.Notes = nil
	for i := 0; i < 60; i++ {
		doc.Notes = append(doc.Notes, fmt.Sprintf("note number %d", i))
	}

	text, pages := extract(t, render(t, "Long", doc, nil))
	if pages < 2 {
		t.Fatalf("expected more than one page, got %d", pages)
	}
	if !strings.Contains(text, "note number 59") {
		t.Error("last note lost past the first page")
	}
}

func TestRenderLocalizedHeadings(t *testing.T) {
	set := labels.MustLookup("pt-BR")
	text, _ := extract(t, render(t, "Logo", fullDocument(), set))
	if !strings.Contains(text, "Prazos") || !strings.Contains(text, "Total") {
		t.Errorf("expected Portuguese headings in %q", text)
	}
}

func TestRenderEmptyDocument(t *testing.T) {
	data := render(t, "", briefing.Document{}, nil)
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("expected a PDF header")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{0: "0.00", 1200: "1200.00", 99.999: "100.00", 0.5: "0.50"}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestWrapBreaksOverlongWords(t *testing.T) {
	f := fpdf.New("P", "mm", "A4", "")
	f.AddPage()
	f.SetFont(fontName, "", bodySize)
	r := &renderer{pdf: f, tr: f.UnicodeTranslatorFromDescriptor("")}

	url := "https://example.com/" + strings.Repeat("moodboard-", 40)
	const width = 60.0
	lines := r.wrap("see "+url+" today", width)
	if len(lines) < 3 {
		t.Fatalf("expected the URL to span several lines, got %q", lines)
	}
	for _, l := range lines {
		if w := r.width(l); w > width {
			t.Errorf("line %q is %.1fmm wide, limit %.1fmm", l, w, width)
		}
	}
	if got := strings.ReplaceAll(strings.Join(lines, ""), " ", ""); got != "see"+url+"today" {
		t.Errorf("wrapped text lost characters: %q", got)
	}
	if lines[0] != "see" {
		t.Errorf("first line = %q, want the word before the URL", lines[0])
	}
}

func TestRenderLongReference(t *testing.T) {
	doc := fullDocument()
	doc.References = []string{"https://example.com/" + strings.Repeat("x", 300)}

	text, _ := extract(t, render(t, "Logo", doc, nil))
	if !strings.Contains(text, "https://example.com/") {
		t.Error("long reference missing from the PDF")
	}
}
