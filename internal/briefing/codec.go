package briefing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Shape selects how a document is serialized into the content column.
type Shape int

const (
	// ShapeObject stores the document as a JSON object.
	ShapeObject Shape = iota
	// ShapeString stores the document as a JSON string holding the object.
	ShapeString
)

// EncodeContent serializes doc for persistence in the requested shape.
func EncodeContent(doc Document, shape Shape) ([]byte, error) {
	doc = doc.Clone()
	doc.Normalize()

	obj, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal briefing document: %w", err)
	}
	if shape == ShapeString {
		return json.Marshal(string(obj))
	}
	return obj, nil
}

// DecodeContent parses a persisted or generated document. It accepts the
// English and the localized key sets, the {input_text, briefing_result} and
// {structured_briefing} envelopes, and any of them wrapped in a JSON string.
// A string that holds no decodable JSON object is kept as the objective.
func DecodeContent(raw []byte) (Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		doc := Document{}
		doc.Normalize()
		return doc, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Document{}, fmt.Errorf("failed to decode content string: %w", err)
		}
		if inner := ExtractJSONObject(s); inner != "" {
			if doc, err := DecodeContent([]byte(inner)); err == nil {
				return doc, nil
			}
		}
		doc := Document{Objective: strings.TrimSpace(s)}
		doc.Normalize()
		return doc, nil
	case '{':
	default:
		return Document{}, fmt.Errorf("unsupported content shape starting with %q", raw[0])
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Document{}, fmt.Errorf("failed to decode content object: %w", err)
	}
	for _, key := range []string{"structured_briefing", "briefing_result"} {
		if inner, ok := envelope[key]; ok {
			return DecodeContent(inner)
		}
	}

	var w wireDocument
	if err := json.Unmarshal(raw, &w); err != nil {
		return Document{}, fmt.Errorf("failed to decode briefing document: %w", err)
	}
	return w.document(), nil
}

// ExtractJSONObject returns the text between the first '{' and the last '}'
// of s, or "" when s holds no object. Model replies often wrap the JSON in prose.
func ExtractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}

// Row is a persisted briefing in either of the two row schemas seen in the
// wild: title/content (content a serialized string) or titulo/conteudo
// (conteudo a nested object).
type Row struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Title     string          `json:"title"`
	Titulo    string          `json:"titulo"`
	Content   json.RawMessage `json:"content"`
	Conteudo  json.RawMessage `json:"conteudo"`
}

// DecodeRow resolves a raw row of either schema into a Briefing.
func DecodeRow(raw []byte) (Briefing, error) {
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return Briefing{}, fmt.Errorf("failed to decode briefing row: %w", err)
	}
	return row.Briefing()
}

// Briefing converts the row, preferring the flat schema when both are present.
func (r Row) Briefing() (Briefing, error) {
	content := r.Content
	if len(bytes.TrimSpace(content)) == 0 {
		content = r.Conteudo
	}
	doc, err := DecodeContent(content)
	if err != nil {
		return Briefing{}, err
	}

	title := r.Title
	if title == "" {
		title = r.Titulo
	}
	return Briefing{
		ID:        r.ID,
		Title:     title,
		Document:  doc,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.CreatedAt,
	}, nil
}

type wireDocument struct {
	Objective      *flexString    `json:"objective"`
	Objetivo       *flexString    `json:"objetivo"`
	TargetAudience *flexString    `json:"target_audience"`
	PublicoAlvo    *flexString    `json:"publico_alvo"`
	References     stringList     `json:"references"`
	Referencias    stringList     `json:"referencias"`
	Deadlines      *wireDeadlines `json:"deadlines"`
	Prazos         *wireDeadlines `json:"prazos"`
	Budget         *wireBudget    `json:"budget"`
	Orcamento      *wireBudget    `json:"orcamento"`
	Notes          stringList     `json:"notes"`
	Observacoes    stringList     `json:"observacoes"`
}

type wireDeadlines struct {
	Start                *flexString `json:"start"`
	Inicio               *flexString `json:"inicio"`
	Delivery             *flexString `json:"delivery"`
	Entrega              *flexString `json:"entrega"`
	PrazoFinal           *flexString `json:"prazo_final"`
	IntermediateStages   *flexString `json:"intermediate_stages"`
	EtapasIntermediarias *flexString `json:"etapas_intermediarias"`
}

type wireBudget struct {
	Total      *flexFloat `json:"total"`
	ValorTotal *flexFloat `json:"valor_total"`
	PerStage   *flexFloat `json:"per_stage"`
	PorEtapa   *flexFloat `json:"por_etapa"`
}

func (w wireDocument) document() Document {
	doc := Document{
		Objective:      firstString(w.Objective, w.Objetivo),
		TargetAudience: firstString(w.TargetAudience, w.PublicoAlvo),
		References:     firstList(w.References, w.Referencias),
		Notes:          firstList(w.Notes, w.Observacoes),
	}

	deadlines := w.Deadlines
	if deadlines == nil {
		deadlines = w.Prazos
	}
	if deadlines != nil {
		doc.Deadlines = Deadlines{
			Start:              firstString(deadlines.Start, deadlines.Inicio),
			Delivery:           firstString(deadlines.Delivery, deadlines.Entrega, deadlines.PrazoFinal),
			IntermediateStages: firstString(deadlines.IntermediateStages, deadlines.EtapasIntermediarias),
		}
	}

	budget := w.Budget
	if budget == nil {
		budget = w.Orcamento
	}
	if budget != nil {
		doc.Budget = Budget{
			Total:    firstFloat(budget.Total, budget.ValorTotal),
			PerStage: firstFloat(budget.PerStage, budget.PorEtapa),
		}
	}

	doc.Normalize()
	return doc
}

// flexString accepts strings, numbers, booleans and lists (joined with "; ").
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case '[':
		var items stringList
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*f = flexString(strings.Join(items, "; "))
	case '{':
		// Objects have no sensible flat rendering; keep the raw JSON text.
		*f = flexString(b)
	default:
		*f = flexString(b)
	}
	return nil
}

// stringList accepts a list of scalars or a single string.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] != '[' {
		var s flexString
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*l = []string{}
			return nil
		}
		*l = []string{string(s)}
		return nil
	}

	var raw []flexString
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		out = append(out, string(item))
	}
	*l = out
	return nil
}

// flexFloat accepts numbers and numeric strings ("1500", "R$ 1500.50").
// Anything else decodes as zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "R$"), "$"))
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			*f = 0
			return nil
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

func firstString(values ...*flexString) string {
	for _, v := range values {
		if v != nil {
			return string(*v)
		}
	}
	return ""
}

func firstList(lists ...stringList) []string {
	for _, l := range lists {
		if l != nil {
			return []string(l)
		}
	}
	return []string{}
}

func firstFloat(values ...*flexFloat) float64 {
	for _, v := range values {
		if v != nil {
			return float64(*v)
		}
	}
	return 0
}
