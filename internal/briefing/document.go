// Package briefing holds the briefing data model shared by the generator,
// the store, the state provider and the editor.
package briefing

import "time"

// Document is the structured briefing produced by the generation endpoint
// and edited before save.
type Document struct {
	Objective      string    `json:"objective"`
	TargetAudience string    `json:"target_audience"`
	References     []string  `json:"references"`
	Deadlines      Deadlines `json:"deadlines"`
	Budget         Budget    `json:"budget"`
	Notes          []string  `json:"notes"`
}

// Deadlines are free-form date strings as written by the client.
type Deadlines struct {
	Start              string `json:"start"`
	Delivery           string `json:"delivery"`
	IntermediateStages string `json:"intermediate_stages"`
}

// Budget amounts are non-negative.
type Budget struct {
	Total    float64 `json:"total"`
	PerStage float64 `json:"per_stage"`
}

// Briefing is the persisted form of a document.
type Briefing struct {
	ID        string    `json:"id"`
	OwnerID   uint      `json:"owner_id"`
	Title     string    `json:"title"`
	Document  Document  `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize replaces absent lists with empty ones so that no field of a
// generated document is nil.
func (d *Document) Normalize() {
	if d.References == nil {
		d.References = []string{}
	}
	if d.Notes == nil {
		d.Notes = []string{}
	}
}

// Clone returns a deep copy; the editor hands these out so callers can never
// alias the edit buffer.
func (d Document) Clone() Document {
	out := d
	out.References = append([]string{}, d.References...)
	out.Notes = append([]string{}, d.Notes...)
	return out
}
