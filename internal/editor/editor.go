// Package editor implements the generate, edit, save and export flow for a
// single briefing.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jimdaga/briefdesk/internal/briefing"
	"github.com/jimdaga/briefdesk/internal/export"
	"github.com/jimdaga/briefdesk/internal/labels"
)

// State is the editor's position in its lifecycle.
type State int

const (
	Idle State = iota
	Generating
	Editing
	Saving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Generating:
		return "generating"
	case Editing:
		return "editing"
	case Saving:
		return "saving"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrInvalidTransition is returned when an operation is not allowed in the
// editor's current state.
var ErrInvalidTransition = errors.New("invalid editor transition")

// Generator produces a document from a conversation transcript.
type Generator interface {
	GenerateBriefing(ctx context.Context, conversation, userID string) (*briefing.Document, error)
}

// Persister stores documents. state.Provider satisfies it.
type Persister interface {
	Create(ctx context.Context, title string, doc briefing.Document) (*briefing.Briefing, error)
	Update(ctx context.Context, id, title string, doc briefing.Document) (*briefing.Briefing, error)
}

// Notice levels.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// Notice is the message surfaced after a generate or save.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Snapshot is a copy of the editor's observable state.
type Snapshot struct {
	State        State              `json:"state"`
	Document     *briefing.Document `json:"document,omitempty"`
	Title        string             `json:"title"`
	SavedID      string             `json:"saved_id,omitempty"`
	Conversation string             `json:"conversation"`
	Notice       *Notice            `json:"notice,omitempty"`
}

// Option customizes an Editor.
type Option func(*Editor)

// WithLabels sets the label set used for notices and PDF headings.
func WithLabels(set *labels.LabelSet) Option {
	return func(e *Editor) { e.labels = set }
}

// WithUserID sets the user id forwarded to the generation endpoint.
func WithUserID(id string) Option {
	return func(e *Editor) { e.userID = id }
}

// WithClock replaces time.Now for title derivation.
func WithClock(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

// Editor holds one edit buffer. All methods are safe for concurrent use;
// operations that are not valid in the current state fail with
// ErrInvalidTransition instead of queueing.
type Editor struct {
	gen     Generator
	persist Persister
	labels  *labels.LabelSet
	userID  string
	now     func() time.Time

	mu           sync.Mutex
	state        State
	doc          briefing.Document
	hasDoc       bool
	title        string
	savedID      string
	conversation string
	notice       *Notice
}

// New returns an Idle editor.
func New(gen Generator, persist Persister, opts ...Option) *Editor {
	e := &Editor{gen: gen, persist: persist, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.labels == nil {
		e.labels = labels.MustLookup(labels.DefaultLocale)
	}
	return e
}

// Snapshot returns a copy of the current state. Document is nil until a
// briefing has been generated or loaded.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State:        e.state,
		Title:        e.title,
		SavedID:      e.savedID,
		Conversation: e.conversation,
	}
	if e.hasDoc {
		doc := e.doc.Clone()
		snap.Document = &doc
	}
	if e.notice != nil {
		n := *e.notice
		snap.Notice = &n
	}
	return snap
}

// Generate sends text to the generator and replaces the buffer with the
// result. Blank text is rejected without a transition. On failure the editor
// returns to its prior state and text stays in the conversation input; on
// success the input is cleared.
func (e *Editor) Generate(ctx context.Context, text string) error {
	e.mu.Lock()
	if e.state != Idle && e.state != Editing {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("generate while %s: %w", state, ErrInvalidTransition)
	}
	e.conversation = text
	if strings.TrimSpace(text) == "" {
		e.mu.Unlock()
		return briefing.ValidationError("generate", "conversation is empty")
	}
	prev := e.state
	e.state = Generating
	e.mu.Unlock()

	doc, err := e.gen.GenerateBriefing(ctx, text, e.userID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = prev
	if err != nil {
		e.notice = &Notice{Level: NoticeError, Message: fmt.Sprintf("%s %v", e.labels.Notices.GenerateFailed, err)}
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	doc.Normalize()
	e.doc = doc.Clone()
	e.hasDoc = true
	e.title = briefing.DeriveTitle(*doc, text, e.now())
	e.savedID = ""
	e.conversation = ""
	e.state = Editing
	e.notice = &Notice{Level: NoticeSuccess, Message: e.labels.Notices.Generated}
	return nil
}

// Load opens a saved briefing for editing. Later saves update that row.
func (e *Editor) Load(b briefing.Briefing) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle && e.state != Editing {
		return fmt.Errorf("load while %s: %w", e.state, ErrInvalidTransition)
	}

	doc := b.Document.Clone()
	doc.Normalize()
	e.doc = doc
	e.hasDoc = true
	e.title = b.Title
	e.savedID = b.ID
	e.notice = nil
	e.state = Editing
	return nil
}

// Reset discards the buffer and returns to Idle.
func (e *Editor) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle && e.state != Editing {
		return fmt.Errorf("reset while %s: %w", e.state, ErrInvalidTransition)
	}
	e.doc = briefing.Document{}
	e.hasDoc = false
	e.title = ""
	e.savedID = ""
	e.notice = nil
	e.state = Idle
	return nil
}

// EditField sets one field of the buffer. See field.go for paths.
func (e *Editor) EditField(path, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return fmt.Errorf("edit while %s: %w", e.state, ErrInvalidTransition)
	}

	doc := e.doc.Clone()
	title := e.title
	if err := setField(&doc, &title, path, value); err != nil {
		return err
	}
	e.doc = doc
	e.title = title
	return nil
}

// RemoveItem deletes references[i] or notes[i] from the buffer.
func (e *Editor) RemoveItem(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return fmt.Errorf("remove while %s: %w", e.state, ErrInvalidTransition)
	}

	doc := e.doc.Clone()
	if err := removeItem(&doc, path); err != nil {
		return err
	}
	e.doc = doc
	return nil
}

// Save persists the buffer. The first save creates a row; later saves update
// the same row in place. If that row has been deleted meanwhile a new one is
// created.
func (e *Editor) Save(ctx context.Context) (*briefing.Briefing, error) {
	e.mu.Lock()
	if e.state != Editing {
		state := e.state
		e.mu.Unlock()
		return nil, fmt.Errorf("save while %s: %w", state, ErrInvalidTransition)
	}
	e.state = Saving
	doc := e.doc.Clone()
	title := e.title
	if strings.TrimSpace(title) == "" {
		title = briefing.DeriveTitle(doc, "", e.now())
	}
	id := e.savedID
	e.mu.Unlock()

	var (
		saved *briefing.Briefing
		err   error
	)
	if id != "" {
		saved, err = e.persist.Update(ctx, id, title, doc)
		if errors.Is(err, briefing.ErrNotFound) {
			id = ""
		}
	}
	if id == "" {
		saved, err = e.persist.Create(ctx, title, doc)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Editing
	if saved != nil {
		e.savedID = saved.ID
		e.title = saved.Title
	}
	if err != nil {
		e.notice = &Notice{Level: NoticeError, Message: fmt.Sprintf("%s %v", e.labels.Notices.SaveFailed, err)}
		return saved, err
	}
	e.notice = &Notice{Level: NoticeSuccess, Message: e.labels.Notices.Saved}
	return saved, nil
}

// ExportPDF renders the buffer to w.
func (e *Editor) ExportPDF(w io.Writer) error {
	e.mu.Lock()
	if e.state != Editing {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("export while %s: %w", state, ErrInvalidTransition)
	}
	doc := e.doc.Clone()
	title := e.title
	e.mu.Unlock()

	return export.Render(w, title, doc, e.labels)
}
