package briefings

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jimdaga/briefdesk/internal/editor"
	"github.com/jimdaga/briefdesk/internal/labels"
	"github.com/jimdaga/briefdesk/internal/state"
)

// Workspace is one owner's loaded briefing list and edit buffer.
type Workspace struct {
	Provider *state.Provider
	Editor   *editor.Editor

	limiter  *rate.Limiter
	lastSeen time.Time
}

// AllowGenerate reports whether another generation request may start now.
func (w *Workspace) AllowGenerate() bool {
	if w.limiter == nil {
		return true
	}
	return w.limiter.Allow()
}

// Workspaces creates and caches a Workspace per owner.
type Workspaces struct {
	store         state.Store
	gen           editor.Generator
	labels        *labels.LabelSet
	ratePerMinute int
	now           func() time.Time

	mu sync.Mutex
	m  map[uint]*Workspace
}

// NewWorkspaces returns an empty registry. ratePerMinute caps generation
// requests per owner; 0 disables the cap.
func NewWorkspaces(st state.Store, gen editor.Generator, set *labels.LabelSet, ratePerMinute int) *Workspaces {
	return &Workspaces{
		store:         st,
		gen:           gen,
		labels:        set,
		ratePerMinute: ratePerMinute,
		now:           time.Now,
		m:             make(map[uint]*Workspace),
	}
}

// Get returns the owner's workspace, creating it on first use.
func (w *Workspaces) Get(ownerID uint) *Workspace {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ws, ok := w.m[ownerID]; ok {
		ws.lastSeen = w.now()
		return ws
	}

	provider := state.NewProvider(w.store, ownerID)
	ws := &Workspace{
		Provider: provider,
		Editor: editor.New(w.gen, provider,
			editor.WithLabels(w.labels),
			editor.WithUserID(strconv.FormatUint(uint64(ownerID), 10)),
		),
		lastSeen: w.now(),
	}
	if w.ratePerMinute > 0 {
		ws.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(w.ratePerMinute)), w.ratePerMinute)
	}
	w.m[ownerID] = ws
	return ws
}

// Sweep drops workspaces not used for maxIdle and returns how many were
// dropped. An unsaved edit buffer is lost with its workspace.
func (w *Workspaces) Sweep(maxIdle time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-maxIdle)
	dropped := 0
	for id, ws := range w.m {
		if ws.lastSeen.Before(cutoff) {
			delete(w.m, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of live workspaces.
func (w *Workspaces) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.m)
}
