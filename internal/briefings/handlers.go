package briefings

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jimdaga/briefdesk/internal/auth"
	"github.com/jimdaga/briefdesk/internal/briefing"
	"github.com/jimdaga/briefdesk/internal/editor"
	"github.com/jimdaga/briefdesk/internal/export"
	"github.com/jimdaga/briefdesk/internal/labels"
	"github.com/jimdaga/briefdesk/internal/state"
	"github.com/jimdaga/briefdesk/internal/streams"
)

// Getter reads one briefing straight from the store.
type Getter interface {
	Get(ctx context.Context, ownerID uint, id string) (*briefing.Briefing, error)
}

// EnqueueFunc queues background generation and returns the task id.
type EnqueueFunc func(ctx context.Context, ownerID uint, conversation string) (string, error)

// Deps carries what the briefing handlers need. Enqueue and Events are
// optional.
type Deps struct {
	Workspaces *Workspaces
	Store      Getter
	Labels     *labels.LabelSet
	Enqueue    EnqueueFunc
	Events     streams.Sink
}

// RegisterRoutes mounts the briefing routes on rg, which must run
// auth.RequireAuth.
func RegisterRoutes(rg *gin.RouterGroup, d *Deps) {
	rg.GET("/briefings", ListHandler(d))
	rg.POST("/briefings/more", LoadMoreHandler(d))
	rg.POST("/briefings/generate-async", GenerateAsyncHandler(d))
	rg.GET("/briefings/:id", DetailHandler(d))
	rg.DELETE("/briefings/:id", DeleteHandler(d))

	rg.GET("/editor", EditorHandler(d))
	rg.POST("/editor/generate", GenerateHandler(d))
	rg.PATCH("/editor/fields", EditFieldHandler(d))
	rg.DELETE("/editor/fields", RemoveItemHandler(d))
	rg.POST("/editor/save", SaveHandler(d))
	rg.POST("/editor/open/:id", OpenHandler(d))
	rg.POST("/editor/reset", ResetHandler(d))
	rg.GET("/editor/export", ExportHandler(d))
}

type listView struct {
	state.Snapshot
	Loaded bool `json:"loaded"`
}

type detailView struct {
	Briefing *briefing.Briefing `json:"briefing"`
	Labels   *labels.LabelSet   `json:"-"`
}

type editorView struct {
	editor.Snapshot
	Error  string           `json:"error,omitempty"`
	Labels *labels.LabelSet `json:"-"`
}

// ListHandler renders the loaded briefings, loading page 1 on first visit or
// when ?refresh=1 is set.
func ListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ws, ok := workspace(c, d)
		if !ok {
			return
		}

		if c.Query("refresh") == "1" || ws.Provider.Snapshot().Page == 0 {
			if err := ws.Provider.Refresh(c.Request.Context()); err != nil {
				fail(c, ownerID, "refresh", err, "list.html", listView{Snapshot: ws.Provider.Snapshot()})
				return
			}
		}
		respond(c, http.StatusOK, "list.html", listView{Snapshot: ws.Provider.Snapshot()})
	}
}

// LoadMoreHandler appends the next page.
func LoadMoreHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ws, ok := workspace(c, d)
		if !ok {
			return
		}

		loaded, err := ws.Provider.LoadMore(c.Request.Context())
		if err != nil {
			fail(c, ownerID, "load more", err, "list.html", listView{Snapshot: ws.Provider.Snapshot()})
			return
		}
		respond(c, http.StatusOK, "list.html", listView{Snapshot: ws.Provider.Snapshot(), Loaded: loaded})
	}
}

// DetailHandler fetches one briefing from the store, bypassing the loaded
// list.
func DetailHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, _, ok := workspace(c, d)
		if !ok {
			return
		}

		b, err := d.Store.Get(c.Request.Context(), ownerID, c.Param("id"))
		if err != nil {
			fail(c, ownerID, "detail", err, "", nil)
			return
		}
		respond(c, http.StatusOK, "detail.html", detailView{Briefing: b, Labels: d.Labels})
	}
}

// DeleteHandler removes a briefing and sends the client back to the list.
func DeleteHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ws, ok := workspace(c, d)
		if !ok {
			return
		}

		id := c.Param("id")
		if err := ws.Provider.Delete(c.Request.Context(), id); err != nil {
			fail(c, ownerID, "delete", err, "", nil)
			return
		}
		streams.Emit(c.Request.Context(), d.Events, streams.BriefingEvent{
			Type:       streams.EventDeleted,
			BriefingID: id,
			OwnerID:    ownerID,
		})

		c.Header("HX-Redirect", "/briefings")
		c.JSON(http.StatusOK, gin.H{"deleted": id, "message": d.Labels.Notices.Deleted})
	}
}

// EditorHandler renders the edit buffer.
func EditorHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, ws, ok := workspace(c, d)
		if !ok {
			return
		}
		respondEditor(c, d, ws, http.StatusOK, "")
	}
}

type generateRequest struct {
	Conversation string `form:"conversation" json:"conversation"`
}

// GenerateHandler runs generation synchronously and fills the edit buffer.
func GenerateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ws, ok := workspace(c, d)
		if !ok {
			return
		}

		var req generateRequest
		if err := c.ShouldBind(&req); err != nil {
			respondEditor(c, d, ws, http.StatusBadRequest, err.Error())
			return
		}
		if !ws.AllowGenerate() {
			respondEditor(c, d, ws, http.StatusTooManyRequests, "too many generation requests, try again shortly")
			return
		}

		if err := ws.Editor.Generate(c.Request.Context(), req.Conversation); err != nil {
			editorFail(c, d, ws, ownerID, "generate", err)
			return
		}
		respondEditor(c, d, ws, http.StatusOK, "")
	}
}

// GenerateAsyncHandler queues generation in the worker; the result is saved
// directly and shows up in the list on the next refresh.
func GenerateAsyncHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ws, ok := workspace(c, d)
		if !ok {
			return
		}
		if d.Enqueue == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "background generation is not available"})
			return
		}

		var req generateRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Conversation) == "" {
			fail(c, ownerID, "generate async", briefing.ValidationError("generate", "conversation is empty"), "", nil)
			return
		}
		if !ws.AllowGenerate() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many generation requests, try again shortly"})
			return
		}

		taskID, err := d.Enqueue(c.Request.Context(), ownerID, req.Conversation)
		if err != nil {
			slog.Error("Failed to enqueue generation", "owner_id", ownerID, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to queue generation"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "message": d.Labels.Notices.Queued})
	}
}

type fieldRequest struct {
	Path  string `form:"path" json:"path" binding:"required"`
	Value string `form:"value" json:"value"`
}

// EditFieldHandler sets one field of the edit buffer.
func EditFieldHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ws, ok := workspace(c, d)
		if !ok {
			return
		}

		var req fieldRequest
		if err := c.ShouldBind(&req); err != nil {
			respondEditor(c, d, ws, http.StatusBadRequest, err.Error())
			return
		}
		if err := ws.Editor.EditField(req.Path, req.Value); err != nil {
			editorFail(c, d, ws, ownerID, "edit field", err)
			return
		}
		respondEditor(c, d, ws, http.StatusOK, "")
	}
}

// RemoveItemHandler deletes a list entry from the edit buffer. The path comes from
// the query string.
func RemoveItemHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ws, ok := workspace(c, d)
		if !ok {
			return
		}

		path := c.Query("path")
		if path == "" {
			respondEditor(c, d, ws, http.StatusBadRequest, "path is required")
			return
		}
		if err := ws.Editor.RemoveItem(path); err != nil {
			editorFail(c, d, ws, ownerID, "remove item", err)
			return
		}
		respondEditor(c, d, ws, http.StatusOK, "")
	}
}

// SaveHandler persists the edit buffer.
func SaveHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ws, ok := workspace(c, d)
		if !ok {
			return
		}

		previousID := ws.Editor.Snapshot().SavedID
		saved, err := ws.Editor.Save(c.Request.Context())
		if err != nil {
			editorFail(c, d, ws, ownerID, "save", err)
			return
		}

		eventType := streams.EventUpdated
		if saved.ID != previousID {
			eventType = streams.EventCreated
		}
		streams.Emit(c.Request.Context(), d.Events, streams.BriefingEvent{
			Type:       eventType,
			BriefingID: saved.ID,
			OwnerID:    ownerID,
			Title:      saved.Title,
			OccurredAt: saved.UpdatedAt,
		})
		respondEditor(c, d, ws, http.StatusOK, "")
	}
}

// OpenHandler loads a stored briefing into the edit buffer.
func OpenHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ws, ok := workspace(c, d)
		if !ok {
			return
		}

		b, err := d.Store.Get(c.Request.Context(), ownerID, c.Param("id"))
		if err != nil {
			editorFail(c, d, ws, ownerID, "open", err)
			return
		}
		if err := ws.Editor.Load(*b); err != nil {
			editorFail(c, d, ws, ownerID, "open", err)
			return
		}
		respondEditor(c, d, ws, http.StatusOK, "")
	}
}

// ResetHandler clears the edit buffer.
func ResetHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ws, ok := workspace(c, d)
		if !ok {
			return
		}
		if err := ws.Editor.Reset(); err != nil {
			editorFail(c, d, ws, ownerID, "reset", err)
			return
		}
		respondEditor(c, d, ws, http.StatusOK, "")
	}
}

// ExportHandler downloads the edit buffer as briefing.pdf.
func ExportHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ws, ok := workspace(c, d)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := ws.Editor.ExportPDF(&buf); err != nil {
			fail(c, ownerID, "export", err, "", nil)
			return
		}

		c.Header("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
	}
}

func workspace(c *gin.Context, d *Deps) (uint, *Workspace, bool) {
	ownerID, ok := auth.OwnerID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return 0, nil, false
	}
	return ownerID, d.Workspaces.Get(ownerID), true
}

func respondEditor(c *gin.Context, d *Deps, ws *Workspace, status int, errMsg string) {
	respond(c, status, "editor.html", editorView{
		Snapshot: ws.Editor.Snapshot(),
		Error:    errMsg,
		Labels:   d.Labels,
	})
}

func editorFail(c *gin.Context, d *Deps, ws *Workspace, ownerID uint, op string, err error) {
	status := StatusFor(err)
	logFailure(ownerID, op, status, err)
	respondEditor(c, d, ws, status, err.Error())
}

// fail logs err and answers with its status. When view is set it is rendered
// alongside the error; otherwise only the message is sent.
func fail(c *gin.Context, ownerID uint, op string, err error, name string, view any) {
	status := StatusFor(err)
	logFailure(ownerID, op, status, err)

	if view != nil && isHTMX(c) {
		c.HTML(status, name, view)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func logFailure(ownerID uint, op string, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, "Briefing request failed",
		"op", op,
		"owner_id", ownerID,
		"status", status,
		"error", err,
	)
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, briefing.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, briefing.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, briefing.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return statusClientClosed
	default:
		return http.StatusInternalServerError
	}
}

// statusClientClosed is nginx's code for a request the client abandoned.
const statusClientClosed = 499

func respond(c *gin.Context, status int, name string, view any) {
	if isHTMX(c) {
		c.HTML(status, name, view)
		return
	}
	c.JSON(status, view)
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}
