package stream

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycast/broadcaster/internal/encoder"
	"github.com/relaycast/broadcaster/internal/proc"
	"github.com/relaycast/broadcaster/pkg/response"
)

// Handler exposes the supervisor's query surface over HTTP. The command
// front-end that authenticates operators sits in front of this API.
type Handler struct {
	sup    *Supervisor
	logger *zap.Logger
}

// NewHandler creates a stream control handler.
func NewHandler(sup *Supervisor, logger *zap.Logger) *Handler {
	return &Handler{sup: sup, logger: logger}
}

// SourceRequest describes the media input in a start request.
type SourceRequest struct {
	Kind      string   `json:"kind" binding:"required"`
	Path      string   `json:"path"`
	AudioPath string   `json:"audio_path"`
	ImagePath string   `json:"image_path"`
	Items     []string `json:"items"`
}

// DestinationRequest carries an explicit RTMP destination; omitted, the
// configured default is used.
type DestinationRequest struct {
	URL string `json:"url" binding:"required"`
	Key string `json:"key"`
}

// StartRequest is the body for POST /streams.
type StartRequest struct {
	OwnerID     int64               `json:"owner_id" binding:"required"`
	Source      SourceRequest       `json:"source" binding:"required"`
	Destination *DestinationRequest `json:"destination"`
	Tier        int                 `json:"tier"`
	Loop        bool                `json:"loop"`
}

// AddItemRequest is the body for POST /streams/:id/playlist/items.
type AddItemRequest struct {
	Path  string `json:"path" binding:"required"`
	Title string `json:"title"`
}

// ProfileRequest is the body for POST /streams/:id/profile.
type ProfileRequest struct {
	Tier int `json:"tier" binding:"required"`
}

// Start handles POST /streams.
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	src := encoder.Source{
		Kind:      encoder.SourceKind(req.Source.Kind),
		Path:      req.Source.Path,
		AudioPath: req.Source.AudioPath,
		ImagePath: req.Source.ImagePath,
		Items:     req.Source.Items,
	}
	var dst encoder.Destination
	if req.Destination != nil {
		dst = encoder.Destination{URL: req.Destination.URL, Key: req.Destination.Key}
	}

	view, err := h.sup.Start(req.OwnerID, src, dst, req.Tier, req.Loop)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, view)
}

// List handles GET /streams, optionally filtered by ?owner_id=.
func (h *Handler) List(c *gin.Context) {
	if ownerStr := c.Query("owner_id"); ownerStr != "" {
		ownerID, err := strconv.ParseInt(ownerStr, 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid owner_id")
			return
		}
		response.OK(c, h.sup.ListForOwner(ownerID))
		return
	}
	response.OK(c, h.sup.ListAll())
}

// Get handles GET /streams/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	view, found := h.sup.Get(id)
	if !found {
		response.NotFound(c, "session not found")
		return
	}
	response.OK(c, view)
}

// Stop handles DELETE /streams/:id.
func (h *Handler) Stop(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	stopped := h.sup.Stop(id)
	response.OK(c, gin.H{"stopped": stopped})
}

// Pause handles POST /streams/:id/pause.
func (h *Handler) Pause(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := h.sup.Pause(id); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"paused": true})
}

// Resume handles POST /streams/:id/resume.
func (h *Handler) Resume(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := h.sup.Resume(id); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"resumed": true})
}

// ChangeProfile handles POST /streams/:id/profile.
func (h *Handler) ChangeProfile(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	view, err := h.sup.ChangeProfile(id, req.Tier)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, view)
}

// GetPlaylist handles GET /streams/:id/playlist.
func (h *Handler) GetPlaylist(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	items, err := h.sup.Playlist(id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, items)
}

// AddPlaylistItem handles POST /streams/:id/playlist/items.
func (h *Handler) AddPlaylistItem(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	item, err := h.sup.AddPlaylistItem(id, req.Path, req.Title)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, item)
}

// RemovePlaylistItem handles DELETE /streams/:id/playlist/items/:itemID.
func (h *Handler) RemovePlaylistItem(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return
	}
	if err := h.sup.RemovePlaylistItem(id, itemID); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"removed": true})
}

// AdvancePlaylist handles POST /streams/:id/playlist/advance.
func (h *Handler) AdvancePlaylist(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	item, err := h.sup.AdvancePlaylist(id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, item)
}

// MarkItemPlayed handles POST /streams/:id/playlist/items/:itemID/played.
func (h *Handler) MarkItemPlayed(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return
	}
	if err := h.sup.MarkPlaylistItemPlayed(id, itemID); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"played": true})
}

func (h *Handler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps supervisor errors to HTTP responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNoDestination):
		response.BadRequest(c, "no destination configured; provide one or set DEFAULT_RTMP_URL")
	case errors.Is(err, encoder.ErrUnsupportedSource), errors.Is(err, ErrNotPlaylist):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrAlreadyRunning),
		errors.Is(err, ErrNotRunning),
		errors.Is(err, ErrNotPaused),
		errors.Is(err, ErrEmptyQueue),
		errors.Is(err, ErrItemPlayed),
		errors.Is(err, proc.ErrUnsupported):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("stream operation failed", zap.Error(err))
		response.Internal(c, "stream operation failed")
	}
}
