package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/pkg/errors"

	"github.com/Zereker/relations/internal/domain"
	"github.com/Zereker/relations/pkg/log"
	"github.com/Zereker/relations/pkg/store"
)

const (
	defaultLimit = 5
	maxLimit     = 50
)

// HandlerConfig controls authentication and page sizes.
type HandlerConfig struct {
	AccessTokens []string
	DefaultLimit int
	MaxLimit     int
}

// Handler serves the relations endpoint from a store.
type Handler struct {
	logger       *slog.Logger
	store        store.Store
	tokens       map[string]struct{}
	defaultLimit int
	maxLimit     int
}

// NewHandler creates a new HTTP handler
func NewHandler(s store.Store, cfg HandlerConfig) *Handler {
	h := &Handler{
		logger:       log.Logger("http.handler"),
		store:        s,
		tokens:       make(map[string]struct{}, len(cfg.AccessTokens)),
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}
	if h.maxLimit <= 0 {
		h.maxLimit = maxLimit
	}
	if h.defaultLimit <= 0 {
		h.defaultLimit = min(defaultLimit, h.maxLimit)
	}
	for _, t := range cfg.AccessTokens {
		h.tokens[t] = struct{}{}
	}
	return h
}

// errorResponse is the standard error body.
type errorResponse struct {
	ErrCode string `json:"errcode"`
	Error   string `json:"error"`
}

// relationsResponse is the success body of the relations endpoint.
type relationsResponse struct {
	Chunk     []json.RawMessage `json:"chunk"`
	NextBatch *string           `json:"next_batch,omitempty"`
	PrevBatch *string           `json:"prev_batch,omitempty"`
}

// RegisterRoutes registers the endpoint under every version prefix.
func (h *Handler) RegisterRoutes(r *route.Engine) {
	r.GET("/health", h.Health)

	for _, v := range domain.Versions() {
		g := r.Group(v.Prefix(), h.authenticate)
		g.GET(domain.RelationsRoute, h.Relations)
	}
}

// Relations handles GET /_matrix/client/{version}/rooms/:room_id/relations/:event_id/:rel_type/:event_type
func (h *Handler) Relations(ctx context.Context, c *app.RequestContext) {
	var segments [4]string
	for i, name := range []string{"room_id", "event_id", "rel_type", "event_type"} {
		v, err := pathValue(c, name)
		if err != nil {
			h.writeError(c, http.StatusBadRequest, domain.CodeInvalidParam, err.Error())
			return
		}
		segments[i] = v
	}

	roomID := domain.RoomID(segments[0])
	eventID := domain.EventID(segments[1])
	if err := roomID.Validate(); err != nil {
		h.writeError(c, http.StatusBadRequest, domain.CodeInvalidParam, err.Error())
		return
	}
	if err := eventID.Validate(); err != nil {
		h.writeError(c, http.StatusBadRequest, domain.CodeInvalidParam, err.Error())
		return
	}

	q := store.Query{
		RoomID:    roomID.String(),
		ParentID:  eventID.String(),
		RelType:   domain.NewRelationType(segments[2]).String(),
		EventType: domain.NewEventType(segments[3]).String(),
	}

	limit, err := h.parseLimit(c)
	if err != nil {
		h.writeError(c, http.StatusBadRequest, domain.CodeInvalidParam, err.Error())
		return
	}
	q.Limit = limit

	fromToken, hasFrom := c.GetQuery("from")
	if q.From, err = parsePosition("from", fromToken, hasFrom); err != nil {
		h.writeError(c, http.StatusBadRequest, domain.CodeInvalidParam, err.Error())
		return
	}
	toToken, hasTo := c.GetQuery("to")
	if q.To, err = parsePosition("to", toToken, hasTo); err != nil {
		h.writeError(c, http.StatusBadRequest, domain.CodeInvalidParam, err.Error())
		return
	}

	found, err := h.store.HasEvent(ctx, q.RoomID, q.ParentID)
	if err != nil {
		h.logger.Error("lookup parent failed", "room_id", q.RoomID, "event_id", q.ParentID, "error", err)
		h.writeError(c, http.StatusInternalServerError, domain.CodeUnknown, "internal error")
		return
	}
	if !found {
		h.writeError(c, http.StatusNotFound, domain.CodeNotFound, "Event not found")
		return
	}

	page, err := h.store.Relations(ctx, q)
	if err != nil {
		h.logger.Error("relations query failed", "room_id", q.RoomID, "event_id", q.ParentID, "error", err)
		h.writeError(c, http.StatusInternalServerError, domain.CodeUnknown, "internal error")
		return
	}

	resp := relationsResponse{Chunk: make([]json.RawMessage, 0, len(page.Events))}
	for _, ev := range page.Events {
		resp.Chunk = append(resp.Chunk, ev.Raw)
	}
	if page.Next != nil {
		next := store.MintToken(*page.Next)
		resp.NextBatch = &next
	}
	if hasFrom {
		resp.PrevBatch = &fromToken
	}

	h.logger.Debug("relations served",
		"room_id", q.RoomID,
		"event_id", q.ParentID,
		"rel_type", q.RelType,
		"event_type", q.EventType,
		"count", len(resp.Chunk),
		"has_next", resp.NextBatch != nil,
	)
	c.JSON(http.StatusOK, resp)
}

// Health handles GET /health
func (h *Handler) Health(_ context.Context, c *app.RequestContext) {
	c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// authenticate accepts a bearer header or the access_token query parameter.
func (h *Handler) authenticate(ctx context.Context, c *app.RequestContext) {
	token, ok := strings.CutPrefix(string(c.GetHeader("Authorization")), "Bearer ")
	if !ok {
		token = c.Query("access_token")
	}

	if token == "" {
		h.writeError(c, http.StatusUnauthorized, domain.CodeMissingToken, "Missing access token")
		return
	}
	if _, known := h.tokens[token]; !known {
		h.writeError(c, http.StatusUnauthorized, domain.CodeUnknownToken, "Unrecognised access token")
		return
	}

	c.Next(ctx)
}

func (h *Handler) parseLimit(c *app.RequestContext) (int, error) {
	raw, ok := c.GetQuery("limit")
	if !ok {
		return h.defaultLimit, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Errorf("limit must be an integer, got %q", raw)
	}
	if n <= 0 {
		return 0, errors.Errorf("limit must be positive, got %d", n)
	}
	return min(n, h.maxLimit), nil
}

// pathValue decodes one path segment. Routes match the raw path, so an
// escaped '/' stays inside its segment until here.
func pathValue(c *app.RequestContext, name string) (string, error) {
	v, err := url.PathUnescape(c.Param(name))
	if err != nil {
		return "", errors.Wrapf(err, "malformed %s", name)
	}
	return v, nil
}

func parsePosition(name, token string, present bool) (*store.Position, error) {
	if !present {
		return nil, nil
	}
	p, err := store.ParseToken(token)
	if err != nil {
		return nil, errors.WithMessage(err, name)
	}
	return &p, nil
}

// writeError aborts the request with an error body.
func (h *Handler) writeError(c *app.RequestContext, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		ErrCode: code,
		Error:   message,
	})
}
