package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dryengineer/internal/storage"
)

// ClientCounter reports how many event channel clients are connected.
type ClientCounter interface {
	Count() int
}

// Handler wires HTTP routes to the event gateway and the asset store.
type Handler struct {
	events  http.Handler
	clients ClientCounter
	assets  storage.Service
	origins []string
}

func NewHandler(events http.Handler, clients ClientCounter, assets storage.Service, allowedOrigins []string) *Handler {
	return &Handler{
		events:  events,
		clients: clients,
		assets:  assets,
		origins: allowedOrigins,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(h.origins))

	router.GET("/ws", gin.WrapH(h.events))

	api := router.Group("/api")
	{
		api.GET("/assets", h.listAssets)
		api.GET("/health", h.health)
	}
}

func corsMiddleware(allowed []string) gin.HandlerFunc {
	wildcard := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
		}
		if o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case wildcard:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := set[strings.ToLower(origin)]; ok {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) health(c *gin.Context) {
	clients := 0
	if h.clients != nil {
		clients = h.clients.Count()
	}
	c.JSON(http.StatusOK, gin.H{"ok": "ok", "clients": clients})
}

func (h *Handler) listAssets(c *gin.Context) {
	if h.assets == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "asset storage not configured"})
		return
	}

	prefix := c.Query("prefix")
	objects, err := h.assets.List(c.Request.Context(), prefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]AssetResponse, len(objects))
	for i := range objects {
		resp[i] = assetToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

type AssetResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func assetToResponse(obj storage.ObjectInfo) AssetResponse {
	resp := AssetResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
