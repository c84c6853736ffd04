package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snower/physync/netsync"
	"github.com/snower/physync/telemetry"
)

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"mode":    h.mode.String(),
		"clients": h.hub.Len(),
		"objects": int(h.registry.Gauge(telemetry.PhysicsObjects).Get()),
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Snapshot())
}

type joinRequest struct {
	ObjectID int `json:"object_id"`
}

type joinResponse struct {
	ClientID string `json:"client_id"`
	Token    string `json:"token"`
}

// join issues a token binding a fresh client id to the requested object id (0 lets the
// server pick one).
func (h *handlers) join(c *gin.Context) {
	var req joinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	if req.ObjectID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object_id must not be negative"})
		return
	}

	clientID := netsync.ClientID(h.clients.Add(1))
	token, err := h.issuer.Issue(clientID, req.ObjectID)
	if err != nil {
		h.logger.Error("issue token", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, joinResponse{ClientID: clientID, Token: token})
}

func (h *handlers) websocket(c *gin.Context) {
	clientID, objectID, ok := h.identify(c)
	if !ok {
		return
	}
	if err := h.hub.ServeWS(c.Writer, c.Request, clientID, objectID); err != nil {
		// the upgrader has already answered
		h.logger.Warn("websocket upgrade", "client", clientID, "err", err)
	}
}

// identify resolves who is connecting. With an issuer the token decides, otherwise the
// optional object query parameter does.
func (h *handlers) identify(c *gin.Context) (string, int, bool) {
	if h.issuer == nil {
		objectID, _ := strconv.Atoi(c.Query("object"))
		return netsync.ClientID(h.clients.Add(1)), objectID, true
	}

	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return "", 0, false
	}

	claims, err := h.issuer.Verify(token)
	if err != nil {
		h.logger.Warn("rejected connection", "remote", c.ClientIP(), "err", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return "", 0, false
	}
	return claims.Subject, claims.ObjectID, true
}
