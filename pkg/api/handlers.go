package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peerwire/peerwire/pkg/server"
	"github.com/peerwire/peerwire/pkg/wire"
)

// ClientInfo describes one connected client.
type ClientInfo struct {
	Name string `json:"name"`
	MAC  string `json:"mac"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// PayloadBody is the JSON form of an outbound payload.
type PayloadBody struct {
	Texts  map[string]string  `json:"texts,omitempty"`
	Bools  map[string]bool    `json:"bools,omitempty"`
	Ints   map[string]int64   `json:"ints,omitempty"`
	Floats map[string]float64 `json:"floats,omitempty"`
}

func (b PayloadBody) empty() bool {
	return len(b.Texts) == 0 && len(b.Bools) == 0 && len(b.Ints) == 0 && len(b.Floats) == 0
}

func (b PayloadBody) build() *wire.Payload {
	payload := wire.NewPayload()
	for key, value := range b.Texts {
		payload.WriteText(key, value)
	}
	for key, value := range b.Bools {
		payload.WriteBool(key, value)
	}
	for key, value := range b.Ints {
		payload.WriteInt(key, value)
	}
	for key, value := range b.Floats {
		payload.WriteFloat(key, value)
	}
	return payload
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

// handleStatus handles GET /api/v1/status
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data: gin.H{
			"mac":   s.relay.MAC(),
			"stats": s.relay.Stats(),
		},
	})
}

// handleClients handles GET /api/v1/clients
func (s *Server) handleClients(c *gin.Context) {
	peers := s.relay.Clients()
	infos := make([]ClientInfo, 0, len(peers))
	for _, peer := range peers {
		infos = append(infos, ClientInfo{
			Name: peer.Name(),
			MAC:  peer.MAC(),
			Host: peer.Host().String(),
			Port: peer.Port(),
		})
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: infos})
}

// handleKick handles POST /api/v1/clients/kick
func (s *Server) handleKick(c *gin.Context) {
	var body struct {
		Target string `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: "target (a client name or identity token) is required",
		})
		return
	}

	if err := s.relay.Kick(body.Target); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, server.ErrClientNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "Kick failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Client kicked"})
}

// handleBans handles GET /api/v1/bans
func (s *Server) handleBans(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: s.relay.Banned()})
}

// handleBan handles POST /api/v1/bans
func (s *Server) handleBan(c *gin.Context) {
	var body struct {
		MACs []string `json:"macs" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.MACs) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: "macs (a list of identity tokens) is required",
		})
		return
	}

	if err := s.relay.Ban(body.MACs...); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Ban failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Identities banned"})
}

// handleUnban handles DELETE /api/v1/bans
func (s *Server) handleUnban(c *gin.Context) {
	var body struct {
		MACs []string `json:"macs" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.MACs) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: "macs (a list of identity tokens) is required",
		})
		return
	}

	if err := s.relay.Unban(body.MACs...); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Unban failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Identities unbanned"})
}

// handleBroadcast handles POST /api/v1/messages/broadcast
func (s *Server) handleBroadcast(c *gin.Context) {
	var body PayloadBody
	if err := c.ShouldBindJSON(&body); err != nil || body.empty() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: "at least one of texts, bools, ints or floats is required",
		})
		return
	}

	delivered := s.relay.Broadcast(body.build())
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    gin.H{"delivered": delivered},
	})
}

// handleRedirect handles POST /api/v1/messages/redirect
func (s *Server) handleRedirect(c *gin.Context) {
	var body struct {
		Target string `json:"target" binding:"required"`
		PayloadBody
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.empty() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: "target and at least one payload field are required",
		})
		return
	}

	delivered := s.relay.Redirect(body.Target, body.build())
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    gin.H{"delivered": delivered},
	})
}
