package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type notificationSettings struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) getNotificationSettings(c *gin.Context) {
	uid := accountOf(c).Uid
	enabled, err := s.deps.Settings.NotificationsEnabled(c.Request.Context(), uid)
	if err != nil {
		respondFailure(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (s *Server) putNotificationSettings(c *gin.Context) {
	var req notificationSettings
	if !bind(c, &req) {
		return
	}
	if req.Enabled == nil {
		abortWithError(c, http.StatusBadRequest, ErrorBadRequest, "enabled is required")
		return
	}
	uid := accountOf(c).Uid
	if err := s.deps.Settings.SetNotificationsEnabled(c.Request.Context(), uid, *req.Enabled); err != nil {
		respondFailure(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

type deviceRequest struct {
	Token string `json:"token"`
}

func (s *Server) registerDevice(c *gin.Context) {
	var req deviceRequest
	if !bind(c, &req) {
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		abortWithError(c, http.StatusBadRequest, ErrorBadRequest, "token is required")
		return
	}
	uid := accountOf(c).Uid
	if err := s.deps.Settings.AddDeviceToken(c.Request.Context(), uid, token); err != nil {
		respondFailure(c, err, "")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) unregisterDevice(c *gin.Context) {
	uid := accountOf(c).Uid
	if err := s.deps.Settings.RemoveDeviceToken(c.Request.Context(), uid, c.Param("token")); err != nil {
		respondFailure(c, err, "")
		return
	}
	c.Status(http.StatusNoContent)
}
