package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Aidin1998/botcontrol/common/apiutil"
	"github.com/Aidin1998/botcontrol/internal/audit"
	"github.com/Aidin1998/botcontrol/internal/servicecontrol"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type commandRequest struct {
	Command string                 `json:"command" validate:"required,max=64"`
	Data    map[string]interface{} `json:"data"`
}

func (s *Server) serviceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.Status(c.Request.Context()))
}

func (s *Server) restartService(c *gin.Context) {
	err := s.commands.Restart(c.Request.Context())
	s.commandResult(c, servicecontrol.CommandRestart, nil, err,
		"Restart command sent to "+servicecontrol.ServiceName+" successfully",
		"Failed to send restart command to "+servicecontrol.ServiceName)
}

func (s *Server) stopService(c *gin.Context) {
	err := s.commands.Stop(c.Request.Context())
	s.commandResult(c, servicecontrol.CommandStop, nil, err,
		"Stop command sent to "+servicecontrol.ServiceName+" successfully",
		"Failed to send stop command to "+servicecontrol.ServiceName)
}

func (s *Server) sendCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}
	if err := s.validator.Validate(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "Command is required"})
		return
	}

	err := s.commands.Send(c.Request.Context(), req.Command, req.Data)
	s.commandResult(c, req.Command, req.Data, err,
		fmt.Sprintf("Command %s sent successfully", req.Command),
		fmt.Sprintf("Failed to send command %s", req.Command))
}

func (s *Server) commandResult(c *gin.Context, command string, data map[string]interface{}, err error, okMsg, failMsg string) {
	if err != nil {
		s.logger.Warn("Command dispatch failed",
			zap.String("command", command),
			zap.String("trace_id", apiutil.GetTraceID(c)),
			zap.Error(err))
		s.auditLog(c, audit.ActionCommand, command, "failure", data)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": failMsg})
		return
	}

	s.auditLog(c, audit.ActionCommand, command, "success", data)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   okMsg,
		"timestamp": time.Now().UnixMilli(),
	})
}
