package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"upkeeper/internal/models"
	"upkeeper/services"

	"github.com/gin-gonic/gin"
)

// DaemonController handles daemon-related HTTP requests
type DaemonController struct {
	daemons *services.ProcessSupervisor
}

// NewDaemonController creates a new DaemonController bound to the supervisor
func NewDaemonController(daemons *services.ProcessSupervisor) *DaemonController {
	return &DaemonController{
		daemons: daemons,
	}
}

// StartDaemon spawns a new supervised process
//
//	@Summary		Start daemon
//	@Description	Spawn the given command as a supervised daemon
//	@Tags			Daemons
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.StartDaemonRequest	true	"Start daemon request parameters"
//	@Success		200		{object}	models.Daemon				"Created daemon record"
//	@Failure		400		{object}	models.ErrorResponse		"Invalid parameter error response"
//	@Failure		500		{object}	models.ErrorResponse		"Spawn failure error response"
//	@Router			/upkeeper/api/v1/daemons [post]
func (dc *DaemonController) StartDaemon(c *gin.Context) {
	var req models.StartDaemonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, &models.ErrorResponse{
			Error: "Invalid request parameters",
		})
		return
	}

	policy := services.DaemonPolicy{
		MaxRestarts:    req.MaxRestarts,
		HealthInterval: time.Duration(req.HealthSecs) * time.Second,
		AutoRestart:    true,
	}
	if req.AutoRestart != nil {
		policy.AutoRestart = *req.AutoRestart
	}

	dmn, err := dc.daemons.StartDaemon(req.Command, req.WorkDir, req.Env, policy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dmn)
}

// ListDaemons lists all tracked daemons
//
//	@Summary		List daemons
//	@Description	Get list of all tracked daemons
//	@Tags			Daemons
//	@Produce		json
//	@Success		200	{array}		models.Daemon			"Daemon list response"
//	@Router			/upkeeper/api/v1/daemons [get]
func (dc *DaemonController) ListDaemons(c *gin.Context) {
	daemons := dc.daemons.ListActive()

	c.JSON(http.StatusOK, daemons)
}

// GetDaemon gets details of a specific daemon
//
//	@Summary		Get daemon info
//	@Description	Get details of the specified daemon
//	@Tags			Daemons
//	@Produce		json
//	@Param			id	path		string					true	"Daemon ID"
//	@Success		200	{object}	models.Daemon			"Daemon details response"
//	@Failure		404	{object}	models.ErrorResponse	"Daemon not found error response"
//	@Router			/upkeeper/api/v1/daemons/{id} [get]
func (dc *DaemonController) GetDaemon(c *gin.Context) {
	id := c.Param("id")

	dmn, err := dc.daemons.GetDaemon(id)
	if err != nil {
		c.JSON(http.StatusNotFound, &models.ErrorResponse{
			Error: fmt.Sprintf("Daemon %s not found", id),
		})
		return
	}

	c.JSON(http.StatusOK, dmn)
}

// StopDaemon stops a daemon and removes its record
//
//	@Summary		Stop daemon
//	@Description	Stop the specified daemon; pass force=true to skip graceful termination
//	@Tags			Daemons
//	@Produce		json
//	@Param			id		path	string	true	"Daemon ID"
//	@Param			force	query	bool	false	"Skip graceful termination"
//	@Success		200	{object}	map[string]interface{}	"Stop success response"
//	@Failure		404	{object}	models.ErrorResponse	"Daemon not found error response"
//	@Router			/upkeeper/api/v1/daemons/{id} [delete]
func (dc *DaemonController) StopDaemon(c *gin.Context) {
	id := c.Param("id")
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	if !dc.daemons.StopDaemon(id, force) {
		c.JSON(http.StatusNotFound, &models.ErrorResponse{
			Error: fmt.Sprintf("Daemon %s not found", id),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("Successfully stopped daemon %s", id),
	})
}

// RestartDaemon restarts a daemon, consuming one unit of its restart budget
//
//	@Summary		Restart daemon
//	@Description	Restart the specified daemon
//	@Tags			Daemons
//	@Produce		json
//	@Param			id	path		string					true	"Daemon ID"
//	@Success		200	{object}	models.Daemon			"Daemon record after restart"
//	@Failure		404	{object}	models.ErrorResponse	"Daemon not found error response"
//	@Failure		500	{object}	models.ErrorResponse	"Restart failure error response"
//	@Router			/upkeeper/api/v1/daemons/{id}/restart [post]
func (dc *DaemonController) RestartDaemon(c *gin.Context) {
	id := c.Param("id")

	if _, err := dc.daemons.GetDaemon(id); err != nil {
		c.JSON(http.StatusNotFound, &models.ErrorResponse{
			Error: fmt.Sprintf("Daemon %s not found", id),
		})
		return
	}

	if !dc.daemons.RestartDaemon(id) {
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Error: fmt.Sprintf("Failed to restart daemon %s", id),
		})
		return
	}

	dmn, err := dc.daemons.GetDaemon(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dmn)
}

// GetDaemonHealth evaluates the daemon's current health state
//
//	@Summary		Get daemon health
//	@Description	Evaluate and return the current health state of the daemon
//	@Tags			Daemons
//	@Produce		json
//	@Param			id	path		string					true	"Daemon ID"
//	@Success		200	{object}	map[string]interface{}	"Health state response"
//	@Failure		404	{object}	models.ErrorResponse	"Daemon not found error response"
//	@Router			/upkeeper/api/v1/daemons/{id}/health [get]
func (dc *DaemonController) GetDaemonHealth(c *gin.Context) {
	id := c.Param("id")

	health, err := dc.daemons.GetHealth(id)
	if err != nil {
		c.JSON(http.StatusNotFound, &models.ErrorResponse{
			Error: fmt.Sprintf("Daemon %s not found", id),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"health": health,
	})
}

// GetDaemonLogs returns the tail of the daemon's captured output
//
//	@Summary		Get daemon logs
//	@Description	Return the last N lines of the daemon's stdout and stderr
//	@Tags			Daemons
//	@Produce		json
//	@Param			id		path	string	true	"Daemon ID"
//	@Param			lines	query	int		false	"Number of lines per stream (default 100)"
//	@Success		200	{object}	models.DaemonLogs		"Captured output tails"
//	@Failure		404	{object}	models.ErrorResponse	"Daemon not found error response"
//	@Failure		500	{object}	models.ErrorResponse	"Log read failure error response"
//	@Router			/upkeeper/api/v1/daemons/{id}/logs [get]
func (dc *DaemonController) GetDaemonLogs(c *gin.Context) {
	id := c.Param("id")
	lines, err := strconv.Atoi(c.DefaultQuery("lines", "100"))
	if err != nil || lines <= 0 {
		c.JSON(http.StatusBadRequest, &models.ErrorResponse{
			Error: "Invalid lines parameter",
		})
		return
	}

	logs, err := dc.daemons.GetLogs(id, lines)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, services.ErrDaemonNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, &models.ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, logs)
}
