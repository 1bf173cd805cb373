package controllers

import (
	"fmt"
	"net/http"

	"upkeeper/internal/models"
	"upkeeper/services"

	"github.com/gin-gonic/gin"
)

// TunnelController handles tunnel-related HTTP requests
type TunnelController struct {
	tunnels *services.TunnelSupervisor
}

// NewTunnelController creates a new TunnelController bound to the supervisor
func NewTunnelController(tunnels *services.TunnelSupervisor) *TunnelController {
	return &TunnelController{
		tunnels: tunnels,
	}
}

// CreateTunnel establishes a public tunnel for a local port
//
//	@Summary		Create tunnel
//	@Description	Expose the given local port through the requested provider, or the configured provider order when provider is "auto" or omitted
//	@Tags			Tunnels
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.CreateTunnelRequest	true	"Create tunnel request parameters"
//	@Success		200		{object}	models.Tunnel				"Created tunnel record"
//	@Failure		400		{object}	models.ErrorResponse		"Invalid parameter error response"
//	@Failure		500		{object}	models.ErrorResponse		"Tunnel creation failure error response"
//	@Router			/upkeeper/api/v1/tunnels [post]
func (tc *TunnelController) CreateTunnel(c *gin.Context) {
	var req models.CreateTunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, &models.ErrorResponse{
			Error: "Invalid request parameters",
		})
		return
	}

	tun, err := tc.tunnels.CreateTunnel(req.LocalPort, req.Provider, services.TunnelOptions{
		Name:      req.Name,
		Protocol:  req.Protocol,
		Subdomain: req.Subdomain,
		Region:    req.Region,
		AuthToken: req.AuthToken,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, tun)
}

// ListTunnels lists all active tunnels
//
//	@Summary		List all tunnels
//	@Description	Get list of all active tunnels
//	@Tags			Tunnels
//	@Produce		json
//	@Success		200	{array}		models.Tunnel			"Tunnel list response"
//	@Router			/upkeeper/api/v1/tunnels [get]
func (tc *TunnelController) ListTunnels(c *gin.Context) {
	tunnels := tc.tunnels.ListActive()

	c.JSON(http.StatusOK, tunnels)
}

// GetTunnelInfo gets details of a specific tunnel
//
//	@Summary		Get tunnel info
//	@Description	Get details of the specified tunnel
//	@Tags			Tunnels
//	@Produce		json
//	@Param			id	path		string					true	"Tunnel ID"
//	@Success		200	{object}	models.Tunnel			"Tunnel details response"
//	@Failure		404	{object}	models.ErrorResponse	"Tunnel not found error response"
//	@Router			/upkeeper/api/v1/tunnels/{id} [get]
func (tc *TunnelController) GetTunnelInfo(c *gin.Context) {
	id := c.Param("id")

	tun, err := tc.tunnels.GetTunnel(id)
	if err != nil {
		c.JSON(http.StatusNotFound, &models.ErrorResponse{
			Error: fmt.Sprintf("Tunnel %s not found", id),
		})
		return
	}

	c.JSON(http.StatusOK, tun)
}

// DeleteTunnel tears down a tunnel and removes its record
//
//	@Summary		Close tunnel
//	@Description	Tear down the specified tunnel's provider session
//	@Tags			Tunnels
//	@Produce		json
//	@Param			id	path		string					true	"Tunnel ID"
//	@Success		200	{object}	models.TunnelResponse	"Tunnel close success response"
//	@Failure		404	{object}	models.ErrorResponse	"Tunnel not found error response"
//	@Router			/upkeeper/api/v1/tunnels/{id} [delete]
func (tc *TunnelController) DeleteTunnel(c *gin.Context) {
	id := c.Param("id")

	if !tc.tunnels.CloseTunnel(id) {
		c.JSON(http.StatusNotFound, &models.ErrorResponse{
			Error: fmt.Sprintf("Tunnel %s not found", id),
		})
		return
	}

	c.JSON(http.StatusOK, &models.TunnelResponse{
		ID:      id,
		Status:  "success",
		Message: fmt.Sprintf("Successfully closed tunnel %s", id),
	})
}

// ReconnectTunnel forces a reconnect, consuming one unit of the budget
//
//	@Summary		Reconnect tunnel
//	@Description	Tear down and re-establish the tunnel's provider session
//	@Tags			Tunnels
//	@Produce		json
//	@Param			id	path		string					true	"Tunnel ID"
//	@Success		200	{object}	models.Tunnel			"Tunnel record after reconnect"
//	@Failure		404	{object}	models.ErrorResponse	"Tunnel not found error response"
//	@Failure		500	{object}	models.ErrorResponse	"Reconnect failure error response"
//	@Router			/upkeeper/api/v1/tunnels/{id}/reconnect [post]
func (tc *TunnelController) ReconnectTunnel(c *gin.Context) {
	id := c.Param("id")

	if _, err := tc.tunnels.GetTunnel(id); err != nil {
		c.JSON(http.StatusNotFound, &models.ErrorResponse{
			Error: fmt.Sprintf("Tunnel %s not found", id),
		})
		return
	}

	if !tc.tunnels.Reconnect(id) {
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Error: fmt.Sprintf("Failed to reconnect tunnel %s", id),
		})
		return
	}

	tun, err := tc.tunnels.GetTunnel(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, tun)
}
