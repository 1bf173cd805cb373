package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"upkeeper/services"
)

type APIController struct {
	engine *services.Engine
}

/**
 * Create new API controller instance
 * @param {*services.Engine} engine - Engine owning the supervisors
 * @returns {*APIController} New API controller instance
 * @description
 * - Initializes controller with the running engine
 * - Used to manage top-level routes shared by all resources
 */
func NewAPIController(engine *services.Engine) *APIController {
	return &APIController{
		engine: engine,
	}
}

/**
 * Register all API routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - Registers daemon and tunnel resource routes under /upkeeper/api/v1
 * - Registers /healthz readiness probe and /metrics Prometheus endpoint
 * @example
 * router := gin.New()
 * controller := NewAPIController(engine)
 * controller.RegisterRoutes(router)
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	dc := NewDaemonController(a.engine.Daemons())
	r.POST("/upkeeper/api/v1/daemons", dc.StartDaemon)
	r.GET("/upkeeper/api/v1/daemons", dc.ListDaemons)
	r.GET("/upkeeper/api/v1/daemons/:id", dc.GetDaemon)
	r.DELETE("/upkeeper/api/v1/daemons/:id", dc.StopDaemon)
	r.POST("/upkeeper/api/v1/daemons/:id/restart", dc.RestartDaemon)
	r.GET("/upkeeper/api/v1/daemons/:id/health", dc.GetDaemonHealth)
	r.GET("/upkeeper/api/v1/daemons/:id/logs", dc.GetDaemonLogs)

	tc := NewTunnelController(a.engine.Tunnels())
	r.POST("/upkeeper/api/v1/tunnels", tc.CreateTunnel)
	r.GET("/upkeeper/api/v1/tunnels", tc.ListTunnels)
	r.GET("/upkeeper/api/v1/tunnels/:id", tc.GetTunnelInfo)
	r.DELETE("/upkeeper/api/v1/tunnels/:id", tc.DeleteTunnel)
	r.POST("/upkeeper/api/v1/tunnels/:id/reconnect", tc.ReconnectTunnel)

	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// @Summary Readiness probe
// @Description Returns engine version, start time, health and request counters
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	response := a.engine.GetHealthz()
	c.JSON(200, response)
}
