package models

import "time"

type TunnelStatus string

const (
	// Provider session being established
	TunnelStarting TunnelStatus = "starting"
	// Session up, public URL valid
	TunnelOnline TunnelStatus = "online"
	// Health probe failed, recovery not yet attempted
	TunnelOffline TunnelStatus = "offline"
	// Reconnect budget exhausted or establish failed; terminal
	TunnelError TunnelStatus = "error"
	// Re-establishing, public URL is the stale one from the last session
	TunnelReconnecting TunnelStatus = "reconnecting"
	// Closed by the caller
	TunnelStopped TunnelStatus = "stopped"
)

/**
 * Tunnel describes one public endpoint forwarding to a local port
 * @property {string} id - Immutable unique identifier
 * @property {string} provider - ngrok | cloudflare | localtunnel | custom
 * @property {string} publicUrl - Set only while online (or stale while reconnecting)
 * @property {int} reconnectCount - Reconnects consumed from the budget
 * @property {int} maxReconnects - Reconnect budget, varies per provider
 */
type Tunnel struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	LocalPort      int           `json:"localPort"`
	Provider       string        `json:"provider"`
	Protocol       string        `json:"protocol"`
	PublicURL      string        `json:"publicUrl,omitempty"`
	Pid            int           `json:"pid"`
	Status         TunnelStatus  `json:"status"`
	ReconnectCount int           `json:"reconnectCount"`
	MaxReconnects  int           `json:"maxReconnects"`
	HealthInterval time.Duration `json:"healthInterval"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastCheck      time.Time     `json:"lastCheck"`
	ErrorMessage   string        `json:"errorMessage,omitempty"`
}
