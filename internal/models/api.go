package models

// ErrorResponse defines API error response format
type ErrorResponse struct {
	Error string `json:"error"`
}

// StartDaemonRequest carries the spawn contract supplied by the caller.
type StartDaemonRequest struct {
	Command     string            `json:"command" binding:"required"`
	WorkDir     string            `json:"workDir"`
	Env         map[string]string `json:"env"`
	MaxRestarts int               `json:"maxRestarts"`
	HealthSecs  int               `json:"healthSecs"`
	AutoRestart *bool             `json:"autoRestart"`
}

type StopDaemonRequest struct {
	Force bool `json:"force"`
}

// DaemonLogs returns the last N lines of each output stream.
type DaemonLogs struct {
	ID     string   `json:"id"`
	Stdout []string `json:"stdout"`
	Stderr []string `json:"stderr"`
}

type CreateTunnelRequest struct {
	Name      string `json:"name"`
	LocalPort int    `json:"localPort" binding:"required"`
	Provider  string `json:"provider"` // empty or "auto" tries the configured order
	Protocol  string `json:"protocol"`
	Subdomain string `json:"subdomain"`
	Region    string `json:"region"`
	AuthToken string `json:"authToken"`
}

// TunnelResponse defines tunnel operation success response format
type TunnelResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
