package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"upkeeper/internal/config"
)

// ngrok with --log=stdout emits logfmt lines like:
//
//	t=... lvl=info msg="started tunnel" obj=tunnels name=... addr=http://localhost:8080 url=https://abc.ngrok-free.app
var ngrokURLPattern = regexp.MustCompile(`url=(https://\S+)`)

// Local control endpoint of the ngrok agent.
const ngrokAPIBase = "http://127.0.0.1:4040"

type ngrokProvider struct {
	cfg config.ProviderConfig
}

func (p *ngrokProvider) Name() string {
	return "ngrok"
}

func (p *ngrokProvider) Establish(ctx context.Context, spec Spec) (*Handle, error) {
	bin, err := lookupBinary(p.cfg.Binary)
	if err != nil {
		return nil, err
	}
	protocol := spec.Protocol
	if protocol == "" {
		protocol = "http"
	}
	args := []string{protocol, fmt.Sprintf("%d", spec.LocalPort), "--log", "stdout", "--log-format", "logfmt"}
	token := spec.AuthToken
	if token == "" {
		token = p.cfg.AuthToken
	}
	if token != "" {
		args = append(args, "--authtoken", token)
	}
	if spec.Subdomain != "" {
		args = append(args, "--subdomain", spec.Subdomain)
	}
	region := spec.Region
	if region == "" {
		region = p.cfg.Region
	}
	if region != "" {
		args = append(args, "--region", region)
	}
	return launch(ctx, p.Name(), bin, args, ngrokURLPattern)
}

func (p *ngrokProvider) Teardown(h *Handle) error {
	return teardown(p.Name(), h)
}

type ngrokTunnelList struct {
	Tunnels []struct {
		PublicURL string `json:"public_url"`
	} `json:"tunnels"`
}

/**
 * Check queries the ngrok agent's local control endpoint
 * @description
 * - The session is healthy when the agent still advertises our public URL
 * - An unreachable control endpoint with a live process defers to the
 *   HTTP fallback probe rather than declaring the tunnel dead
 */
func (p *ngrokProvider) Check(ctx context.Context, h *Handle) error {
	if err := checkAlive(p.Name(), h); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ngrokAPIBase+"/api/tunnels", nil)
	if err != nil {
		return ErrNativeCheckUnavailable
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return ErrNativeCheckUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrNativeCheckUnavailable
	}
	var list ngrokTunnelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return ErrNativeCheckUnavailable
	}
	for _, t := range list.Tunnels {
		if strings.EqualFold(t.PublicURL, h.PublicURL) {
			return nil
		}
	}
	return fmt.Errorf("ngrok agent no longer advertises %s", h.PublicURL)
}
