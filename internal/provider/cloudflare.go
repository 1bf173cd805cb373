package provider

import (
	"context"
	"fmt"
	"regexp"

	"upkeeper/internal/config"
)

// cloudflared prints the quick-tunnel URL on a banner line of its own.
var cloudflareURLPattern = regexp.MustCompile(`https://[a-z0-9-]+\.trycloudflare\.com`)

type cloudflareProvider struct {
	cfg config.ProviderConfig
}

func (p *cloudflareProvider) Name() string {
	return "cloudflare"
}

/**
 * Establish starts a cloudflared quick tunnel for the local port
 * @description
 * - Named tunnels need an account-side config; the supervision engine only
 *   drives the ephemeral --url mode and leaves credentials to the caller
 */
func (p *cloudflareProvider) Establish(ctx context.Context, spec Spec) (*Handle, error) {
	bin, err := lookupBinary(p.cfg.Binary)
	if err != nil {
		return nil, err
	}
	protocol := spec.Protocol
	if protocol == "" {
		protocol = "http"
	}
	args := []string{
		"tunnel", "--no-autoupdate",
		"--url", fmt.Sprintf("%s://localhost:%d", protocol, spec.LocalPort),
	}
	if spec.Region != "" {
		args = append(args, "--region", spec.Region)
	}
	return launch(ctx, p.Name(), bin, args, cloudflareURLPattern)
}

func (p *cloudflareProvider) Teardown(h *Handle) error {
	return teardown(p.Name(), h)
}

// Check is a handle poll; cloudflared has no local control endpoint in
// quick-tunnel mode, so a live process plus the HTTP fallback is the best
// signal available.
func (p *cloudflareProvider) Check(ctx context.Context, h *Handle) error {
	if err := checkAlive(p.Name(), h); err != nil {
		return err
	}
	return ErrNativeCheckUnavailable
}
