package provider

import (
	"context"
	"fmt"
	"regexp"

	"upkeeper/internal/config"
)

// lt prints "your url is: https://xyz.loca.lt" once the tunnel is up.
var localtunnelURLPattern = regexp.MustCompile(`your url is:\s*(https://\S+)`)

type localtunnelProvider struct {
	cfg config.ProviderConfig
}

func (p *localtunnelProvider) Name() string {
	return "localtunnel"
}

func (p *localtunnelProvider) Establish(ctx context.Context, spec Spec) (*Handle, error) {
	bin, err := lookupBinary(p.cfg.Binary)
	if err != nil {
		return nil, err
	}
	args := []string{"--port", fmt.Sprintf("%d", spec.LocalPort)}
	subdomain := spec.Subdomain
	if subdomain == "" {
		subdomain = p.cfg.Subdomain
	}
	if subdomain != "" {
		args = append(args, "--subdomain", subdomain)
	}
	return launch(ctx, p.Name(), bin, args, localtunnelURLPattern)
}

func (p *localtunnelProvider) Teardown(h *Handle) error {
	return teardown(p.Name(), h)
}

func (p *localtunnelProvider) Check(ctx context.Context, h *Handle) error {
	if err := checkAlive(p.Name(), h); err != nil {
		return err
	}
	return ErrNativeCheckUnavailable
}
