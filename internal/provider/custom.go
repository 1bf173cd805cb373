package provider

import (
	"context"
	"fmt"
	"regexp"

	"upkeeper/internal/config"
	"upkeeper/internal/retry"
	"upkeeper/internal/utils"
)

// Fallback when the operator configures no url_pattern: first https URL the
// command prints.
var defaultURLPattern = regexp.MustCompile(`https://\S+`)

/**
 * customProvider runs an operator-supplied tunnel command
 * @description
 * - command and args are text templates expanded with the tunnel spec,
 *   e.g. command: "mytun", args: ["--port", "{{.LocalPort}}"]
 * - url_pattern extracts the public URL from the command's output
 */
type customProvider struct {
	cfg config.ProviderConfig
}

type customArgs struct {
	LocalPort int
	Protocol  string
	Subdomain string
	Region    string
	AuthToken string
}

func (p *customProvider) Name() string {
	return "custom"
}

func (p *customProvider) Establish(ctx context.Context, spec Spec) (*Handle, error) {
	data := customArgs{
		LocalPort: spec.LocalPort,
		Protocol:  spec.Protocol,
		Subdomain: spec.Subdomain,
		Region:    spec.Region,
		AuthToken: spec.AuthToken,
	}
	command, args, err := utils.GetCommandLine(p.cfg.Command, p.cfg.Args, data)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("custom tunnel command settings are incorrect: %w", err))
	}
	bin, err := lookupBinary(command)
	if err != nil {
		return nil, err
	}
	pattern := defaultURLPattern
	if p.cfg.URLPattern != "" {
		pattern, err = regexp.Compile(p.cfg.URLPattern)
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("invalid url_pattern: %w", err))
		}
	}
	return launch(ctx, p.Name(), bin, args, pattern)
}

func (p *customProvider) Teardown(h *Handle) error {
	return teardown(p.Name(), h)
}

func (p *customProvider) Check(ctx context.Context, h *Handle) error {
	if err := checkAlive(p.Name(), h); err != nil {
		return err
	}
	return ErrNativeCheckUnavailable
}
