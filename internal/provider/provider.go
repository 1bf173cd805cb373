package provider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"time"

	"upkeeper/internal/config"
	"upkeeper/internal/logger"
	"upkeeper/internal/retry"
	"upkeeper/internal/utils"
)

// ErrNativeCheckUnavailable tells the supervisor a provider has no usable
// native liveness query right now and the HTTP fallback probe should be used.
var ErrNativeCheckUnavailable = errors.New("native health check unavailable")

/**
 * Spec carries everything a provider needs to expose one local port
 * @property {int} localPort - Port the tunnel forwards to
 * @property {string} protocol - http/tcp, defaults to http
 * @property {string} authToken - Provider credential, passed through untouched
 */
type Spec struct {
	LocalPort int
	Protocol  string
	Subdomain string
	Region    string
	AuthToken string
}

/**
 * Handle represents one established provider session
 * @property {string} publicUrl - The public endpoint of the session
 * @property {int} pid - Group leader pid of the provider process
 * @description
 * - cmd is nil for sessions re-attached after an engine restart; teardown
 *   then signals the recorded process group instead of the exec handle
 */
type Handle struct {
	PublicURL string
	Pid       int
	cmd       *exec.Cmd
	exited    chan struct{}
}

// Provider is what tunnel providers implement. The supervisor promises not
// to call these methods concurrently for the same handle, so implementers
// need not worry about locking.
type Provider interface {
	// Name returns the provider name, e.g. "cloudflare".
	Name() string

	// Establish starts a tunnel session for spec and blocks until the
	// public URL is known, the context expires, or the session has
	// definitively failed. A failed attempt must leave no process behind.
	Establish(ctx context.Context, spec Spec) (*Handle, error)

	// Teardown stops the session. Tearing down an already-dead session
	// is a success.
	Teardown(h *Handle) error

	// Check performs a provider-native liveness query on the session.
	// ErrNativeCheckUnavailable means the caller should fall back to
	// probing the public URL over HTTP.
	Check(ctx context.Context, h *Handle) error
}

// Registry maps provider names to constructed providers.
type Registry map[string]Provider

/**
 * DefaultRegistry builds the built-in providers from configuration
 * @param {TunnelConfig} cfg - Per-provider binaries, tokens and caps
 * @returns {Registry} Providers keyed by name
 */
func DefaultRegistry(cfg *config.TunnelConfig) Registry {
	reg := Registry{}
	if pc, ok := cfg.Providers["cloudflare"]; ok {
		reg["cloudflare"] = &cloudflareProvider{cfg: pc}
	}
	if pc, ok := cfg.Providers["ngrok"]; ok {
		reg["ngrok"] = &ngrokProvider{cfg: pc}
	}
	if pc, ok := cfg.Providers["localtunnel"]; ok {
		reg["localtunnel"] = &localtunnelProvider{cfg: pc}
	}
	if pc, ok := cfg.Providers["custom"]; ok && pc.Command != "" {
		reg["custom"] = &customProvider{cfg: pc}
	}
	return reg
}

// Reattach rebuilds a handle for a session recorded before an engine restart.
func Reattach(publicURL string, pid int) *Handle {
	return &Handle{PublicURL: publicURL, Pid: pid}
}

/**
 * lookupBinary resolves the provider binary on PATH
 * @description
 * - A missing binary is a configuration failure: fail fast, never retried
 */
func lookupBinary(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("%s binary not found on PATH: %w", name, err))
	}
	return path, nil
}

/**
 * launch spawns a provider binary and scans its output for the public URL
 * @param {regexp} urlPattern - First submatch (or whole match) is the URL
 * @returns {(*Handle, error)} Session handle on success
 * @description
 * - The binary starts in its own process group so teardown reaches helpers
 * - Blocks until the URL appears, the process exits, or ctx expires; on
 *   every failure path the process group is killed so no orphan remains
 */
func launch(ctx context.Context, name, bin string, args []string, urlPattern *regexp.Regexp) (*Handle, error) {
	cmd := exec.Command(bin, args...)
	utils.SetNewPG(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s stdout: %w", name, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	pid := cmd.Process.Pid
	logger.Infof("Provider [%s] started (PID: %d)", name, pid)

	urlCh := make(chan string, 1)
	exited := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			logger.Debugf("[%s] %s", name, line)
			if m := urlPattern.FindStringSubmatch(line); m != nil {
				url := m[0]
				if len(m) > 1 {
					url = m[1]
				}
				select {
				case urlCh <- url:
				default:
				}
			}
		}
		// Keep draining until EOF so the child never blocks on a full pipe
		io.Copy(io.Discard, stdout)
	}()
	go func() {
		cmd.Wait()
		close(exited)
	}()

	select {
	case url := <-urlCh:
		return &Handle{PublicURL: url, Pid: pid, cmd: cmd, exited: exited}, nil
	case <-exited:
		return nil, fmt.Errorf("%s exited before reporting a public URL", name)
	case <-ctx.Done():
		utils.KillGroup(pid)
		<-exited
		return nil, fmt.Errorf("%s did not report a public URL in time: %w", name, ctx.Err())
	}
}

/**
 * teardown stops a provider session's process group
 * @description
 * - Graceful first, then kill after a short wait; already-dead is a success
 */
func teardown(name string, h *Handle) error {
	if h == nil || h.Pid <= 0 {
		return nil
	}
	if !utils.IsProcessAlive(h.Pid) {
		return nil
	}
	if err := utils.TerminateGroup(h.Pid); err != nil {
		logger.Warnf("Provider [%s] terminate failed (PID: %d): %v", name, h.Pid, err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !utils.IsProcessAlive(h.Pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if utils.IsProcessAlive(h.Pid) {
		if err := utils.KillGroup(h.Pid); err != nil {
			return fmt.Errorf("failed to kill %s session (PID: %d): %w", name, h.Pid, err)
		}
	}
	return nil
}

// checkAlive is the shared native check for providers whose only liveness
// signal is their process: a handle poll.
func checkAlive(name string, h *Handle) error {
	if h == nil || h.Pid <= 0 {
		return fmt.Errorf("%s session has no process", name)
	}
	if !utils.IsProcessAlive(h.Pid) {
		return fmt.Errorf("%s session process (PID: %d) is gone", name, h.Pid)
	}
	return nil
}
