package portforward

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

// Config describes one tunnel to a ClusterIP service.
type Config struct {
	Namespace    string
	Service      string
	LocalPort    int // default: 19090
	RemotePort   int
	KubeContext  string        // optional kubectl context
	ReadyTimeout time.Duration // default: 30s
}

// Forward runs `kubectl port-forward` as a child process scoped to the
// caller's context. Canceling the context or calling Stop kills the
// child; nothing survives the run.
type Forward struct {
	config Config
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// New builds a tunnel. Start launches it.
func New(config Config) *Forward {
	if config.LocalPort == 0 {
		config.LocalPort = 19090
	}
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = 30 * time.Second
	}
	return &Forward{config: config}
}

// Start launches the tunnel and blocks until the local port accepts
// connections.
func (f *Forward) Start(ctx context.Context) error {
	cmdCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	args := []string{
		"port-forward",
		fmt.Sprintf("svc/%s", f.config.Service),
		fmt.Sprintf("%d:%d", f.config.LocalPort, f.config.RemotePort),
		"-n", f.config.Namespace,
	}
	if f.config.KubeContext != "" {
		args = append(args, "--context", f.config.KubeContext)
	}

	f.cmd = exec.CommandContext(cmdCtx, "kubectl", args...)
	if err := f.cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start port-forward: %w", err)
	}

	log.Info().
		Str("service", f.config.Service).
		Str("namespace", f.config.Namespace).
		Int("local_port", f.config.LocalPort).
		Int("remote_port", f.config.RemotePort).
		Msg("port-forward starting")

	if err := f.waitForReady(ctx); err != nil {
		f.Stop()
		return err
	}

	log.Info().Int("local_port", f.config.LocalPort).Msg("port-forward ready")
	return nil
}

// waitForReady probes the local port until the tunnel accepts TCP
// connections. Forwarding failures after that point surface on the
// connections that use the tunnel.
func (f *Forward) waitForReady(ctx context.Context) error {
	addr := fmt.Sprintf("localhost:%d", f.config.LocalPort)
	timeout := time.After(f.config.ReadyTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("timeout waiting for port-forward on %s", addr)
		case <-ticker.C:
		}
	}
}

// Stop kills the tunnel. Safe to call twice or before Start.
func (f *Forward) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	if f.cmd != nil && f.cmd.Process != nil {
		_ = f.cmd.Wait()
		f.cmd = nil
		log.Info().Str("service", f.config.Service).Msg("port-forward stopped")
	}
}

// URL returns the local endpoint of the tunnel.
func (f *Forward) URL() string {
	return fmt.Sprintf("http://localhost:%d", f.config.LocalPort)
}
