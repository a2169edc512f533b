package debugger

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHAttachConfig describes a remote host already running an adapter
// that is listening on a TCP port only reachable from that host (a
// common `attach` scenario: delve or debugpy started on a deploy
// target). This is additive to the base Transport contract in §4.2,
// used only for attach, never for launch.
type SSHAttachConfig struct {
	Host           string // "user@host:22" style is not accepted; Host is hostname, User below
	User           string
	RemoteAddr     string // host:port as seen from the remote machine, e.g. "127.0.0.1:5678"
	PrivateKeyPath string // if set, used instead of the SSH agent
	KnownHostsPath string // if empty, host key checking is skipped (editor-supplied config is trusted input)
}

// sshAuthMethod resolves to agent-based auth when no private key path
// is given, mirroring internal/core/ssh.GetSSHAgent/LoadPrivateKey.
func sshAuthMethod(cfg SSHAttachConfig) (ssh.AuthMethod, error) {
	if cfg.PrivateKeyPath != "" {
		key, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("dap: reading private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("dap: parsing private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	}

	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, fmt.Errorf("dap: SSH_AUTH_SOCK not set and no private key configured")
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("dap: connecting to ssh agent: %w", err)
	}
	agentClient := agent.NewClient(conn)
	return ssh.PublicKeysCallback(agentClient.Signers), nil
}

// NewSSHTunnelTransport dials cfg.RemoteAddr through an SSH connection
// to cfg.Host instead of a direct net.Dial, reusing the same 100ms
// retry loop and timeout contract as NewTCPTransport. There is no
// child process to spawn or kill here: the adapter is assumed to
// already be running on the remote host.
func NewSSHTunnelTransport(cfg SSHAttachConfig, timeout time.Duration) Transport {
	if timeout <= 0 {
		timeout = DefaultTCPConnectTimeout
	}

	return newProcessTransport("ssh-tcp", func(ctx context.Context) (io.WriteCloser, io.Reader, io.Reader, io.Reader, func() error, error) {
		auth, err := sshAuthMethod(cfg)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}

		hostKeyCallback := ssh.InsecureIgnoreHostKey()
		if cfg.KnownHostsPath != "" {
			hostKeyCallback, err = knownhosts.New(cfg.KnownHostsPath)
			if err != nil {
				return nil, nil, nil, nil, nil, fmt.Errorf("dap: loading known hosts: %w", err)
			}
		}
		client, err := ssh.Dial("tcp", net.JoinHostPort(cfg.Host, "22"), &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            []ssh.AuthMethod{auth},
			HostKeyCallback: hostKeyCallback,
			Timeout:         timeout,
		})
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("dap: dialing ssh host: %w", err)
		}

		conn, err := dialRemoteWithRetry(ctx, client, cfg.RemoteAddr, timeout)
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, nil, nil, err
		}

		kill := func() error {
			_ = conn.Close()
			return client.Close()
		}

		return conn, conn, nil, nil, kill, nil
	})
}

func dialRemoteWithRetry(ctx context.Context, client *ssh.Client, addr string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(tcpConnectRetryInterval)
	defer ticker.Stop()

	for {
		conn, err := client.Dial("tcp", addr)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrTransportTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
