// File: internal/sshclient/client.go
package sshclient

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/xkilldash9x/lancet-cli/internal/config"
)

// ChannelError wraps a failure of the remote command channel itself. A
// ChannelError is fatal to the current run; other execution errors are not.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string { return fmt.Sprintf("ssh %s: %v", e.Op, e.Err) }
func (e *ChannelError) Unwrap() error { return e.Err }

// readChunkSize matches the shell receive buffer used when draining output.
const readChunkSize = 4096

// bannerSettleTime is how long Connect waits for the initial shell banner
// before considering the session ready.
const bannerSettleTime = 1 * time.Second

// Client is an interactive-shell SSH channel. Connections are opened fresh
// for each probe and each command batch and explicitly closed afterward;
// nothing is pooled.
type Client struct {
	cfg    config.SSHConfig
	logger *zap.Logger

	client  *ssh.Client
	session *ssh.Session
	stdin   interface{ Write([]byte) (int, error) }
	out     <-chan string
}

// New creates an unconnected client for the given channel settings.
func New(cfg config.SSHConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.Named("ssh_client"),
	}
}

// Connect establishes the SSH connection and an interactive shell session.
// All failures are reported as *ChannelError.
func (c *Client) Connect(ctx context.Context) error {
	clientConfig := &ssh.ClientConfig{
		User:            c.cfg.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // Target hosts are lab machines; fingerprints are not pinned.
		Timeout:         c.cfg.ConnectTimeout,
	}

	auth, err := c.authMethods()
	if err != nil {
		return &ChannelError{Op: "connect", Err: err}
	}
	clientConfig.Auth = auth

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &ChannelError{Op: "connect", Err: err}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return &ChannelError{Op: "connect", Err: err}
	}
	c.client = ssh.NewClient(sshConn, chans, reqs)

	session, err := c.client.NewSession()
	if err != nil {
		c.client.Close()
		c.client = nil
		return &ChannelError{Op: "connect", Err: err}
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm", 80, 200, modes); err != nil {
		session.Close()
		c.client.Close()
		c.client = nil
		return &ChannelError{Op: "connect", Err: fmt.Errorf("requesting pty: %w", err)}
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		c.client.Close()
		c.client = nil
		return &ChannelError{Op: "connect", Err: err}
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		c.client.Close()
		c.client = nil
		return &ChannelError{Op: "connect", Err: err}
	}

	if err := session.Shell(); err != nil {
		session.Close()
		c.client.Close()
		c.client = nil
		return &ChannelError{Op: "connect", Err: fmt.Errorf("starting shell: %w", err)}
	}

	c.session = session
	c.stdin = stdin

	out := make(chan string, 64)
	go func() {
		defer close(out)
		buf := make([]byte, readChunkSize)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				out <- string(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()
	c.out = out

	c.drainBanner()
	c.logger.Debug("SSH shell session established", zap.String("addr", addr))
	return nil
}

// Probe verifies the channel is reachable by opening and immediately closing
// a connection.
func (c *Client) Probe(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Close()
}

// Execute runs a command on the interactive shell and collects output until a
// shell-prompt-like character appears with nothing further buffered, or the
// timeout elapses. Partial output accumulated at timeout is returned without
// an error; only faults of the channel itself produce a *ChannelError.
func (c *Client) Execute(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if c.session == nil {
		return "", &ChannelError{Op: "execute", Err: fmt.Errorf("no active shell connection")}
	}

	if _, err := c.stdin.Write([]byte(command + "\n")); err != nil {
		return "", &ChannelError{Op: "execute", Err: err}
	}

	return readUntilPrompt(ctx, c.out, timeout)
}

// Close tears down the shell session and the underlying connection, then
// drains the relay channel until it closes. The relay goroutine may be
// blocked sending a buffered chunk nobody reads anymore; draining lets it
// observe the closed stream and exit.
func (c *Client) Close() error {
	var firstErr error
	if c.session != nil {
		if err := c.session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.session = nil
	}
	if c.client != nil {
		if err := c.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.client = nil
	}
	if c.out != nil {
		for range c.out {
		}
		c.out = nil
	}
	return firstErr
}

func (c *Client) authMethods() ([]ssh.AuthMethod, error) {
	if c.cfg.KeyPath != "" {
		keyBytes, err := os.ReadFile(c.cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return []ssh.AuthMethod{ssh.Password(c.cfg.Password)}, nil
}

// drainBanner discards the login banner and MOTD emitted right after the
// shell opens.
func (c *Client) drainBanner() {
	settle := time.After(bannerSettleTime)
	for {
		select {
		case _, ok := <-c.out:
			if !ok {
				return
			}
		case <-settle:
			return
		}
	}
}

// readUntilPrompt accumulates chunks from out until a prompt-like rune
// arrives with no further chunks buffered, the timeout elapses (partial
// output, nil error), the context is cancelled, or the channel closes
// (*ChannelError).
func readUntilPrompt(ctx context.Context, out <-chan string, timeout time.Duration) (string, error) {
	var sb strings.Builder
	deadline := time.After(timeout)

	for {
		select {
		case chunk, ok := <-out:
			if !ok {
				return sb.String(), &ChannelError{Op: "execute", Err: fmt.Errorf("shell stream closed")}
			}
			sb.WriteString(chunk)
			if containsPromptRune(chunk) && len(out) == 0 {
				return sb.String(), nil
			}
		case <-deadline:
			return sb.String(), nil
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		}
	}
}

// containsPromptRune reports whether the chunk looks like it ends at a shell
// prompt. This is a heuristic, not a protocol guarantee.
func containsPromptRune(chunk string) bool {
	return strings.ContainsAny(chunk, "$#>")
}
