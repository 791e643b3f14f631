// Package sshexec runs single commands over an authenticated SSH session.
// One executor is owned by exactly one troubleshooting session for the life
// of the connection; it is never pooled or shared.
package sshexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

var (
	// ErrAuth means the host rejected our credentials.
	ErrAuth = errors.New("ssh authentication failed")
	// ErrConnect means the host could not be reached at all.
	ErrConnect = errors.New("ssh connection failed")
	// ErrTimeout means a command exceeded its execution timeout.
	ErrTimeout = errors.New("ssh command timed out")
	// ErrDisconnected means the connection dropped mid-session.
	ErrDisconnected = errors.New("ssh connection lost")
)

// HostConfig describes the target machine and how to authenticate.
type HostConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	KeyPath        string
	ConnectTimeout time.Duration
}

// Addr returns the dialable host:port.
func (c HostConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// Validate checks the descriptor before any dialing happens.
func (c HostConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("target host is required")
	}
	if c.User == "" {
		return fmt.Errorf("ssh user is required")
	}
	if c.Password == "" && c.KeyPath == "" {
		return fmt.Errorf("either a password or a private key path is required")
	}
	return nil
}

// Result is the outcome of one executed command. A non-zero exit code is a
// completed execution, not a transport error.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor holds one live SSH connection.
type Executor struct {
	cfg    HostConfig
	client *ssh.Client
}

// Connect dials and authenticates. Errors wrap ErrAuth or ErrConnect.
func Connect(cfg HostConfig) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: auth,
		// The original tooling trusted on first use; host key pinning is a
		// deployment concern layered on top.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	client, err := ssh.Dial("tcp", cfg.Addr(), clientCfg)
	if err != nil {
		return nil, classifyDialError(err)
	}

	log.Info().Str("addr", cfg.Addr()).Str("user", cfg.User).Msg("SSH connection established")
	return &Executor{cfg: cfg, client: client}, nil
}

// Run executes one command with a bounded timeout. The call blocks until the
// command finishes, the timeout fires, or ctx is cancelled.
func (e *Executor) Run(ctx context.Context, command string, timeout time.Duration) (Result, error) {
	if e.client == nil {
		return Result{}, ErrDisconnected
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	session, err := e.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(command); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return Result{}, ctx.Err()

	case <-timer.C:
		session.Signal(ssh.SIGKILL)
		return Result{}, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, command)

	case err := <-done:
		res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
		if err == nil {
			return res, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		return res, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
}

// Reconnect drops the current connection and dials again. The orchestrator
// allows exactly one reconnect per disconnect before failing the session.
func (e *Executor) Reconnect() error {
	e.Close()
	fresh, err := Connect(e.cfg)
	if err != nil {
		return err
	}
	e.client = fresh.client
	return nil
}

// Close tears down the connection. Safe to call more than once.
func (e *Executor) Close() error {
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	if err != nil {
		log.Debug().Err(err).Msg("SSH close returned an error")
	}
	return err
}

func authMethods(cfg HostConfig) ([]ssh.AuthMethod, error) {
	if cfg.KeyPath != "" {
		keyData, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key %s: %w", cfg.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse private key %s: %w", cfg.KeyPath, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return []ssh.AuthMethod{ssh.Password(cfg.Password)}, nil
}

// classifyDialError separates credential rejection from unreachability.
func classifyDialError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "no supported methods remain") {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: connect timeout: %v", ErrConnect, err)
	}
	return fmt.Errorf("%w: %v", ErrConnect, err)
}
