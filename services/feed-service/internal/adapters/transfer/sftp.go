package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Options параметры SFTP-клиента
type Options struct {
	ConnectTimeout time.Duration
	// KnownHostsFile путь к known_hosts; если пуст, ключ сервера не проверяется
	KnownHostsFile string
}

// SFTPClient открывает SFTP-сессии по паролю
type SFTPClient struct {
	opts   Options
	logger interfaces.LoggerPort
}

// NewSFTPClient создает клиента
func NewSFTPClient(opts Options, logger interfaces.LoggerPort) *SFTPClient {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	return &SFTPClient{opts: opts, logger: logger}
}

func (c *SFTPClient) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.opts.KnownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(c.opts.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}
	return cb, nil
}

// Connect устанавливает SSH-соединение и открывает SFTP-подсистему
func (c *SFTPClient) Connect(ctx context.Context, creds interfaces.TransferCredentials) (interfaces.TransferSession, error) {
	hostKeys, err := c.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port))
	config := &ssh.ClientConfig{
		User:            creds.User,
		Auth:            []ssh.AuthMethod{ssh.Password(creds.Password)},
		HostKeyCallback: hostKeys,
		Timeout:         c.opts.ConnectTimeout,
	}

	dialer := net.Dialer{Timeout: c.opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	// рукопожатие SSH и запуск подсистемы ограничены ConnectTimeout и контекстом
	if err := conn.SetDeadline(time.Now().Add(c.opts.ConnectTimeout)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set deadline for %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	client, sftpClient, err := handshake(conn, addr, config)
	if !stop() {
		if err == nil {
			_ = sftpClient.Close()
			_ = client.Close()
		}
		return nil, fmt.Errorf("connect to %s: %w", addr, ctx.Err())
	}
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = sftpClient.Close()
		_ = client.Close()
		return nil, fmt.Errorf("failed to reset deadline for %s: %w", addr, err)
	}

	c.logger.DebugWithContext(ctx, "SFTP-соединение установлено", interfaces.Field("addr", addr))
	return &session{ssh: client, sftp: sftpClient}, nil
}

func handshake(conn net.Conn, addr string, config *ssh.ClientConfig) (*ssh.Client, *sftp.Client, error) {
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return nil, nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to start sftp subsystem: %w", err)
	}
	return client, sftpClient, nil
}

type session struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

func (s *session) Remove(name string) error {
	err := s.sftp.Remove(name)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	var status *sftp.StatusError
	if errors.As(err, &status) && status.FxCode() == sftp.ErrSSHFxNoSuchFile {
		return nil
	}
	return fmt.Errorf("failed to remove %s: %w", name, err)
}

func (s *session) Put(ctx context.Context, r io.Reader, name string) error {
	f, err := s.sftp.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", name, err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// закрытие соединения прерывает зависшую запись
			_ = s.ssh.Close()
		case <-done:
		}
	}()
	defer close(done)

	if _, err := f.ReadFrom(r); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write remote file %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close remote file %s: %w", name, err)
	}
	return nil
}

func (s *session) Close() error {
	sftpErr := s.sftp.Close()
	sshErr := s.ssh.Close()
	if sftpErr != nil && !errors.Is(sftpErr, io.EOF) {
		return sftpErr
	}
	if sshErr != nil && !errors.Is(sshErr, net.ErrClosed) {
		return sshErr
	}
	return nil
}
