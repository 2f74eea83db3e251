package filerepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"webp-renditions/internal/logging"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPConfig configures the SFTP adapter.
type SFTPConfig struct {
	Addr       string `mapstructure:"addr" yaml:"addr"`
	User       string `mapstructure:"user" yaml:"user"`
	Password   string `mapstructure:"password" yaml:"password"`
	KeyFile    string `mapstructure:"key_file" yaml:"key_file"`
	KnownHosts string `mapstructure:"known_hosts" yaml:"known_hosts"`
	// Root is the remote directory holding one subdirectory per zone.
	Root string `mapstructure:"root" yaml:"root" default:"/srv/images"`
}

// SFTP keeps zones under "<root>/<zone>/" on a remote host.
type SFTP struct {
	ssh    *ssh.Client
	client *sftp.Client
	root   string
}

// NewSFTP dials the server and opens an SFTP session. Close releases both.
func NewSFTP(ctx context.Context, cfg SFTPConfig) (*SFTP, error) {
	if cfg.Addr == "" || cfg.User == "" {
		return nil, errors.New("sftp repository requires addr and user")
	}

	var auths []ssh.AuthMethod
	switch {
	case cfg.KeyFile != "":
		keyBytes, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	case cfg.Password != "":
		auths = append(auths, ssh.Password(cfg.Password))
	default:
		return nil, errors.New("no auth method provided; set password or key_file")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKey = cb
	} else {
		logging.Warn("SFTP host key for %s is not verified; set repository.sftp.known_hosts", cfg.Addr)
	}

	addr := cfg.Addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s: %w", addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auths,
		HostKeyCallback: hostKey,
		Timeout:         10 * time.Second,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("create sftp client: %w", err)
	}

	logging.Info("Connected to SFTP repository %s as %s", addr, cfg.User)
	return &SFTP{ssh: sshClient, client: client, root: path.Clean("/" + cfg.Root)}, nil
}

// Name implements Repository.
func (s *SFTP) Name() string { return "sftp" }

// Close ends the SFTP session and the SSH connection.
func (s *SFTP) Close() error {
	return errors.Join(s.client.Close(), s.ssh.Close())
}

func (s *SFTP) resolve(zone, rel string) (string, error) {
	if err := checkZone(zone); err != nil {
		return "", err
	}
	clean, err := cleanRel(rel)
	if err != nil {
		return "", err
	}
	return path.Join(s.root, zone, clean), nil
}

// Exists implements Repository.
func (s *SFTP) Exists(_ context.Context, zone, rel string) (bool, error) {
	p, err := s.resolve(zone, rel)
	if err != nil {
		return false, err
	}
	if _, err := s.client.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	return true, nil
}

// Store implements Repository. Without overwrite the remote file is opened
// with O_EXCL.
func (s *SFTP) Store(_ context.Context, localPath, zone, rel string, overwrite bool) error {
	dest, err := s.resolve(zone, rel)
	if err != nil {
		return err
	}

	in, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer in.Close()

	if err := s.client.MkdirAll(path.Dir(dest)); err != nil {
		return fmt.Errorf("ensure remote dir %s: %w", path.Dir(dest), err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	out, err := s.client.OpenFile(dest, flags)
	if err != nil {
		// Servers report O_EXCL collisions as a generic failure
		if !overwrite {
			if _, statErr := s.client.Stat(dest); statErr == nil {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, dest)
			}
		}
		return fmt.Errorf("create remote file %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		s.client.Remove(dest)
		return fmt.Errorf("copy to remote file %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close remote file %s: %w", dest, err)
	}
	return nil
}

// LocalCopy implements Repository by downloading to a temp file.
func (s *SFTP) LocalCopy(_ context.Context, zone, rel string) (string, func(), error) {
	p, err := s.resolve(zone, rel)
	if err != nil {
		return "", nil, err
	}
	f, err := s.client.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return "", nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	return downloadTemp(f, path.Ext(rel))
}

// List implements Repository.
func (s *SFTP) List(_ context.Context, zone, dir string) ([]string, error) {
	base, err := s.resolve(zone, "")
	if err != nil {
		return nil, err
	}
	start, err := s.resolve(zone, dir)
	if err != nil {
		return nil, err
	}

	var out []string
	walker := s.client.Walk(start)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("walk %s: %w", start, err)
		}
		if !walker.Stat().Mode().IsRegular() {
			continue
		}
		out = append(out, strings.TrimPrefix(walker.Path(), base+"/"))
	}
	sort.Strings(out)
	return out, nil
}

// Delete implements Repository.
func (s *SFTP) Delete(_ context.Context, zone, rel string) error {
	p, err := s.resolve(zone, rel)
	if err != nil {
		return err
	}
	if err := s.client.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

// Move implements Repository.
func (s *SFTP) Move(_ context.Context, zone, from, to string) error {
	src, err := s.resolve(zone, from)
	if err != nil {
		return err
	}
	dst, err := s.resolve(zone, to)
	if err != nil {
		return err
	}

	if _, err := s.client.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, src)
		}
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if err := s.client.MkdirAll(path.Dir(dst)); err != nil {
		return fmt.Errorf("ensure remote dir %s: %w", path.Dir(dst), err)
	}
	if err := s.client.PosixRename(src, dst); err != nil {
		return fmt.Errorf("rename %s to %s: %w", src, dst, err)
	}
	return nil
}

// CleanDir implements Repository. The zone directories are kept.
func (s *SFTP) CleanDir(_ context.Context, zone, dir string) error {
	p, err := s.resolve(zone, dir)
	if err != nil {
		return err
	}
	_, err = s.removeEmpty(p, path.Join(s.root, zone))
	return err
}

func (s *SFTP) removeEmpty(dir, zoneRoot string) (bool, error) {
	entries, err := s.client.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}

	remaining := len(entries)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		removed, err := s.removeEmpty(path.Join(dir, e.Name()), zoneRoot)
		if err != nil {
			return false, err
		}
		if removed {
			remaining--
		}
	}

	if remaining > 0 || dir == zoneRoot {
		return false, nil
	}
	if err := s.client.RemoveDirectory(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("remove %s: %w", dir, err)
	}
	return true, nil
}
