// Package receiptstore implements C6's persistence half: reading and
// atomically writing the receipt at /nix/receipt.json, and the
// advisory install lock at /nix/.nix-installer.lock (spec.md §5).
// Grounded on the teacher's timestamped-backup-then-write pattern in
// internal/config/deployer.go, generalized to write-to-temp-then-
// rename since the receipt is rewritten far more often than a config
// deploy and a backup-per-write would accumulate unboundedly.
package receiptstore

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/nixinstall/nix-installer-go/internal/errdefs"
	"github.com/nixinstall/nix-installer-go/internal/plan"
	"golang.org/x/sys/unix"
)

const (
	DefaultReceiptPath = "/nix/receipt.json"
	DefaultLockPath    = "/nix/.nix-installer.lock"
	DefaultBinaryPath  = "/nix/nix-installer"
)

// Store persists Plan state to disk. Receipt persistence is strictly
// serialized behind mu, per spec.md §5: "a completed state transition
// is not observable to the receipt file before the preceding
// transition has been durably written."
type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	if path == "" {
		path = DefaultReceiptPath
	}
	return &Store{path: path}
}

// Write atomically persists p, called by the engine after every state
// transition (spec.md §4.3).
func (s *Store) Write(p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := p.MarshalCanonicalJSON()
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errdefs.NewIOError(dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".receipt-*.json")
	if err != nil {
		return errdefs.NewIOError(s.path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errdefs.NewIOError(s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errdefs.NewIOError(s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errdefs.NewIOError(s.path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return errdefs.NewIOError(s.path, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errdefs.NewIOError(s.path, err)
	}
	return nil
}

// Read loads and validates the receipt at s.path.
func (s *Store) Read() (*plan.Plan, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errdefs.NewIOError(s.path, err)
	}
	return plan.UnmarshalCanonicalJSON(data, s.path)
}

// Exists reports whether a receipt is present at s.path.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Remove deletes the receipt, called on successful uninstall.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errdefs.NewIOError(s.path, err)
	}
	return nil
}

// InstallBinary copies the running binary to DefaultBinaryPath mode
// 0755, per spec.md §6, so a receipt-only host can still `uninstall`
// after the original invocation binary is gone.
func InstallBinary(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errdefs.NewIOError(src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errdefs.NewIOError(dest, err)
	}
	if err := os.WriteFile(dest, data, 0755); err != nil {
		return errdefs.NewIOError(dest, err)
	}
	return nil
}

// Lock is the advisory fcntl/flock file lock at /nix/.nix-installer.lock
// (spec.md §5): "the installer refuses to run when it cannot acquire
// the lock."
type Lock struct {
	path string
	fd   int
}

func NewLock(path string) *Lock {
	if path == "" {
		path = DefaultLockPath
	}
	return &Lock{path: path}
}

// TryAcquire attempts a non-blocking exclusive flock, returning
// errdefs.NewLockHeldError(pid) if another process holds it. The pid
// recorded in the error is best-effort: on Linux it is read from the
// lock file's own contents if a holder wrote one, otherwise 0.
func (l *Lock) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return errdefs.NewIOError(l.path, err)
	}
	fd, err := unix.Open(l.path, unix.O_CREAT|unix.O_RDWR, 0644)
	if err != nil {
		return errdefs.NewIOError(l.path, err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		return errdefs.NewLockHeldError(readHolderPID(l.path))
	}
	l.fd = fd
	_ = unix.Ftruncate(fd, 0)
	_, _ = unix.Write(fd, []byte(strconv.Itoa(os.Getpid())))
	return nil
}

func (l *Lock) Release() error {
	if l.fd == 0 {
		return nil
	}
	if err := unix.Flock(l.fd, unix.LOCK_UN); err != nil {
		return errdefs.NewIOError(l.path, err)
	}
	if err := unix.Close(l.fd); err != nil {
		return errdefs.NewIOError(l.path, err)
	}
	_ = os.Remove(l.path)
	l.fd = 0
	return nil
}

func readHolderPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return pid
}
