package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked indica que otra corrida viva tiene el lock.
var ErrLocked = errors.New("another run holds the lock")

// Lock evita corridas solapadas. Usa mkdir como primitiva atómica
// (POSIX) y deja el pid del dueño dentro para poder detectar locks
// huérfanos de procesos muertos.
type Lock struct {
	dir string
}

func NewLock(dir string) *Lock { return &Lock{dir: dir} }

func (l *Lock) pidPath() string { return filepath.Join(l.dir, "pid") }

// Acquire toma el lock. Si el dueño registrado ya no existe, el lock se
// considera huérfano, se limpia y se reintenta una vez.
func (l *Lock) Acquire() error {
	err := os.Mkdir(l.dir, 0o755)
	if err == nil {
		return os.WriteFile(l.pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
	}
	if !os.IsExist(err) {
		return fmt.Errorf("create lock dir: %w", err)
	}

	if pid, perr := l.ownerPID(); perr == nil && processAlive(pid) {
		return ErrLocked
	}
	// dueño muerto o pid ilegible: lock huérfano
	if rerr := l.Release(); rerr != nil {
		return fmt.Errorf("reclaim stale lock: %w", rerr)
	}
	if err := os.Mkdir(l.dir, 0o755); err != nil {
		if os.IsExist(err) {
			return ErrLocked // alguien se nos adelantó
		}
		return fmt.Errorf("create lock dir: %w", err)
	}
	return os.WriteFile(l.pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// Release borra el pid y el directorio. Es idempotente.
func (l *Lock) Release() error {
	if err := os.Remove(l.pidPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock pid: %w", err)
	}
	if err := os.Remove(l.dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock dir: %w", err)
	}
	return nil
}

func (l *Lock) ownerPID() (int, error) {
	b, err := os.ReadFile(l.pidPath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

// processAlive comprueba existencia con señal 0; EPERM también cuenta
// como vivo (existe pero no es nuestro).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
