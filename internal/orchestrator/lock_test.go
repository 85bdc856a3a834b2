package orchestrator

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"gotest.tools/v3/assert"
)

func lockDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "run.lock")
}

func TestLockAcquireRelease(t *testing.T) {
	t.Parallel()
	dir := lockDir(t)
	l := NewLock(dir)

	assert.NilError(t, l.Acquire())

	// el pid registrado es el nuestro
	b, err := os.ReadFile(filepath.Join(dir, "pid"))
	assert.NilError(t, err)
	pid, err := strconv.Atoi(string(b))
	assert.NilError(t, err)
	assert.Equal(t, pid, os.Getpid())

	// segundo intento mientras el dueño vive
	assert.ErrorIs(t, NewLock(dir).Acquire(), ErrLocked)

	assert.NilError(t, l.Release())
	assert.NilError(t, NewLock(dir).Acquire())
}

func TestLockReleaseIdempotent(t *testing.T) {
	t.Parallel()
	l := NewLock(lockDir(t))
	assert.NilError(t, l.Release()) // nunca adquirido
	assert.NilError(t, l.Acquire())
	assert.NilError(t, l.Release())
	assert.NilError(t, l.Release())
}

func TestLockReclaimsStale(t *testing.T) {
	t.Parallel()
	dir := lockDir(t)

	// pid de un proceso que ya terminó y fue cosechado
	probe := exec.Command("true")
	assert.NilError(t, probe.Run())
	deadPID := probe.ProcessState.Pid()

	assert.NilError(t, os.Mkdir(dir, 0o755))
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "pid"),
		[]byte(strconv.Itoa(deadPID)), 0o644))

	assert.NilError(t, NewLock(dir).Acquire())
}

func TestLockReclaimsGarbagePid(t *testing.T) {
	t.Parallel()
	dir := lockDir(t)
	assert.NilError(t, os.Mkdir(dir, 0o755))
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "pid"), []byte("???"), 0o644))

	assert.NilError(t, NewLock(dir).Acquire())
}
