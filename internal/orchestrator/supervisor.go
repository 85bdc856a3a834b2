package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrHang indica que el proceso fue matado por silencio prolongado.
var ErrHang = errors.New("process killed after output hang")

// Supervisor ejecuta un comando en su propio process group y vigila su
// salida línea a línea: si no produce nada durante HangTimeout, mata el
// grupo entero (SIGTERM, gracia, SIGKILL). El grupo es clave: el runner
// de browsers deja hijos colgando si solo se mata al padre.
type Supervisor struct {
	HangTimeout time.Duration
	GracePeriod time.Duration
	Env         []string  // entradas extra sobre os.Environ
	Transcript  io.Writer // opcional: copia cruda de la salida
	Log         *logrus.Entry
}

// Run ejecuta command vía sh -c y devuelve su código de salida. Un
// código distinto de cero no es error de Run; ErrHang, la cancelación
// del contexto y los fallos de arranque sí lo son (código -1).
func (s *Supervisor) Run(ctx context.Context, command string) (int, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// un solo pipe para stdout+stderr, como hace el runner real
	pr, pw, err := os.Pipe()
	if err != nil {
		return -1, fmt.Errorf("output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return -1, fmt.Errorf("start %q: %w", command, err)
	}
	pw.Close() // el hijo conserva su copia
	defer pr.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	hang := time.NewTimer(s.HangTimeout)
	defer hang.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				// EOF: el grupo cerró su extremo del pipe
				return s.wait(cmd)
			}
			s.emit(line)
			if !hang.Stop() {
				select {
				case <-hang.C:
				default:
				}
			}
			hang.Reset(s.HangTimeout)

		case <-hang.C:
			s.Log.Errorf("no output for %s, killing process group", s.HangTimeout)
			killGroup(s.Log, cmd.Process.Pid, s.GracePeriod)
			s.drain(lines)
			_, _ = s.wait(cmd)
			return -1, ErrHang

		case <-ctx.Done():
			killGroup(s.Log, cmd.Process.Pid, s.GracePeriod)
			s.drain(lines)
			_, _ = s.wait(cmd)
			return -1, ctx.Err()
		}
	}
}

// drain consume hasta EOF para no filtrar la goroutine lectora.
func (s *Supervisor) drain(lines <-chan string) {
	for range lines {
	}
}

func (s *Supervisor) emit(line string) {
	s.Log.Info(line)
	if s.Transcript != nil {
		fmt.Fprintln(s.Transcript, line)
	}
}

func (s *Supervisor) wait(cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), nil
	}
	return -1, fmt.Errorf("wait: %w", err)
}

// killGroup manda SIGTERM al grupo de pid, espera grace y remata con
// SIGKILL si sigue vivo. También la usa el teardown del servidor.
func killGroup(log *logrus.Entry, pid int, grace time.Duration) {
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		return // ya murió
	}
	log.Warnf("sending SIGTERM to process group %d", pgid)
	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	time.Sleep(grace)

	if syscall.Kill(-pgid, 0) == nil {
		log.Error("process group still alive, sending SIGKILL")
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}
}
