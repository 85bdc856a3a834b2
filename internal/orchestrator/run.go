package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"site-e2e/internal/config"
)

// Runner orquesta una corrida completa: lock, servidor bajo prueba,
// espera de disponibilidad, comando de tests con reintentos acotados
// y teardown del subproceso.
type Runner struct {
	Config config.Config
	Log    *logrus.Logger
}

// Run devuelve el código de salida final de la corrida: el del comando
// de tests, o 1 si la orquestación falla antes de poder ejecutarlo
// (lock ocupado, servidor nunca disponible). Los errores de teardown se
// acumulan sobre err sin pisar el código.
func (r *Runner) Run(ctx context.Context) (code int, err error) {
	cfg := r.Config
	log := r.Log.WithField("run_id", uuid.NewString())

	lock := NewLock(cfg.LockDir)
	if lerr := lock.Acquire(); lerr != nil {
		return 1, fmt.Errorf("acquire lock: %w", lerr)
	}
	defer func() { err = multierr.Append(err, lock.Release()) }()

	srv, serr := r.startServer(log)
	if serr != nil {
		return 1, serr
	}
	defer func() { err = multierr.Append(err, r.stopServer(log, srv)) }()

	log.WithField("url", cfg.WebServer.URL).Info("waiting for web server")
	if werr := WaitReady(ctx, cfg.WebServer.URL, cfg.WebServer.ReadyTimeout.Std()); werr != nil {
		return 1, werr
	}
	log.Info("web server ready")

	transcript, terr := r.openTranscript()
	if terr != nil {
		return 1, terr
	}
	if transcript != nil {
		defer func() { err = multierr.Append(err, transcript.Close()) }()
	}

	sup := &Supervisor{
		HangTimeout: cfg.HangTimeout.Std(),
		GracePeriod: cfg.GracePeriod.Std(),
		Env:         r.runnerEnv(),
		Log:         log,
	}
	if transcript != nil {
		sup.Transcript = transcript
	}

	// reintentos acotados: la política de repetición vive aquí, nunca
	// en el servidor de archivos
	attempts := cfg.Retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		alog := log.WithField("attempt", attempt)
		alog.Infof("executing: %s", cfg.Command)

		code, rerr := sup.Run(ctx, cfg.Command)
		switch {
		case rerr == nil && code == 0:
			alog.Info("test run passed")
			return 0, nil
		case errors.Is(rerr, context.Canceled) || errors.Is(rerr, context.DeadlineExceeded):
			return 1, rerr
		case errors.Is(rerr, ErrHang):
			alog.Warn("test run hung, restarting")
		case rerr != nil:
			return 1, rerr
		default:
			alog.Warnf("test run exited with code %d", code)
		}
		if attempt == attempts {
			return max(code, 1), nil
		}
	}
	return 1, nil // unreachable
}

// startServer lanza el servidor bajo prueba en su propio process group
// con la salida volcada al log del orquestador.
func (r *Runner) startServer(log *logrus.Entry) (*exec.Cmd, error) {
	cmd := exec.Command("/bin/sh", "-c", r.Config.WebServer.Command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = log.WriterLevel(logrus.DebugLevel)
	cmd.Stderr = log.WriterLevel(logrus.DebugLevel)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start web server: %w", err)
	}
	log.WithField("pid", cmd.Process.Pid).Info("web server started")
	return cmd, nil
}

// stopServer tumba el grupo del servidor y recoge su estado de salida.
// Terminar por señal es el final normal de una corrida, no un error.
func (r *Runner) stopServer(log *logrus.Entry, cmd *exec.Cmd) error {
	killGroup(log, cmd.Process.Pid, r.Config.GracePeriod.Std())
	err := cmd.Wait()

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return nil
	}
	return err
}

// runnerEnv expone workers/retries/timeout/browsers al runner externo.
// El orquestador no planifica: solo pasa la configuración.
func (r *Runner) runnerEnv() []string {
	cfg := r.Config
	return []string{
		"E2E_WORKERS=" + strconv.Itoa(cfg.Workers),
		"E2E_RETRIES=" + strconv.Itoa(cfg.Retries),
		"E2E_TIMEOUT_MS=" + strconv.FormatInt(cfg.Timeout.Std().Milliseconds(), 10),
		"E2E_BROWSERS=" + strings.Join(cfg.Browsers, ","),
		"E2E_BASE_URL=" + cfg.WebServer.URL,
	}
}

// openTranscript abre el archivo de transcript en modo append y escribe
// la cabecera de corrida, como hacía el watchdog original.
func (r *Runner) openTranscript() (*os.File, error) {
	if r.Config.LogFile == "" {
		return nil, nil
	}
	f, err := os.OpenFile(r.Config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	sep := strings.Repeat("=", 60)
	fmt.Fprintf(f, "\n%s\nRun started: %s\nCommand: %s\n%s\n\n",
		sep, time.Now().Format(time.RFC3339), r.Config.Command, sep)
	return f, nil
}
