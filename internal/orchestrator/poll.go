package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// pollInterval separa los intentos de conexión durante la espera.
const pollInterval = 100 * time.Millisecond

// WaitReady sondea url hasta que el servidor responde o vence timeout.
// Cualquier respuesta HTTP cuenta como disponible: aquí solo se mide
// alcanzabilidad, el estado lo juzgan los tests.
func WaitReady(ctx context.Context, url string, timeout time.Duration) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(timeout)

	var lastErr error
	for {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		lastErr = err

		if time.Now().After(deadline) {
			return fmt.Errorf("server at %s not reachable after %s: %w", url, timeout, lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
