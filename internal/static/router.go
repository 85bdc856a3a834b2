package static

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registra /healthz (la URL que sondea el orquestador para
// detectar que el servidor ya escucha) y delega todo lo demás al
// handler de archivos.
//
// SkipClean evita que mux normalice y redirija rutas con "..": la ruta
// cruda debe llegar a resolve para que el chequeo de confinamiento
// responda 403 en vez de un 301 sorpresa.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.SkipClean(true)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok")
	})
	r.PathPrefix("/").Handler(h)
	return r
}
