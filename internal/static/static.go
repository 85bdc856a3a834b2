package static

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// contentTypes mapea extensión -> MIME type. Inmutable tras el arranque;
// se consulta en modo lectura en cada petición.
var contentTypes = map[string]string{
	".html":  "text/html",
	".css":   "text/css",
	".js":    "application/javascript",
	".json":  "application/json",
	".csv":   "text/csv",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// fallbackType se usa para extensiones fuera de la tabla.
const fallbackType = "application/octet-stream"

// ContentType devuelve el MIME type asociado a la extensión de name.
func ContentType(name string) string {
	if t, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return fallbackType
}

// errEscape marca rutas cuyo candidato resuelto queda fuera de root.
var errEscape = errors.New("path escapes root directory")

// Handler sirve archivos bajo un directorio raíz fijo.
// No guarda estado entre peticiones: cada GET es independiente y de
// solo lectura sobre el filesystem.
type Handler struct {
	root  string // absoluto y limpio
	index string // archivo servido cuando la ruta es "/"
	log   *logrus.Logger
}

// New construye un Handler sobre root. El índice se sirve en "/".
func New(root, index string, log *logrus.Logger) (*Handler, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{root: filepath.Clean(abs), index: index, log: log}, nil
}

// resolve convierte la ruta de la URL en una ruta absoluta bajo root.
// Join limpia el candidato antes del chequeo con Rel: un prefijo textual
// a secas se puede saltar con formas codificadas o específicas de la
// plataforma, así que la comparación se hace sobre la forma canónica.
func (h *Handler) resolve(urlPath string) (string, error) {
	if urlPath == "" || urlPath == "/" {
		urlPath = h.index
	}
	candidate := filepath.Join(h.root, filepath.FromSlash(urlPath))
	rel, err := filepath.Rel(h.root, candidate)
	if err != nil {
		return "", errEscape
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errEscape
	}
	return candidate, nil
}

// ServeHTTP implementa el algoritmo por petición:
//
//	403 "Forbidden"  -> el candidato sale de root
//	404 "Not Found"  -> no hay archivo regular en el candidato
//	200              -> bytes del archivo + Content-Type de la tabla
//	                    + Cache-Control: no-cache (los tests deben ver
//	                    siempre el build más fresco)
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolve(r.URL.Path)
	if err != nil {
		h.log.WithField("path", r.URL.Path).Warn("request escapes root")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, "Forbidden")
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "Not Found")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// el archivo desapareció entre Stat y ReadFile
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "Not Found")
		return
	}

	w.Header().Set("Content-Type", ContentType(path))
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

// CheckBuild verifica la precondición de arranque: el índice debe existir
// bajo root antes de abrir el puerto. Sin reintentos ni recuperación; el
// operador debe generar el build y volver a lanzar.
func CheckBuild(root, index string) error {
	p := filepath.Join(root, index)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s not found: run the site build before serving", p)
		}
		return fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected the built index file", p)
	}
	return nil
}
