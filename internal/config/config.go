package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration envuelve time.Duration para aceptar la forma "30s"/"15m"
// en YAML, que es como se escriben los timeouts en el archivo de corrida.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std devuelve el valor como time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// WebServer describe el servidor bajo prueba: el orquestador lo arranca
// como subproceso y sondea URL hasta que responde.
type WebServer struct {
	Command      string   `yaml:"command"`
	URL          string   `yaml:"url"`
	ReadyTimeout Duration `yaml:"ready_timeout"`
}

// Config es la configuración declarativa de una corrida e2e.
// Workers, Timeout y Browsers se pasan tal cual al runner externo
// (vía entorno); aquí no se planifica ni se paraleliza nada.
type Config struct {
	Command     string    `yaml:"command"`
	Workers     int       `yaml:"workers"`
	Retries     int       `yaml:"retries"`
	Timeout     Duration  `yaml:"timeout"`
	Browsers    []string  `yaml:"browsers"`
	WebServer   WebServer `yaml:"web_server"`
	HangTimeout Duration  `yaml:"hang_timeout"`
	GracePeriod Duration  `yaml:"grace_period"`
	LockDir     string    `yaml:"lock_dir"`
	LogFile     string    `yaml:"log_file"`
}

// Default replica los valores del watchdog original: 15 minutos de
// silencio máximo, 3 reintentos, 15 segundos de gracia antes de SIGKILL.
func Default() Config {
	return Config{
		Command:  "npx playwright test",
		Workers:  1,
		Retries:  3,
		Timeout:  Duration(30 * time.Second),
		Browsers: []string{"chromium"},
		WebServer: WebServer{
			Command:      "siteserver",
			URL:          "http://localhost:3000/healthz",
			ReadyTimeout: Duration(30 * time.Second),
		},
		HangTimeout: Duration(15 * time.Minute),
		GracePeriod: Duration(15 * time.Second),
		LockDir:     "/tmp/site-e2e.lock",
	}
}

// Load lee un archivo YAML sobre los defaults y valida el resultado.
// Campos desconocidos se rechazan para detectar typos en CI.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Command == "":
		return fmt.Errorf("command must not be empty")
	case c.WebServer.Command == "":
		return fmt.Errorf("web_server.command must not be empty")
	case c.WebServer.URL == "":
		return fmt.Errorf("web_server.url must not be empty")
	case c.Workers <= 0:
		return fmt.Errorf("workers must be positive")
	case c.Retries < 0:
		return fmt.Errorf("retries must not be negative")
	case c.WebServer.ReadyTimeout <= 0:
		return fmt.Errorf("web_server.ready_timeout must be positive")
	case c.HangTimeout <= 0:
		return fmt.Errorf("hang_timeout must be positive")
	case c.GracePeriod <= 0:
		return fmt.Errorf("grace_period must be positive")
	case c.LockDir == "":
		return fmt.Errorf("lock_dir must not be empty")
	}
	return nil
}
