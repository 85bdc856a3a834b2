package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"site-e2e/internal/config"
	"site-e2e/internal/orchestrator"
)

func main() {
	log := logrus.New()

	var cfgPath string

	root := &cobra.Command{
		Use:           "e2e",
		Short:         "orquesta corridas de tests de browser contra el build del sitio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "e2e.yaml", "run configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "ejecuta la corrida completa: servidor, espera, tests, teardown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			runner := &orchestrator.Runner{Config: cfg, Log: log}
			code, err := runner.Run(cmd.Context())
			if err != nil {
				log.Errorf("run failed: %v", err)
			}
			os.Exit(code)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "valida la configuración e imprime el plan resuelto sin ejecutar",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
