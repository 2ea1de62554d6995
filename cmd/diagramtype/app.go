package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/c360studio/diagramtype/config"
	"github.com/c360studio/diagramtype/detect"
	"github.com/c360studio/diagramtype/detect/rules"
	"github.com/c360studio/diagramtype/metrics"
	"github.com/c360studio/diagramtype/service"
	"github.com/c360studio/diagramtype/source"
)

type globalFlags struct {
	configPath string
	logLevel   string
	rulesPath  string
	noBuiltins bool
}

// app holds everything a command needs once configuration is resolved.
type app struct {
	cfg      *config.Config
	registry *detect.Registry
	service  *service.Service
	promReg  *prometheus.Registry
	logger   *slog.Logger
}

func newLogger(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func newApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	logger := newLogger(flags.logLevel, cmd.ErrOrStderr())

	cfg, err := config.NewLoader(logger).Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if flags.noBuiltins {
		cfg.Detection.DisableBuiltins = true
	}
	if flags.rulesPath != "" {
		extra, err := rules.LoadFile(flags.rulesPath)
		if err != nil {
			return nil, err
		}
		cfg.Detection.Rules = append(cfg.Detection.Rules, extra...)
	}

	registry, err := cfg.BuildRegistry(logger)
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(promReg)
	if err != nil {
		return nil, err
	}

	svc := service.New(registry,
		service.WithOptions(cfg.DetectorOptions()),
		service.WithMetrics(collector),
		service.WithLogger(logger))

	return &app{
		cfg:      cfg,
		registry: registry,
		service:  svc,
		promReg:  promReg,
		logger:   logger,
	}, nil
}

// readInput reads the single text argument, or stdin when it is absent or "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return source.Decode(data)
	}
	return source.ReadFile(args[0])
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
