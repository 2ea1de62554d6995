package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/diagramtype/detect"
	"github.com/c360studio/diagramtype/metrics"
	detectresponder "github.com/c360studio/diagramtype/processor/detect-responder"
	detectwatcher "github.com/c360studio/diagramtype/processor/detect-watcher"
	"github.com/c360studio/diagramtype/service"
	"github.com/c360studio/diagramtype/source"
)

func detectCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "detect [path|glob|-]...",
		Short: "Classify diagram text from stdin or files",
		Long: `Classify diagram text.

With no arguments, or "-", the whole of stdin is one diagram. Otherwise each
argument is a file, a directory (walked recursively) or a glob such as
docs/**/*.md. Markdown and HTML files contribute one diagram per mermaid
block.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
				text, err := readInput(cmd, nil)
				if err != nil {
					return err
				}
				res, err := a.service.Detect(text, nil)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", res.Key, res.Locator)
				return nil
			}

			paths, err := source.ResolveFiles(args, a.cfg.Sources)
			if err != nil {
				return err
			}

			all := make([]service.FileResult, 0, len(paths))
			for _, path := range paths {
				results, err := a.service.DetectFile(path)
				if err != nil {
					all = append(all, service.FileResult{Path: path, Error: err.Error()})
					continue
				}
				all = append(all, results...)
			}

			failed := 0
			for _, r := range all {
				if r.Error != "" {
					failed++
				}
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), all); err != nil {
					return err
				}
			} else {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, r := range all {
					loc := r.Path
					if r.Line > 0 {
						loc = fmt.Sprintf("%s:%d", r.Path, r.Line)
					}
					if r.Error != "" {
						fmt.Fprintf(w, "%s\terror\t%s\n", loc, r.Error)
						continue
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", loc, r.Key, r.Locator)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d diagrams failed", failed, len(all))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [file|-]",
		Short: "Print text with directives and comments stripped",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), detect.Normalize(text))
			return err
		},
	}
}

func listCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered detectors in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, key := range a.registry.Keys() {
				locator, _ := a.registry.LocatorFor(key)
				fmt.Fprintf(w, "%s\t%s\n", key, locator)
			}
			return w.Flush()
		},
	}
}

func locateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <key>",
		Short: "Print the locator registered for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			locator, ok := a.registry.LocatorFor(args[0])
			if !ok {
				return fmt.Errorf("no detector registered for %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), locator)
			return nil
		},
	}
}

func explainCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "explain [file|-]",
		Short: "Show every detector verdict for a diagram",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			trace := a.registry.Explain(text, a.cfg.DetectorOptions())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, v := range trace.Verdicts {
				verdict := "-"
				switch {
				case v.Err != nil:
					verdict = "error: " + v.Err.Error()
				case v.Matched:
					verdict = "match"
				}
				fmt.Fprintf(w, "%s\t%s\n", v.Key, verdict)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if trace.Err != nil {
				return trace.Err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "=> %s\n", trace.Key)
			return nil
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
}

func watchCmd(flags *globalFlags) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Reclassify diagram files as they change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			if debounce <= 0 {
				debounce = a.cfg.Watch.GetDebounceDelay()
			}

			w, err := detectwatcher.New(root, a.cfg.Sources, debounce, a.service, a.logger)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			if err := w.Start(ctx); err != nil {
				_ = w.Stop()
				return fmt.Errorf("start watcher: %w", err)
			}
			defer w.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-w.Events():
					if !ok {
						return nil
					}
					if err := writeJSON(cmd.OutOrStdout(), event); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Debounce delay (defaults to watch.debounce_delay)")
	return cmd
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		natsURL     string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer classification requests over NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			if natsURL == "" {
				natsURL = a.cfg.NATS.URL
			}
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = a.cfg.Metrics.Addr
			}

			nc, err := detectresponder.Connect(natsURL, appName)
			if err != nil {
				return err
			}
			defer nc.Close()

			responder := detectresponder.New(a.service, a.logger)
			sub, err := responder.Subscribe(nc, a.cfg.NATS.Subject, a.cfg.NATS.Queue)
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			var srv *http.Server
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler(a.promReg))
				srv = &http.Server{
					Addr:              metricsAddr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("Metrics server failed", "addr", metricsAddr, "error", err)
						cancel()
					}
				}()
				a.logger.Info("Metrics server listening", "addr", metricsAddr)
			}

			// Block until shutdown signal
			<-ctx.Done()
			a.logger.Info("Received shutdown signal")

			if srv != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Warn("Metrics server shutdown", "error", err)
				}
			}
			return nc.Drain()
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (defaults to nats.url)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics listen address (defaults to metrics.addr, empty disables)")
	return cmd
}

func requestCmd(flags *globalFlags) *cobra.Command {
	var (
		natsURL string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "request [file|-]",
		Short: "Classify a diagram through a running responder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			if natsURL == "" {
				natsURL = a.cfg.NATS.URL
			}
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			nc, err := detectresponder.Connect(natsURL, appName+"-request")
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx, cancel := context.WithTimeout(commandContext(cmd), timeout)
			defer cancel()

			resp, err := detectresponder.SendRequest(ctx, nc, a.cfg.NATS.Subject, detectresponder.Request{
				Text:   text,
				Config: a.cfg.Detection.Options,
			})
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if resp.Error != "" {
				return errors.New(resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (defaults to nats.url)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Reply timeout")
	return cmd
}
