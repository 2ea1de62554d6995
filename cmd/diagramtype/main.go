// Package main provides the diagramtype binary entry point.
// Diagramtype classifies Mermaid diagram text into a diagram category and
// resolves the grammar locator registered for it.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "diagramtype"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Mermaid diagram type detection",
		Long: `Diagramtype decides which diagram category a piece of Mermaid text
belongs to and which grammar locator is registered for that category.

Detection strips %%{...}%% directives and %% comments, then asks each
registered detector in order. The first match wins; text nothing matches
is a flowchart.

Detectors come from the built-in Mermaid set plus pattern rules loaded
from diagramtype.yaml or --rules.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.rulesPath, "rules", "", "Additional rule file (YAML)")
	pf.BoolVar(&flags.noBuiltins, "no-builtins", false, "Do not register the built-in Mermaid detectors")

	cmd.AddCommand(
		detectCmd(flags),
		normalizeCmd(),
		listCmd(flags),
		locateCmd(flags),
		explainCmd(flags),
		watchCmd(flags),
		serveCmd(flags),
		requestCmd(flags),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}
