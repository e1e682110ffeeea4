package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hpkotak/aiplatform/internal/bridge"
)

var remoteFlag bool

var remoteModels = bridge.RemoteModels

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models of the configured provider",
	Long: `List the models of the configured provider with their capabilities.
With --remote, ask the provider which models it actually serves.`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&remoteFlag, "remote", false, "list the models the provider serves")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := settings()
	if err != nil {
		return err
	}
	bc := bridge.FromConfig(cfg, loadSecrets(), providerFlag)

	if remoteFlag {
		ctx, cancel := context.WithTimeout(commandContext(cmd), 10*time.Second)
		defer cancel()
		names, err := remoteModels(ctx, bc)
		if err != nil {
			return err
		}
		for _, n := range names {
			_, _ = fmt.Fprintln(ioOut, n)
		}
		return nil
	}

	cat, err := bridge.Catalog(bc.Name)
	if err != nil {
		return err
	}
	for _, m := range cat.Models() {
		caps := make([]string, 0, len(m.Capabilities()))
		for _, c := range m.Capabilities() {
			caps = append(caps, c.String())
		}
		marker := " "
		if m.Name() == cfg.Model && bc.Name == cfg.Provider {
			marker = "*"
		}
		_, _ = fmt.Fprintf(ioOut, "%s %-28s %s\n", marker, m.Name(), strings.Join(caps, ", "))
	}
	return nil
}
