package handlers

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"phdash/internal/config"
	"phdash/internal/pipeline"
	"phdash/internal/store"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// NewVerifyCmd creates the verify command
func NewVerifyCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a generated snapshot for consistency",
		Long: `Re-read a snapshot and check that every label array has one entry per point,
every distance matrix is square, symmetric and zero on the diagonal, and every
projection has one row per point. Exits non-zero if any check fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, dataDir)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Snapshot directory (default from config: data)")

	return cmd
}

func runVerify(cmd *cobra.Command, dataDir string) error {
	if dataDir == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		dataDir = cfg.App.DataDir
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, c := range pipeline.Verify(store.New(dataDir)) {
		if c.OK() {
			fmt.Fprintf(out, "%s %s\n", passStyle.Render("ok  "), c.Name)
			continue
		}
		failed++
		fmt.Fprintf(out, "%s %s: %v\n", failStyle.Render("FAIL"), c.Name, c.Err)
	}

	if failed > 0 {
		return fmt.Errorf("%d snapshot checks failed in %s", failed, dataDir)
	}
	return nil
}
