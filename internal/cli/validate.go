package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marensys/toolgate/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Load the configuration file, apply defaults, and report validation errors.`,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Printf("Configuration OK (%s)\n", loader.GetConfigPath())
	fmt.Printf("  tools activated: %d\n", len(cfg.Tools.Enabled))
	fmt.Printf("  max iterations:  %d\n", cfg.Tools.MaxIterations)
	fmt.Printf("  tool timeout:    %s\n", cfg.Tools.DefaultTimeout())
	return nil
}
