package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marensys/toolgate/internal/config"
	"github.com/marensys/toolgate/pkg/builtins"
	"github.com/marensys/toolgate/pkg/toolexec"
)

var schemaProvider string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tool catalog",
	Long:  `Inspect the builtin tool catalog and the activations in the current configuration.`,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List activated tools",
	Long:  `List the tools activated by the configuration, resolved against the builtin catalog.`,
	RunE:  runToolsList,
}

var toolsSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print tools in a provider wire format",
	Long:  `Print the activated tools rendered in a provider wire format (openai, openrouter, gemini).`,
	RunE:  runToolsSchema,
}

func init() {
	toolsSchemaCmd.Flags().StringVar(&schemaProvider, "provider", toolexec.ProviderOpenAI, "provider format (openai, openrouter, gemini)")
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsSchemaCmd)
	rootCmd.AddCommand(toolsCmd)
}

func loadRegistry() (*toolexec.Registry, []config.ToolActivation, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	manifest, err := builtins.NewManifest()
	if err != nil {
		return nil, nil, err
	}

	registry := toolexec.NewRegistry()
	for _, entry := range cfg.Tools.Enabled {
		def, ok := manifest.Get(entry.Name)
		if !ok {
			fmt.Printf("Warning: unknown tool %q in configuration, skipping\n", entry.Name)
			continue
		}
		if entry.Description != "" {
			def.Description = entry.Description
		}
		if err := registry.Register(def); err != nil {
			fmt.Printf("Warning: failed to register %q: %v\n", entry.Name, err)
		}
	}

	return registry, cfg.Tools.Enabled, nil
}

func runToolsList(cmd *cobra.Command, args []string) error {
	registry, activations, err := loadRegistry()
	if err != nil {
		return err
	}

	if registry.Len() == 0 {
		fmt.Println("No tools activated. Add entries under tools.enabled in the configuration.")
		return nil
	}

	fmt.Printf("Activated tools (%d of %d configured):\n", registry.Len(), len(activations))
	for _, def := range registry.List() {
		fmt.Printf("  %-16s %-8s %s\n", def.Name, def.Kind, def.Description)
	}
	return nil
}

func runToolsSchema(cmd *cobra.Command, args []string) error {
	registry, _, err := loadRegistry()
	if err != nil {
		return err
	}

	var allowed []string
	if len(args) > 0 {
		allowed = args
	}

	formatted, err := registry.ToProviderFormat(schemaProvider, allowed)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(formatted, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
