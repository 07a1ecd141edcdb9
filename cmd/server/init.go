package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/prasenjit/go-mockapi/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file and data directory",
	Long: `Creates the default configuration file (config.yaml) and the data
directory used by file storage and generated TLS certificates.

If config.yaml already exists, it will not be overwritten unless --force is used.`,
	RunE: runInit,
}

var (
	initForce bool
	initPath  string
	initAPI   string
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
	initCmd.Flags().StringVarP(&initPath, "path", "p", ".", "Directory to initialize")
	initCmd.Flags().StringVar(&initAPI, "api", "", "API document the config points at")
}

func runInit(cmd *cobra.Command, _ []string) error {
	absPath, err := filepath.Abs(initPath)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	configFile := filepath.Join(absPath, "config.yaml")

	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config.yaml already exists. Use --force to overwrite")
	}

	cfg := config.Default()
	if initAPI != "" {
		cfg.API.File = initAPI
	}
	data, err := defaultConfigYAML(cfg)
	if err != nil {
		return err
	}

	dataDir := filepath.Join(absPath, cfg.Storage.Path)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dataDir, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created directory: %s\n", dataDir)

	if err := os.WriteFile(configFile, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	fmt.Fprintf(out, "Created config file: %s\n\n", configFile)
	fmt.Fprintln(out, "Start the mock server with:")
	fmt.Fprintf(out, "\n  cd %s\n  go-mockapi serve\n\n", absPath)
	return nil
}

// defaultConfigYAML renders cfg with durations in their string form so
// the file reads naturally.
func defaultConfigYAML(cfg *config.Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("generate config: %w", err)
	}
	setScalar(doc.Content[0], cfg.API.Debounce.String(), "api", "debounce")

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("generate config: %w", err)
	}
	header := "# go-mockapi configuration\n# Every key can be overridden with MOCKAPI_<SECTION>_<KEY>.\n\n"
	return append([]byte(header), data...), nil
}

func setScalar(n *yaml.Node, value string, path ...string) {
	for _, key := range path {
		var next *yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == key {
				next = n.Content[i+1]
				break
			}
		}
		if next == nil {
			return
		}
		n = next
	}
	n.Kind = yaml.ScalarNode
	n.Tag = "!!str"
	n.Value = value
}
