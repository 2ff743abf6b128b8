package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mark3labs/openapi2ts/internal/emitter/tsemitter"
	"github.com/mark3labs/openapi2ts/internal/logging"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample openapi2ts configuration file",
		Long:  "Scaffold a commented openapi2ts configuration file that documents available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			return initRunner(cmd.Context(), &InitConfig{OutputPath: out, Force: force, Verbose: verbose})
		},
	}

	cmd.Flags().String("out", defaultConfigFile, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx
	log := logging.New(cfg.Verbose)
	defer func() { _ = log.Sync() }()

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultConfigFile
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return newUsageError(fmt.Sprintf("init: resolve output path: %v", err))
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"
	if err := tsemitter.WriteFileAtomic(filepath.Dir(absPath), filepath.Base(absPath), []byte(content)); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot write %s: %v\nHint: choose a different --out or check directory permissions.", absPath, err))
	}
	log.Debug("sample config written", zap.String("path", absPath), zap.Int("bytes", len(content)))
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# openapi2ts configuration (YAML; JSON and TOML files work too)
# Keys may be written camelCase, kebab-case or snake_case.
# Command-line flags override config values.

# Path or URL to the OpenAPI 3 or Swagger 2 document (required).
# input: ./openapi.yaml

# Output directory for the generated client.
# output: src/app/api

# Only generate services for these tags. Cannot be combined with excludeTags.
# includeTags: [pets, store]

# Skip services for these tags.
# excludeTags: [internal]

# Only generate these operation ids. Cannot be combined with excludeOperations.
# includeOperations: [listPets]

# Skip these operation ids.
# excludeOperations: [deletePet]

# Keep every component schema, even those no generated operation uses.
# ignoreUnusedModels: false

# Fail on unsupported constructs (per-operation servers, callbacks, cookie parameters).
# When false they are skipped with a warning.
# strict: true

# Service tag for operations without tags.
# defaultTag: Api

# Run structural OpenAPI validation before generating.
# validate: false

# Preview planned outputs without writing files.
# dryRun: false

# Write into a non-empty output directory.
# force: false

# Enable verbose logging.
# verbose: false
`
