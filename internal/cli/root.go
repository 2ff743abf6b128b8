package cli

import (
	"fmt"

	"github.com/iancoleman/strcase"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Execute runs the openapi2ts CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "openapi2ts",
		Short:         "Generate TypeScript clients from OpenAPI documents",
		Long:          "openapi2ts turns an OpenAPI 3 (or Swagger 2) document into typed TypeScript models and services.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flagErr := func(c *cobra.Command, err error) error {
		return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
	}
	cmd.SetFlagErrorFunc(flagErr)
	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML, JSON or TOML); defaults to "+defaultConfigFile+" when present")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	for _, sub := range []*cobra.Command{newGenerateCmd(), newInitCmd()} {
		sub.SetFlagErrorFunc(flagErr)
		cmd.AddCommand(sub)
	}

	return cmd
}

// normalizeFlagName maps camelCase and snake_case spellings onto the kebab-case flags,
// so --includeTags and --include_tags both mean --include-tags.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strcase.ToKebab(name))
}
