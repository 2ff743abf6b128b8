package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mark3labs/openapi2ts/internal/emitter/tsemitter"
	"github.com/mark3labs/openapi2ts/internal/engine"
	"github.com/mark3labs/openapi2ts/internal/filter"
	"github.com/mark3labs/openapi2ts/internal/logging"
	"github.com/mark3labs/openapi2ts/internal/spec"
)

const (
	defaultConfigFile = "openapi2ts.yaml"
	defaultOutput     = "src/app/api"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input              string   `flag:"input" validate:"required"`
	Output             string   `flag:"output" validate:"required"`
	IncludeTags        []string `flag:"include-tags" validate:"excluded_with=ExcludeTags"`
	ExcludeTags        []string `flag:"exclude-tags"`
	IncludeOperations  []string `flag:"include-operations" validate:"excluded_with=ExcludeOperations"`
	ExcludeOperations  []string `flag:"exclude-operations"`
	IgnoreUnusedModels bool     `flag:"ignore-unused-models"`
	Strict             bool     `flag:"strict"`
	DefaultTag         string   `flag:"default-tag"`
	Validate           bool     `flag:"validate"`
	ConfigPath         string   `flag:"config"`
	DryRun             bool     `flag:"dry-run"`
	Force              bool     `flag:"force"`
	Verbose            bool     `flag:"verbose"`
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Output: defaultOutput, Strict: true, DefaultTag: filter.DefaultTag}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a TypeScript client from an OpenAPI document",
		Long: "Generate TypeScript models, services and a registration module from an OpenAPI document. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  openapi2ts generate --input openapi.yaml --output src/app/api
  openapi2ts --config openapi2ts.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Path or URL to the OpenAPI/Swagger document")
	flags.StringP("output", "o", "", "Output directory (default "+defaultOutput+")")
	flags.StringSlice("include-tags", nil, "Only generate services for these tags")
	flags.StringSlice("exclude-tags", nil, "Skip services for these tags")
	flags.StringSlice("include-operations", nil, "Only generate these operation ids")
	flags.StringSlice("exclude-operations", nil, "Skip these operation ids")
	flags.Bool("ignore-unused-models", false, "Keep every component schema even when no operation uses it")
	flags.Bool("strict", true, "Fail on unsupported constructs instead of skipping them")
	flags.String("default-tag", "", "Service tag for operations without tags (default "+filter.DefaultTag+")")
	flags.Bool("validate", false, "Run structural OpenAPI validation before generating")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Write into a non-empty output directory")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		if st, err := os.Stat(defaultConfigFile); err == nil && st.Mode().IsRegular() {
			configPath = defaultConfigFile
		}
	}
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{
		"input":       &cfg.Input,
		"output":      &cfg.Output,
		"default-tag": &cfg.DefaultTag,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	lists := map[string]*[]string{
		"include-tags":       &cfg.IncludeTags,
		"exclude-tags":       &cfg.ExcludeTags,
		"include-operations": &cfg.IncludeOperations,
		"exclude-operations": &cfg.ExcludeOperations,
	}
	for name, dst := range lists {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*dst = sanitizeList(value)
	}

	bools := map[string]*bool{
		"ignore-unused-models": &cfg.IgnoreUnusedModels,
		"strict":               &cfg.Strict,
		"validate":             &cfg.Validate,
		"dry-run":              &cfg.DryRun,
		"force":                &cfg.Force,
		"verbose":              &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Output = strings.TrimSpace(c.Output)
	if c.Output == "" {
		c.Output = defaultOutput
	}
	c.DefaultTag = strings.TrimSpace(c.DefaultTag)
	if c.DefaultTag == "" {
		c.DefaultTag = filter.DefaultTag
	}
	c.IncludeTags = sanitizeList(c.IncludeTags)
	c.ExcludeTags = sanitizeList(c.ExcludeTags)
	c.IncludeOperations = sanitizeList(c.IncludeOperations)
	c.ExcludeOperations = sanitizeList(c.ExcludeOperations)
}

var configValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(flagName)
	return v
}

func flagName(f reflect.StructField) string {
	if name := f.Tag.Get("flag"); name != "" {
		return name
	}
	return f.Name
}

// validate reports the first rule violation as a usage error phrased in flag names.
func (c *GenerateConfig) validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return newUsageError(fmt.Sprintf("generate: --%s is required (set via flag or config file)", fe.Field()))
	case "excluded_with":
		other := fe.Param()
		if f, ok := reflect.TypeOf(*c).FieldByName(other); ok {
			other = flagName(f)
		}
		return specUsageError(spec.Errorf(spec.ConfigurationError, "--%s and --%s are mutually exclusive", fe.Field(), other))
	default:
		return newUsageError(fmt.Sprintf("generate: invalid --%s (%s)", fe.Field(), fe.Tag()))
	}
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	log := logging.New(cfg.Verbose)
	defer func() { _ = log.Sync() }()

	doc, err := spec.Load(ctx, cfg.Input, spec.WithValidation(cfg.Validate))
	if err != nil {
		return specUsageError(err)
	}

	model, err := engine.Generate(ctx, doc, engine.Config{
		Config: filter.Config{
			IncludeTags:        cfg.IncludeTags,
			ExcludeTags:        cfg.ExcludeTags,
			IncludeOperations:  cfg.IncludeOperations,
			ExcludeOperations:  cfg.ExcludeOperations,
			DefaultTag:         cfg.DefaultTag,
			IgnoreUnusedModels: cfg.IgnoreUnusedModels,
		},
		Strict: cfg.Strict,
	}, engine.WithLogger(log))
	if err != nil {
		return specUsageError(err)
	}

	absOut := cfg.Output
	if ap, err := filepath.Abs(cfg.Output); err == nil {
		absOut = ap
	}
	res, err := tsemitter.Emit(ctx, model, tsemitter.Options{
		OutDir: cfg.Output,
		Force:  cfg.Force,
		DryRun: cfg.DryRun,
		Logger: log,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}
	if cfg.DryRun {
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(res.OutDir, len(res.Planned), paths)
	}
	return nil
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	if errors.Is(err, tsemitter.ErrOutputNotEmpty) || errors.Is(err, os.ErrPermission) {
		return errors.WithHint(
			newUsageError(fmt.Sprintf("output error for %s: %v", outDir, err)),
			"choose a different --output or use --force when appropriate",
		)
	}
	return err
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// applyGenerateConfigFromFile reads path with viper. Keys are matched after
// normalizeKey, so includeTags, include-tags and include_tags are equivalent.
func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
	default:
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	for key, value := range v.AllSettings() {
		var err error
		switch normalizeKey(key) {
		case "input":
			cfg.Input, err = valueAsString(value)
		case "output":
			cfg.Output, err = valueAsString(value)
		case "includetags":
			cfg.IncludeTags, err = valueAsStringSlice(value)
		case "excludetags":
			cfg.ExcludeTags, err = valueAsStringSlice(value)
		case "includeoperations":
			cfg.IncludeOperations, err = valueAsStringSlice(value)
		case "excludeoperations":
			cfg.ExcludeOperations, err = valueAsStringSlice(value)
		case "ignoreunusedmodels":
			cfg.IgnoreUnusedModels, err = valueAsBool(value)
		case "strict":
			cfg.Strict, err = valueAsBool(value)
		case "defaulttag":
			cfg.DefaultTag, err = valueAsString(value)
		case "validate":
			cfg.Validate, err = valueAsBool(value)
		case "dryrun":
			cfg.DryRun, err = valueAsBool(value)
		case "force":
			cfg.Force, err = valueAsBool(value)
		case "verbose":
			cfg.Verbose, err = valueAsBool(value)
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		if err != nil {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", errors.Newf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return sanitizeList(strings.Split(val, ",")), nil
	case []string:
		return sanitizeList(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", idx)
			}
			items = append(items, str)
		}
		return sanitizeList(items), nil
	default:
		return nil, errors.Newf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, errors.Newf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, errors.Newf("expected boolean, got %T", v)
	}
}
