// Package config loads the layered run configuration: defaults, an optional
// config file, PACKTRAN_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/valpere/packtran/internal/chunker"
	"github.com/valpere/packtran/internal/glossary"
	"github.com/valpere/packtran/internal/output"
	"github.com/valpere/packtran/internal/translator"
)

// EnvPrefix prefixes every environment variable the configuration reads.
const EnvPrefix = "PACKTRAN"

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Modpack      string `mapstructure:"modpack"`
	Output       string `mapstructure:"output"`
	SourceLocale string `mapstructure:"source"`
	TargetLocale string `mapstructure:"target"`
	Jars         bool   `mapstructure:"jars"`

	DB         string   `mapstructure:"db"`
	NoCache    bool     `mapstructure:"no_cache"`
	VanillaDir string   `mapstructure:"vanilla_dir"`
	Glossaries []string `mapstructure:"glossaries"`

	GenerateGlossary bool `mapstructure:"generate_glossary"`
	Review           bool `mapstructure:"review"`
	VerifyLanguage   bool `mapstructure:"verify_language"`

	BatchSize     int `mapstructure:"batch_size"`
	MaxBatchChars int `mapstructure:"max_batch_chars"`
	Concurrency   int `mapstructure:"concurrency"`
	MaxRetries    int `mapstructure:"max_retries"`
	GlossaryTerms int `mapstructure:"glossary_terms"`
	GlossaryChars int `mapstructure:"glossary_chars"`

	Zip        bool   `mapstructure:"zip"`
	PackName   string `mapstructure:"pack_name"`
	PackFormat int    `mapstructure:"pack_format"`

	LLM translator.Config `mapstructure:"llm"`
	Log Log               `mapstructure:"log"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	data := filepath.Join(home, ".packtran")

	v.SetDefault("modpack", "")
	v.SetDefault("output", "")
	v.SetDefault("source", "en_us")
	v.SetDefault("target", "ko_kr")
	v.SetDefault("jars", true)
	v.SetDefault("db", filepath.Join(data, "packtran.db"))
	v.SetDefault("vanilla_dir", filepath.Join(data, "vanilla"))
	v.SetDefault("generate_glossary", true)

	v.SetDefault("batch_size", chunker.DefaultMaxUnits)
	v.SetDefault("max_batch_chars", chunker.DefaultMaxChars)
	v.SetDefault("concurrency", 15)
	v.SetDefault("max_retries", 3)
	v.SetDefault("glossary_terms", glossary.DefaultBudget.MaxTerms)
	v.SetDefault("glossary_chars", glossary.DefaultBudget.MaxChars)

	v.SetDefault("pack_name", output.DefaultPackName)
	v.SetDefault("pack_format", output.DefaultPackFormat)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.credentials", "")
	v.SetDefault("llm.rpm", 0)
	v.SetDefault("llm.tpm", 0)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.timeout", 120*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Init wires v to the environment and reads the config file. An explicit
// file must exist; without one, packtran.yaml in the working directory and
// .packtran.yaml in the home directory are tried.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", file, err)
		}
		return nil
	}

	v.SetConfigName("packtran")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigName(".packtran")
		v.AddConfigPath(home)
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf)
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	c.SourceLocale = strings.ToLower(c.SourceLocale)
	c.TargetLocale = strings.ToLower(c.TargetLocale)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks locales and numeric bounds. Paths are checked separately
// by ValidatePaths since not every command needs them.
func (c *Config) Validate() error {
	var errs []error
	for _, l := range []struct{ name, value string }{{"source", c.SourceLocale}, {"target", c.TargetLocale}} {
		if err := validateLocale(l.value); err != nil {
			errs = append(errs, fmt.Errorf("%s locale: %w", l.name, err))
		}
	}
	if c.SourceLocale != "" && c.SourceLocale == c.TargetLocale {
		errs = append(errs, fmt.Errorf("source and target locale are both %q", c.SourceLocale))
	}
	positive := []struct {
		name  string
		value int
	}{
		{"batch_size", c.BatchSize},
		{"max_batch_chars", c.MaxBatchChars},
		{"concurrency", c.Concurrency},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.name, p.value))
		}
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries))
	}
	if c.GlossaryTerms < 0 || c.GlossaryChars < 0 {
		errs = append(errs, errors.New("glossary budget must not be negative"))
	}
	if c.PackFormat <= 0 {
		errs = append(errs, fmt.Errorf("pack_format must be positive, got %d", c.PackFormat))
	}
	return errors.Join(errs...)
}

// validateLocale accepts Minecraft locale codes such as en_us or zh_tw.
func validateLocale(locale string) error {
	if locale == "" {
		return errors.New("empty")
	}
	tag, err := translator.ParseLocale(locale)
	if err != nil {
		return fmt.Errorf("unknown locale %q: %w", locale, err)
	}
	if base, conf := tag.Base(); conf == language.No {
		return fmt.Errorf("unknown language in %q (%s)", locale, base)
	}
	return nil
}

// ValidatePaths checks the modpack and output directories of a translate
// run. The output directory must not be the modpack root.
func (c *Config) ValidatePaths() error {
	if c.Modpack == "" {
		return errors.New("modpack directory is required")
	}
	info, err := os.Stat(c.Modpack)
	if err != nil {
		return fmt.Errorf("modpack: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("modpack %s is not a directory", c.Modpack)
	}
	if c.Output == "" {
		return errors.New("output directory is required")
	}
	root, err := filepath.Abs(c.Modpack)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(c.Output)
	if err != nil {
		return err
	}
	if root == out {
		return errors.New("output directory cannot be the modpack directory")
	}
	return nil
}

// Limits returns the batch limits.
func (c *Config) Limits() chunker.Limits {
	return chunker.Limits{MaxUnits: c.BatchSize, MaxChars: c.MaxBatchChars}
}

// Budget returns the glossary excerpt budget.
func (c *Config) Budget() glossary.Budget {
	return glossary.Budget{MaxTerms: c.GlossaryTerms, MaxChars: c.GlossaryChars}
}

// Retries converts max_retries to the batch translator's convention, where
// zero selects the default and a negative value disables retries.
func (c *Config) Retries() int {
	if c.MaxRetries == 0 {
		return -1
	}
	return c.MaxRetries
}

// OutputConfig returns the writer configuration.
func (c *Config) OutputConfig() output.Config {
	return output.Config{
		Dir:          c.Output,
		Modpack:      c.Modpack,
		PackName:     c.PackName,
		PackFormat:   c.PackFormat,
		SourceLocale: c.SourceLocale,
		TargetLocale: c.TargetLocale,
		Zip:          c.Zip,
	}
}
