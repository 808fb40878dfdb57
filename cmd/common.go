/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/config"
	"github.com/valpere/packtran/internal/logging"
	"github.com/valpere/packtran/internal/store"
	"github.com/valpere/packtran/internal/translator"
)

// Exit codes.
const (
	exitError      = 1
	exitIncomplete = 2
	exitCanceled   = 130
)

// errIncomplete is returned when a run finished but left units untranslated.
var errIncomplete = errors.New("run finished with untranslated units")

// bind ties config keys to flags so that flags override every other layer.
// Commands bind their own flags when they run, so two commands may share a
// key.
func bind(fs *pflag.FlagSet, keys map[string]string) error {
	for key, flag := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

var llmKeys = map[string]string{
	"llm.provider":    "provider",
	"llm.model":       "model",
	"llm.api_key":     "api-key",
	"llm.base_url":    "base-url",
	"llm.credentials": "credentials",
	"llm.temperature": "temperature",
	"llm.timeout":     "timeout",
	"llm.rpm":         "rpm",
	"llm.tpm":         "tpm",
}

func addLLMFlags(fs *pflag.FlagSet) {
	fs.String("provider", "openai", fmt.Sprintf("LLM provider (%s)", strings.Join(translator.Providers(), ", ")))
	fs.String("model", "", "Model name")
	fs.String("api-key", "", "API key (or PACKTRAN_LLM_API_KEY)")
	fs.String("base-url", "", "Provider base URL")
	fs.String("credentials", "", "Path to Google Cloud credentials")
	fs.Float64("temperature", 0.1, "Sampling temperature")
	fs.Duration("timeout", 120*time.Second, "Timeout per provider call")
	fs.Int("rpm", 0, "Requests per minute limit (0 = unlimited)")
	fs.Int("tpm", 0, "Tokens per minute limit (0 = unlimited)")
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openStore opens the database, or returns nil when caching is disabled.
func openStore(cfg *config.Config, log *zap.Logger) (*store.Store, error) {
	if cfg.NoCache || cfg.DB == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.New(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// mustStore opens the database for the management commands.
func mustStore() (*store.Store, *config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.NoCache = false
	db, err := openStore(cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	if db == nil {
		return nil, nil, errors.New("no database configured, use --db")
	}
	return db, cfg, nil
}

func newCapability(cfg *config.Config) (translator.Capability, error) {
	c, err := translator.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, internal.ErrCanceled), errors.Is(err, context.Canceled):
		return exitCanceled
	case errors.Is(err, errIncomplete):
		return exitIncomplete
	}
	return exitError
}

func printError(err error) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
}
