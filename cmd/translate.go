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
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/orchestrator"
)

var translateCmd = &cobra.Command{
	Use:   "translate <modpack-dir>",
	Short: "Translate a modpack",
	Long: `Translate every supported file of a modpack and write a resource pack
and an overrides tree to the output directory.

Output layout:
  <out>/resourcepack/   language files and books loaded as a resource pack
  <out>/overrides/      kubejs, config and quest files to copy over the pack
  <out>/glossary.json   the pack glossary used for the run
  <out>/stats.json      run statistics, also rendered as report.md/report.html

Interrupting a run (Ctrl+C) stops dispatching new batches and still writes
a partial pack; untranslated text stays in the source language.

Examples:
  packtran translate ./MyPack -o ./MyPack-ko -t ko_kr
  packtran translate ./MyPack -o ./out --provider ollama --model qwen3:14b --concurrency 2`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		v.Set("modpack", args[0])
		if err := bind(cmd.Flags(), llmKeys); err != nil {
			return err
		}
		return bind(cmd.Flags(), map[string]string{
			"output":            "output",
			"jars":              "jars",
			"no_cache":          "no-cache",
			"vanilla_dir":       "vanilla-dir",
			"glossaries":        "glossary",
			"generate_glossary": "generate-glossary",
			"review":            "review",
			"verify_language":   "verify-language",
			"batch_size":        "batch-size",
			"max_batch_chars":   "max-chars",
			"concurrency":       "concurrency",
			"max_retries":       "max-retries",
			"glossary_terms":    "glossary-terms",
			"glossary_chars":    "glossary-chars",
			"zip":               "zip",
			"pack_name":         "pack-name",
			"pack_format":       "pack-format",
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()
		if err := cfg.ValidatePaths(); err != nil {
			return err
		}

		capability, err := newCapability(cfg)
		if err != nil {
			return err
		}
		db, err := openStore(cfg, log)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		p := orchestrator.New(orchestrator.Options{
			Modpack:          cfg.Modpack,
			SourceLocale:     cfg.SourceLocale,
			TargetLocale:     cfg.TargetLocale,
			Provider:         cfg.LLM.Provider,
			Model:            cfg.LLM.Model,
			Output:           cfg.OutputConfig(),
			Jars:             cfg.Jars,
			Limits:           cfg.Limits(),
			Concurrency:      cfg.Concurrency,
			MaxRetries:       cfg.Retries(),
			Timeout:          cfg.LLM.Timeout,
			Budget:           cfg.Budget(),
			VanillaDir:       cfg.VanillaDir,
			GlossaryFiles:    cfg.Glossaries,
			GenerateGlossary: cfg.GenerateGlossary,
			Review:           cfg.Review,
			VerifyLanguage:   cfg.VerifyLanguage,
		}, capability, db, log)

		bar := newProgress()
		p.OnEvent(bar.update)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(os.Stderr, "Translating %s (%s → %s) with %s\n",
			cfg.Modpack, cfg.SourceLocale, cfg.TargetLocale, cfg.LLM.Provider)
		stats, runErr := p.Run(ctx)
		bar.finish()
		if stats != nil {
			printSummary(stats, cfg.Output)
		}
		if runErr != nil {
			log.Debug("run failed", zap.Error(runErr))
			return runErr
		}
		if stats.Incomplete {
			return errIncomplete
		}
		return nil
	},
}

// progress renders orchestrator events as a progress bar.
type progress struct {
	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	total int
}

func newProgress() *progress {
	return &progress{bar: progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]starting[reset]"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))}
}

// update is called from worker goroutines.
func (p *progress) update(ev orchestrator.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.UnitsTotal > 0 && ev.UnitsTotal != p.total {
		p.total = ev.UnitsTotal
		p.bar.ChangeMax(ev.UnitsTotal)
	}
	desc := fmt.Sprintf("[cyan]%s[reset]", ev.State)
	if ev.CurrentFile != "" && ev.State == orchestrator.StateTranslating {
		desc = fmt.Sprintf("[cyan]%s[reset] %s", ev.State, filepath.Base(ev.CurrentFile))
	}
	p.bar.Describe(desc)
	_ = p.bar.Set(ev.UnitsCompleted)
}

func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
	fmt.Fprintln(os.Stderr)
}

func printSummary(s *internal.RunStatistics, out string) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	state := green(s.State)
	if s.Incomplete {
		state = yellow(s.State + " (incomplete)")
	}
	if s.State == string(orchestrator.StateAborted) {
		state = red(s.State)
	}

	fmt.Printf("\n%s %s in %s\n", bold("Run"), state, s.Duration().Round(time.Second))
	fmt.Printf("  Files:    %s processed, %s skipped, %s failed of %s\n",
		humanize.Comma(int64(s.FilesProcessed)), humanize.Comma(int64(s.FilesSkipped)),
		humanize.Comma(int64(s.FilesFailed)), humanize.Comma(int64(s.FilesTotal)))
	fmt.Printf("  Units:    %s translated, %s cached, %s skipped, %s failed of %s\n",
		green(humanize.Comma(int64(s.UnitsTranslated))), humanize.Comma(int64(s.UnitsCached)),
		humanize.Comma(int64(s.UnitsSkipped)), red(humanize.Comma(int64(s.UnitsFailed))),
		humanize.Comma(int64(s.UnitsTotal)))
	if s.UnitsReviewed > 0 {
		fmt.Printf("  Review:   %s reviewed, %s corrected\n",
			humanize.Comma(int64(s.UnitsReviewed)), humanize.Comma(int64(s.UnitsCorrected)))
	}
	fmt.Printf("  Tokens:   %s in, %s out\n", humanize.Comma(int64(s.InputTokens)), humanize.Comma(int64(s.OutputTokens)))
	fmt.Printf("  Glossary: %s terms\n", humanize.Comma(int64(s.GlossaryTerms)))
	fmt.Printf("  Output:   %s\n", out)
	if s.Error != "" {
		fmt.Printf("  Error:    %s\n", red(s.Error))
	}
}

func init() {
	rootCmd.AddCommand(translateCmd)

	f := translateCmd.Flags()
	f.StringP("output", "o", "", "Output directory (required)")
	f.Bool("jars", true, "Also translate language files inside mods/*.jar")
	f.Bool("no-cache", false, "Disable the translation memory")
	f.String("vanilla-dir", "", "Directory with cached vanilla glossaries (see \"glossary build\")")
	f.StringSlice("glossary", nil, "User glossary files (JSON or YAML) layered over the generated one")
	f.Bool("generate-glossary", true, "Generate a pack glossary from recurring terms before translating")
	f.Bool("review", false, "Run an LLM review pass over the translations")
	f.Bool("verify-language", false, "Reject translations detected as the source language")
	f.Int("batch-size", 30, "Maximum units per request")
	f.Int("max-chars", 8000, "Maximum source characters per request")
	f.Int("concurrency", 15, "Concurrent requests")
	f.Int("max-retries", 3, "Retries per batch (0 = no retries)")
	f.Int("glossary-terms", 40, "Maximum glossary terms attached to a request")
	f.Int("glossary-chars", 2000, "Maximum glossary characters attached to a request")
	f.Bool("zip", false, "Also write the trees as zip archives")
	f.String("pack-name", "translations", "Resource pack name")
	f.Int("pack-format", 15, "Resource pack format")
	addLLMFlags(f)
}
