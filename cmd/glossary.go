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
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/valpere/packtran/internal/batch"
	"github.com/valpere/packtran/internal/glossary"
	"github.com/valpere/packtran/internal/orchestrator"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Manage terminology glossaries",
	Long: `Build the vanilla glossary, generate a pack glossary, and manage the
user terms stored in the database.

Glossary terms keep item, block and proper names consistent across every
batch of a run. User terms win over generated ones, which win over the
vanilla glossary.`,
}

var (
	buildSourceFile string
	buildTargetFile string
	buildOutDir     string
)

var glossaryBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the vanilla glossary from the game's language files",
	Long: `Pair the game's own source and target language files into the vanilla
glossary and cache it for translate runs.

Example:
  packtran glossary build --source-file en_us.json --target-file ko_kr.json -t ko_kr`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		g, err := glossary.BuildFromFiles(buildSourceFile, buildTargetFile, cfg.SourceLocale, cfg.TargetLocale)
		if err != nil {
			return err
		}
		dir := buildOutDir
		if dir == "" {
			dir = cfg.VanillaDir
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		path := filepath.Join(dir, glossary.VanillaFileName(cfg.SourceLocale, cfg.TargetLocale))
		if err := glossary.Save(path, g); err != nil {
			return err
		}
		fmt.Printf("Wrote %s terms to %s\n", humanize.Comma(int64(g.Len())), path)
		return nil
	},
}

var generateOutput string

var glossaryGenerateCmd = &cobra.Command{
	Use:   "generate <modpack-dir>",
	Short: "Generate a pack glossary from recurring terms",
	Long: `Scan a modpack, collect recurring capitalized phrases that the vanilla
glossary does not cover, and translate them with the configured provider.
The result can be edited and passed back with "translate --glossary".

Example:
  packtran glossary generate ./MyPack -o pack-glossary.yaml --provider ollama`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		v.Set("modpack", args[0])
		if err := bind(cmd.Flags(), llmKeys); err != nil {
			return err
		}
		return bind(cmd.Flags(), map[string]string{
			"jars":        "jars",
			"vanilla_dir": "vanilla-dir",
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		capability, err := newCapability(cfg)
		if err != nil {
			return err
		}
		p := orchestrator.New(orchestrator.Options{
			Modpack:      cfg.Modpack,
			SourceLocale: cfg.SourceLocale,
			TargetLocale: cfg.TargetLocale,
			Jars:         cfg.Jars,
		}, nil, nil, log)
		_, units, err := p.Scan(ctx)
		if err != nil {
			return err
		}
		var texts []string
		for _, u := range units {
			if !u.Done() {
				texts = append(texts, u.MaskedText)
			}
		}

		known, ok, err := glossary.LoadVanilla(cfg.VanillaDir, cfg.SourceLocale, cfg.TargetLocale)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "No vanilla glossary cached; generating without it.")
		}

		tr := &batch.Translator{
			Capability:   capability,
			SourceLocale: cfg.SourceLocale,
			TargetLocale: cfg.TargetLocale,
			Timeout:      cfg.LLM.Timeout,
			Logger:       log.Named("batch"),
		}
		gen := &glossary.Generator{Translator: tr, Logger: log.Named("glossary")}
		g, err := gen.Generate(ctx, texts, known, cfg.SourceLocale, cfg.TargetLocale)
		if err != nil {
			return err
		}
		if err := glossary.Save(generateOutput, g); err != nil {
			return err
		}
		fmt.Printf("Wrote %s terms from %s units to %s\n",
			humanize.Comma(int64(g.Len())), humanize.Comma(int64(len(texts))), generateOutput)
		return nil
	},
}

var glossaryCategory string

var glossaryAddCmd = &cobra.Command{
	Use:   "add <source-term> <target-term>",
	Short: "Add or update a user glossary term",
	Long: `Add a user term mapping a source-language term to a target-language term
for the configured locale pair. User terms win over generated terms.

Example:
  packtran glossary add "Mana Pool" "마나 웅덩이" -t ko_kr --category block`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, err := mustStore()
		if err != nil {
			return err
		}
		defer db.Close()

		src, tgt := cfg.SourceLocale, cfg.TargetLocale
		if err := db.AddGlossaryTerm(context.Background(), src, tgt, args[0], args[1], glossary.Category(glossaryCategory)); err != nil {
			return fmt.Errorf("failed to add glossary entry: %w", err)
		}
		fmt.Printf("Added: [%s→%s] %q → %q\n", src, tgt, args[0], args[1])
		return nil
	},
}

var glossaryListAll bool

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user glossary terms",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, err := mustStore()
		if err != nil {
			return err
		}
		defer db.Close()

		src, tgt := cfg.SourceLocale, cfg.TargetLocale
		if glossaryListAll {
			src, tgt = "", ""
		}
		entries, err := db.ListGlossaryTerms(context.Background(), src, tgt)
		if err != nil {
			return fmt.Errorf("failed to list glossary: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("Glossary is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE\tTARGET\tCATEGORY\tSOURCE TERM\tTARGET TERM")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.SourceLocale, e.TargetLocale, e.Category, e.SourceTerm, e.TargetTerm)
		}
		return w.Flush()
	},
}

var glossaryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user glossary term by ID",
	Long: `Delete a user glossary term by its ID (shown in "packtran glossary list").`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := mustStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteGlossaryTerm(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete glossary entry: %w", err)
		}
		fmt.Printf("Deleted glossary entry: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryBuildCmd.Flags().StringVar(&buildSourceFile, "source-file", "", "Vanilla language file in the source locale (required)")
	glossaryBuildCmd.Flags().StringVar(&buildTargetFile, "target-file", "", "Vanilla language file in the target locale (required)")
	glossaryBuildCmd.Flags().StringVarP(&buildOutDir, "out", "o", "", "Output directory (default: the vanilla glossary cache)")
	glossaryBuildCmd.MarkFlagRequired("source-file")
	glossaryBuildCmd.MarkFlagRequired("target-file")

	glossaryGenerateCmd.Flags().StringVarP(&generateOutput, "output", "o", "glossary.yaml", "Output file (.json, .yaml or .yml)")
	glossaryGenerateCmd.Flags().Bool("jars", true, "Also read language files inside mods/*.jar")
	glossaryGenerateCmd.Flags().String("vanilla-dir", "", "Directory with cached vanilla glossaries")
	addLLMFlags(glossaryGenerateCmd.Flags())

	glossaryAddCmd.Flags().StringVar(&glossaryCategory, "category", string(glossary.CategoryOther), "Term category (item, block, ui, entity, effect, biome, proper_noun, other)")
	glossaryListCmd.Flags().BoolVar(&glossaryListAll, "all", false, "List terms of every locale pair")

	glossaryCmd.AddCommand(glossaryBuildCmd)
	glossaryCmd.AddCommand(glossaryGenerateCmd)
	glossaryCmd.AddCommand(glossaryAddCmd)
	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryDeleteCmd)
}
