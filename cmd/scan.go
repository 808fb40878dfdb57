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
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/valpere/packtran/internal"
	"github.com/valpere/packtran/internal/orchestrator"
)

var scanFiles bool

var scanCmd = &cobra.Command{
	Use:   "scan <modpack-dir>",
	Short: "List the translatable content of a modpack",
	Long: `Discover and parse a modpack without translating it, and report how
many translatable strings each handler found.

Example:
  packtran scan ./MyPack --files`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		v.Set("modpack", args[0])
		return bind(cmd.Flags(), map[string]string{"jars": "jars"})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		p := orchestrator.New(orchestrator.Options{
			Modpack:      cfg.Modpack,
			SourceLocale: cfg.SourceLocale,
			TargetLocale: cfg.TargetLocale,
			Jars:         cfg.Jars,
		}, nil, nil, log)
		stats, units, err := p.Scan(context.Background())
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()

		pending := 0
		for _, u := range units {
			if !u.Done() {
				pending++
			}
		}

		fmt.Printf("%s %s\n\n", bold("Modpack"), cfg.Modpack)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "HANDLER\tUNITS")
		names := make([]string, 0, len(stats.HandlerUnits))
		for name := range stats.HandlerUnits {
			names = append(names, string(name))
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s\n", name, humanize.Comma(int64(stats.HandlerUnits[internal.FileType(name)])))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("\n%s files, %s parsed, %s skipped, %s unreadable\n",
			humanize.Comma(int64(stats.FilesTotal)), humanize.Comma(int64(stats.FilesProcessed)),
			humanize.Comma(int64(stats.FilesSkipped)), humanize.Comma(int64(stats.FilesFailed)))
		fmt.Printf("%s units, %s to translate, %s placeholder-only\n",
			humanize.Comma(int64(stats.UnitsTotal)), humanize.Comma(int64(pending)),
			humanize.Comma(int64(stats.UnitsSkipped)))

		if !scanFiles {
			return nil
		}
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tHANDLER\tUNITS\tNOTE")
		for _, f := range stats.Files {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", f.Path, f.Handler, f.Units, faint(f.Error))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("jars", true, "Also read language files inside mods/*.jar")
	scanCmd.Flags().BoolVar(&scanFiles, "files", false, "List every discovered file")
}
