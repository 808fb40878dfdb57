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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/packtran/internal/config"
)

var version = "0.1.0"

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "packtran",
	Short: "Minecraft modpack translator",
	Long: `A CLI application that translates the text of a Minecraft modpack with an LLM
and writes the result as a resource pack plus an overrides tree.

Supported content: language files (.json, .lang), FTB Quests, KubeJS scripts,
Patchouli books, Origins, Puffish Skills, Tinkers' Construct books and
Vault Hunters quests.

Settings are read from flags, PACKTRAN_* environment variables and an
optional packtran.yaml config file.

Use "packtran translate --help" for translation options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bind(cmd.Root().PersistentFlags(), map[string]string{
			"log.level":  "log-level",
			"log.format": "log-format",
			"db":         "db",
			"source":     "source",
			"target":     "target",
		}); err != nil {
			return err
		}
		return config.Init(v, cfgFile)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(exitCode(err))
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default ./packtran.yaml or $HOME/.packtran.yaml)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "console", "Log format (console, json)")
	pf.String("db", "", "Database path for translation memory, run history and glossary terms")
	pf.StringP("source", "s", "en_us", "Source locale")
	pf.StringP("target", "t", "ko_kr", "Target locale")
}
