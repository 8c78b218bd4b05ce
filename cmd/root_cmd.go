package cmd

import (
	"fmt"
	"os"

	"github.com/dzjyyds666/pdxu/pkg/config"
	"github.com/dzjyyds666/pdxu/pkg/game"
	"github.com/dzjyyds666/pdxu/pkg/logging"
	"github.com/dzjyyds666/pdxu/pkg/melter"
	"github.com/dzjyyds666/pdxu/pkg/storage"
	"github.com/spf13/cobra"
)

const version = "v0.1"

var configPath string

var cfg *config.Config

var session *logging.Session

var rootCmd = &cobra.Command{
	Use:   "pdxu",
	Short: "pdxu manages savegames of Paradox grand strategy games.",
	Long:  "pdxu imports savegames into a local library organised by campaign, and can list, export, move, delete and reformat them.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadOrCreate(configPath)
		if err != nil {
			return err
		}
		// 日志初始化失败时 Setup 已经退回到 stderr
		session, _ = logging.Setup(cfg.Log.Dir, cfg.Log.Level)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if session != nil {
			session.Close()
		}
	},
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of pdxu",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pdxu %s -- HEAD\n", version)
	},
}

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "list the supported games and whether they are enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled := map[string]bool{}
		for _, id := range cfg.Games {
			g, err := game.Lookup(id)
			if err != nil {
				return err
			}
			enabled[g.ID] = true
		}
		for _, g := range game.All() {
			mark := " "
			if enabled[g.ID] {
				mark = "*"
			}
			fmt.Printf("%s %-10s %-28s .%s\n", mark, g.ID, g.Name, g.Extension)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.pdxu/config.yaml)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(gamesCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(folderCmd)
	rootCmd.AddCommand(renameCmd)
}

// =========================
// Shared helpers
// =========================

// enabledGames resolves the configured game ids.
func enabledGames() ([]*game.Game, error) {
	var out []*game.Game
	for _, id := range cfg.Games {
		g, err := game.Lookup(id)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// openRegistry opens the stores of every enabled game.
func openRegistry() (*storage.Registry, error) {
	games, err := enabledGames()
	if err != nil {
		return nil, err
	}
	return storage.OpenRegistry(storage.RegistryOptions{
		Root:  cfg.StorageDir,
		Games: games,
		Melter: func(g *game.Game) melter.Melter {
			return melter.NewCommand(cfg.Melter, g)
		},
		Guard:       storage.NewMemoryGuard(cfg.Memory.LimitMB, cfg.Memory.Factor),
		Thumbnailer: storage.Swatch{},
		Indent:      cfg.Writer.Indent,
	})
}

// withStore opens the registry, runs fn against one game's store and
// saves everything afterwards.
func withStore(gameID string, fn func(s *storage.Store) error) error {
	if gameID == "" {
		return fmt.Errorf("no game given, use --game")
	}
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	s, err := reg.Store(gameID)
	if err != nil {
		reg.Close()
		return err
	}
	err = fn(s)
	if cerr := reg.Close(); err == nil {
		err = cerr
	}
	return err
}
