package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dzjyyds666/pdxu/pkg/storage"
	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type StoreParams struct {
	Game       string `json:"game"`       // 游戏 id
	Entry      string `json:"entry"`      // 存档 uuid
	Collection string `json:"collection"` // 战役或文件夹 uuid
	Target     string `json:"target"`     // 移动的目标集合 uuid
	Name       string `json:"name"`       // 新名称
	Dir        string `json:"dir"`        // 批量导入的目录
	Pattern    string `json:"pattern"`    // 批量导入的文件名通配符
	Output     string `json:"output"`     // 导出路径
	Load       bool   `json:"load"`       // 列表时解析每个存档
}

var storeParams = &StoreParams{}

func addGameFlag(c *cobra.Command) {
	c.Flags().StringVarP(&storeParams.Game, "game", "g", "", "game id (eu4, hoi4, ck3, stellaris)")
}

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "import savegames into the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(storeParams.Game, func(s *storage.Store) error {
			files := args
			if storeParams.Dir != "" {
				found, err := matchFiles(storeParams.Dir, storeParams.Pattern, s.Game().Extension)
				if err != nil {
					return err
				}
				files = append(files, found...)
			}
			if len(files) == 0 {
				return fmt.Errorf("nothing to import")
			}
			var failed int
			for _, f := range files {
				res, err := s.Import(f)
				if err != nil {
					failed++
					fmt.Println(err)
					continue
				}
				if res.Duplicate {
					fmt.Printf("%s: already stored as %s\n", f, s.EntryName(res.Entry))
					continue
				}
				fmt.Printf("%s: imported as %s [%s]\n", f, s.EntryName(res.Entry), res.Entry.UUID)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d imports failed", failed, len(files))
			}
			return nil
		})
	},
}

// matchFiles lists regular files in dir whose name matches pattern,
// by default every file with the game's extension.
func matchFiles(dir, pattern, ext string) ([]string, error) {
	if pattern == "" {
		pattern = "*." + ext
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && g.Match(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list campaigns, folders and their savegames",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(storeParams.Game, func(s *storage.Store) error {
			for _, c := range s.Collections() {
				fmt.Printf("%s %s %q", c.Kind, c.UUID, c.Name())
				if c.Date() != "" {
					fmt.Printf(" %s", c.Date())
				}
				fmt.Printf(" (last played %s)\n", c.LastPlayed().Format("2006-01-02 15:04"))
				for _, e := range s.Entries(c) {
					fmt.Printf("    %s %q", e.UUID, e.Name())
					if storeParams.Load {
						info, err := s.Load(e)
						if err != nil {
							fmt.Printf(" <%v>", err)
						} else {
							fmt.Printf(" %s %s", info.Tag, info.Date)
							if info.Ironman {
								fmt.Print(" ironman")
							}
						}
					}
					fmt.Println()
				}
			}
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "copy a stored savegame out of the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(storeParams.Game, func(s *storage.Store) error {
			e, err := findEntry(s)
			if err != nil {
				return err
			}
			dest := storeParams.Output
			if dest == "" {
				dest = s.ExportFileName(e)
			} else if st, err := os.Stat(dest); err == nil && st.IsDir() {
				dest = filepath.Join(dest, s.ExportFileName(e))
			}
			if err := s.Export(e, dest); err != nil {
				return err
			}
			fmt.Println(dest)
			return nil
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "move a savegame into another campaign or folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(storeParams.Game, func(s *storage.Store) error {
			e, err := findEntry(s)
			if err != nil {
				return err
			}
			target, err := findCollection(s, storeParams.Target)
			if err != nil {
				return err
			}
			return s.Move(target, e)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "delete a savegame or a whole collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(storeParams.Game, func(s *storage.Store) error {
			switch {
			case storeParams.Entry != "" && storeParams.Collection != "":
				return errors.New("use either --entry or --collection")
			case storeParams.Entry != "":
				e, err := findEntry(s)
				if err != nil {
					return err
				}
				return s.DeleteEntry(e)
			case storeParams.Collection != "":
				c, err := findCollection(s, storeParams.Collection)
				if err != nil {
					return err
				}
				return s.DeleteCollection(c)
			}
			return errors.New("nothing to delete, use --entry or --collection")
		})
	},
}

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "create an empty folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(storeParams.Game, func(s *storage.Store) error {
			if storeParams.Name == "" {
				return errors.New("no folder name, use --name")
			}
			c, err := s.AddFolder(storeParams.Name)
			if err != nil {
				return err
			}
			fmt.Println(c.UUID)
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "rename a collection or a savegame",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(storeParams.Game, func(s *storage.Store) error {
			if storeParams.Entry != "" {
				e, err := findEntry(s)
				if err != nil {
					return err
				}
				return s.RenameEntry(e, storeParams.Name)
			}
			if storeParams.Name == "" {
				return errors.New("no name, use --name")
			}
			c, err := findCollection(s, storeParams.Collection)
			if err != nil {
				return err
			}
			return s.Rename(c, storeParams.Name)
		})
	},
}

func findEntry(s *storage.Store) (*storage.Entry, error) {
	id, err := uuid.Parse(storeParams.Entry)
	if err != nil {
		return nil, fmt.Errorf("bad entry id %q: %w", storeParams.Entry, err)
	}
	return s.Entry(id)
}

func findCollection(s *storage.Store, raw string) (*storage.Collection, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("bad collection id %q: %w", raw, err)
	}
	return s.Collection(id)
}

func init() {
	for _, c := range []*cobra.Command{importCmd, listCmd, exportCmd, moveCmd, deleteCmd, folderCmd, renameCmd} {
		addGameFlag(c)
	}
	importCmd.Flags().StringVarP(&storeParams.Dir, "dir", "d", "", "import every matching file of this directory")
	importCmd.Flags().StringVarP(&storeParams.Pattern, "pattern", "p", "", "file name pattern for --dir (default *.<ext>)")
	listCmd.Flags().BoolVarP(&storeParams.Load, "load", "l", false, "parse every savegame and show its summary")
	exportCmd.Flags().StringVarP(&storeParams.Entry, "entry", "e", "", "entry uuid")
	exportCmd.Flags().StringVarP(&storeParams.Output, "output", "o", "", "destination file or directory")
	moveCmd.Flags().StringVarP(&storeParams.Entry, "entry", "e", "", "entry uuid")
	moveCmd.Flags().StringVarP(&storeParams.Target, "to", "t", "", "target collection uuid")
	deleteCmd.Flags().StringVarP(&storeParams.Entry, "entry", "e", "", "entry uuid")
	deleteCmd.Flags().StringVarP(&storeParams.Collection, "collection", "c", "", "collection uuid")
	folderCmd.Flags().StringVarP(&storeParams.Name, "name", "n", "", "folder name")
	renameCmd.Flags().StringVarP(&storeParams.Collection, "collection", "c", "", "collection uuid")
	renameCmd.Flags().StringVarP(&storeParams.Entry, "entry", "e", "", "entry uuid, renames the savegame instead")
	renameCmd.Flags().StringVarP(&storeParams.Name, "name", "n", "", "new name")
}
