package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dzjyyds666/pdxu/parse"
	"github.com/dzjyyds666/pdxu/parse/pdx"
	"github.com/dzjyyds666/pdxu/pkg"
	"github.com/dzjyyds666/pdxu/pkg/game"
	"github.com/spf13/cobra"
)

type FmtParams struct {
	Find   string `json:"find"`   // 查找的key，用 . 分隔层级
	Input  string `json:"input"`  // 输入文件路径
	Output string `json:"output"` // 输出文件地址，为空时输出到标准输出
	Game   string `json:"game"`   // 按该游戏的方言和文件头解析
	Lines  int    `json:"lines"`  // 最多输出的行数，0 表示不限制
}

var fmtParams *FmtParams

var fmtCmd = &cobra.Command{
	Use:   "fmt",
	Short: "parse a text savegame and print it reformatted",
	RunE:  fmtRun,
}

func init() {
	fmtParams = &FmtParams{}
	fmtCmd.Flags().StringVarP(&fmtParams.Find, "find", "f", "", "dotted key path to print")
	fmtCmd.Flags().StringVarP(&fmtParams.Input, "input", "i", "", "input file path")
	fmtCmd.Flags().StringVarP(&fmtParams.Output, "output", "o", "", "output path")
	fmtCmd.Flags().StringVarP(&fmtParams.Game, "game", "g", "", "game id (eu4, hoi4, ck3, stellaris)")
	fmtCmd.Flags().IntVarP(&fmtParams.Lines, "lines", "n", 0, "stop after this many lines")
}

func fmtRun(cmd *cobra.Command, args []string) error {
	if len(fmtParams.Input) == 0 {
		return fmt.Errorf("no input file path")
	}
	exist, err := pkg.CheckFileExist(fmtParams.Input)
	if err != nil {
		return fmt.Errorf("check file exist error: %w", err)
	}
	if !exist {
		return fmt.Errorf("input file not exist")
	}
	data, err := os.ReadFile(fmtParams.Input)
	if err != nil {
		return err
	}

	root, cs, err := parseInput(data, fmtParams.Game)
	if err != nil {
		return err
	}

	var node pdx.Node = root
	if fmtParams.Find != "" {
		n, ok := pdx.Get(root, strings.Split(fmtParams.Find, ".")...)
		if !ok {
			return fmt.Errorf("key %s not found", fmtParams.Find)
		}
		node = n
	}

	var out io.Writer = os.Stdout
	if fmtParams.Output != "" {
		f, err := os.Create(fmtParams.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	} else {
		cs = pdx.UTF8
	}
	w := pdx.NewWriter(out, cs, indent(), fmtParams.Lines)
	if node == pdx.Node(root) {
		err = w.WriteRoot(root)
	} else {
		err = w.WriteNode(node)
	}
	if err != nil {
		return err
	}
	if w.Truncated() {
		fmt.Fprintf(os.Stderr, "output truncated after %d lines\n", fmtParams.Lines)
	}
	return nil
}

// parseInput uses the game's container handling and dialect when a game
// is given, otherwise plain UTF-8 text, unpacking a zip if needed.
func parseInput(data []byte, gameID string) (*pdx.Array, pdx.Charset, error) {
	if gameID != "" {
		g, err := game.Lookup(gameID)
		if err != nil {
			return nil, 0, err
		}
		if g.IsBinary(data) {
			return nil, 0, fmt.Errorf("%s is a binary savegame, import it to melt it first", fmtParams.Input)
		}
		root, err := g.Parse(data)
		return root, g.Charset, err
	}
	if parse.IsZip(data) {
		body, _, err := parse.Member(data, "gamestate")
		if err != nil {
			return nil, 0, err
		}
		data = body
	}
	root, err := pdx.ParseBytes(data, 0, pdx.UTF8)
	return root, pdx.UTF8, err
}

func indent() string {
	if cfg != nil && cfg.Writer.Indent != "" {
		return cfg.Writer.Indent
	}
	return "\t"
}
