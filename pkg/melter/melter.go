package melter

// melter 包把二进制存档转换为等价的文本存档，转换本身由外部程序完成。

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

var ErrMeltFailed = errors.New("melt failed")

// Melter turns binary savegames into their text equivalent.
type Melter interface {
	// IsBinary reports whether data must be melted before parsing.
	IsBinary(data []byte) bool
	// Melt returns the text form of the savegame stored at path.
	Melt(path string) ([]byte, error)
}

// Detector is satisfied by *game.Game.
type Detector interface {
	IsBinary(data []byte) bool
}

// DefaultTimeout bounds a single external melt.
const DefaultTimeout = 5 * time.Minute

// Command runs an external melting tool as `<bin> melt --to-stdout <path>`.
type Command struct {
	Bin      string
	Args     []string
	Timeout  time.Duration
	Detector Detector
}

// NewCommand returns a melter using bin with the rakaly argument layout.
func NewCommand(bin string, d Detector) *Command {
	return &Command{
		Bin:      bin,
		Args:     []string{"melt", "--to-stdout"},
		Timeout:  DefaultTimeout,
		Detector: d,
	}
}

func (c *Command) IsBinary(data []byte) bool {
	if c.Detector == nil {
		return false
	}
	return c.Detector.IsBinary(data)
}

func (c *Command) Melt(path string) ([]byte, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := append(append([]string{}, c.Args...), path)
	cmd := exec.CommandContext(ctx, c.Bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: %s %s: %s", ErrMeltFailed, c.Bin, path, msg)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: %s produced no output", ErrMeltFailed, c.Bin)
	}
	slog.Debug("melted savegame", "path", path, "bytes", stdout.Len(), "took", time.Since(start))
	return stdout.Bytes(), nil
}

// None is used for games without a binary encoding. Melt always fails.
type None struct{}

func (None) IsBinary([]byte) bool { return false }

func (None) Melt(path string) ([]byte, error) {
	return nil, fmt.Errorf("%w: no melter configured for %s", ErrMeltFailed, path)
}
