package melter

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

type magic string

func (m magic) IsBinary(data []byte) bool {
	return len(data) >= len(m) && string(data[:len(m)]) == string(m)
}

func TestCommand(t *testing.T) {
	convey.Convey("detection delegates to the game", t, func() {
		c := NewCommand("rakaly", magic("EU4bin"))
		convey.So(c.IsBinary([]byte("EU4bin...")), convey.ShouldBeTrue)
		convey.So(c.IsBinary([]byte("EU4txt...")), convey.ShouldBeFalse)
		convey.So((&Command{}).IsBinary([]byte("EU4bin")), convey.ShouldBeFalse)
	})

	convey.Convey("missing binary is a melt failure", t, func() {
		c := NewCommand(filepath.Join(t.TempDir(), "no-such-melter"), nil)
		_, err := c.Melt("x.eu4")
		convey.So(errors.Is(err, ErrMeltFailed), convey.ShouldBeTrue)
	})

	convey.Convey("stdout of the tool is the melted text", t, func() {
		if runtime.GOOS == "windows" {
			return
		}
		cat, err := exec.LookPath("cat")
		if err != nil {
			return
		}
		path := filepath.Join(t.TempDir(), "save.eu4")
		convey.So(os.WriteFile(path, []byte("EU4txt\ndate=1444.11.11\n"), 0o644), convey.ShouldBeNil)
		c := &Command{Bin: cat}
		out, err := c.Melt(path)
		convey.So(err, convey.ShouldBeNil)
		convey.So(string(out), convey.ShouldEqual, "EU4txt\ndate=1444.11.11\n")
	})

	convey.Convey("empty output fails", t, func() {
		if runtime.GOOS == "windows" {
			return
		}
		cat, err := exec.LookPath("cat")
		if err != nil {
			return
		}
		path := filepath.Join(t.TempDir(), "empty")
		convey.So(os.WriteFile(path, nil, 0o644), convey.ShouldBeNil)
		_, err = (&Command{Bin: cat}).Melt(path)
		convey.So(errors.Is(err, ErrMeltFailed), convey.ShouldBeTrue)
	})
}

func TestNone(t *testing.T) {
	convey.Convey("none never melts", t, func() {
		convey.So(None{}.IsBinary([]byte("EU4bin")), convey.ShouldBeFalse)
		_, err := None{}.Melt("x")
		convey.So(errors.Is(err, ErrMeltFailed), convey.ShouldBeTrue)
	})
}
