package pdx

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// errTruncated stops serialization once the line limit is hit.
var errTruncated = errors.New("line limit reached")

// =========================
// Writer
// =========================

// Writer serializes a tree back into the text dialect. MaxLines <= 0
// means no limit.
type Writer struct {
	out       *bufio.Writer
	charset   Charset
	indent    string
	maxLines  int
	level     int
	lines     int
	truncated bool
}

func NewWriter(w io.Writer, cs Charset, indent string, maxLines int) *Writer {
	return &Writer{
		out:      bufio.NewWriter(w),
		charset:  cs,
		indent:   indent,
		maxLines: maxLines,
	}
}

// Truncated reports whether output stopped at the line limit.
func (w *Writer) Truncated() bool { return w.truncated }

// WriteRoot writes the elements of root without surrounding braces.
func (w *Writer) WriteRoot(root *Array) error {
	err := w.elements(root)
	return w.finish(err)
}

// WriteNode writes a single node as it would appear in value position.
func (w *Writer) WriteNode(n Node) error {
	err := w.node(n)
	if err == nil {
		err = w.newLine()
	}
	return w.finish(err)
}

func (w *Writer) finish(err error) error {
	if errors.Is(err, errTruncated) {
		w.truncated = true
		err = nil
	}
	if ferr := w.out.Flush(); err == nil {
		err = ferr
	}
	return err
}

// Write serializes root with no line limit.
func Write(out io.Writer, root *Array, cs Charset, indent string) error {
	return NewWriter(out, cs, indent, 0).WriteRoot(root)
}

// WriteToString renders a preview in UTF-8, stopping after maxLines.
func WriteToString(n Node, maxLines int, indent string) string {
	var buf bytes.Buffer
	w := NewWriter(&buf, UTF8, indent, maxLines)
	if root, ok := n.(*Array); ok {
		_ = w.WriteRoot(root)
	} else {
		_ = w.WriteNode(n)
	}
	return buf.String()
}

// =========================
// Node Serialization
// =========================

func (w *Writer) elements(a *Array) error {
	for _, e := range a.Elems {
		if err := w.writeIndent(); err != nil {
			return err
		}
		if e.Key != nil {
			if err := w.value(e.Key); err != nil {
				return err
			}
			if _, err := w.out.WriteString("="); err != nil {
				return err
			}
		}
		if err := w.node(e.Node); err != nil {
			return err
		}
		if err := w.newLine(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) node(n Node) error {
	switch v := n.(type) {
	case *Value:
		return w.value(v)
	case *Color:
		return w.color(v)
	case *Array:
		return w.array(v)
	default:
		return errors.New("pdx: unknown node type")
	}
}

func (w *Writer) array(a *Array) error {
	if len(a.Elems) == 0 {
		_, err := w.out.WriteString("{ }")
		return err
	}
	if isFlat(a) {
		if _, err := w.out.WriteString("{"); err != nil {
			return err
		}
		for _, e := range a.Elems {
			if _, err := w.out.WriteString(" "); err != nil {
				return err
			}
			if err := w.node(e.Node); err != nil {
				return err
			}
		}
		_, err := w.out.WriteString(" }")
		return err
	}

	if _, err := w.out.WriteString("{"); err != nil {
		return err
	}
	if err := w.newLine(); err != nil {
		return err
	}
	w.level++
	if err := w.elements(a); err != nil {
		return err
	}
	w.level--
	if err := w.writeIndent(); err != nil {
		return err
	}
	_, err := w.out.WriteString("}")
	return err
}

// isFlat: a pure list of scalars and colors goes on one line.
func isFlat(a *Array) bool {
	for _, e := range a.Elems {
		if e.Key != nil {
			return false
		}
		if _, ok := e.Node.(*Array); ok {
			return false
		}
	}
	return true
}

func (w *Writer) color(c *Color) error {
	if _, err := w.out.WriteString(c.Tag + " {"); err != nil {
		return err
	}
	for _, v := range c.Values {
		if _, err := w.out.WriteString(" "); err != nil {
			return err
		}
		if err := w.value(v); err != nil {
			return err
		}
	}
	_, err := w.out.WriteString(" }")
	return err
}

func (w *Writer) value(v *Value) error {
	raw := v.raw
	if v.charset != w.charset {
		raw = w.charset.Encode(v.charset.Decode(raw))
	}
	if !v.quoted {
		_, err := w.out.Write(raw)
		return err
	}
	if err := w.out.WriteByte('"'); err != nil {
		return err
	}
	if _, err := w.out.Write(raw); err != nil {
		return err
	}
	return w.out.WriteByte('"')
}

func (w *Writer) writeIndent() error {
	for i := 0; i < w.level; i++ {
		if _, err := w.out.WriteString(w.indent); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) newLine() error {
	if err := w.out.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	if w.maxLines > 0 && w.lines >= w.maxLines {
		return errTruncated
	}
	return nil
}
