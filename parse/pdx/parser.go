package pdx

import (
	"fmt"
	"io"
)

// =========================
// Public API
// =========================

// Parse reads all of r and parses it as a text savegame body.
func Parse(r io.Reader, cs Charset) (*Array, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data, 0, cs)
}

// ParseBytes parses data from start. The returned tree references data
// directly; callers must not modify data afterwards.
func ParseBytes(data []byte, start int, cs Charset) (*Array, error) {
	ctx, err := Tokenize(data, start, cs)
	if err != nil {
		return nil, err
	}
	return ParseContext(ctx)
}

// ParseContext builds the tree from an already tokenized context.
func ParseContext(ctx *Context) (*Array, error) {
	p := &parser{ctx: ctx, root: NewArray()}
	p.stack = append(p.stack, frame{arr: p.root, open: -1})
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.root, nil
}

// =========================
// Parser Implementation
// =========================

// frame is one open '{'. Nesting lives on this slice rather than the
// goroutine stack, so deep saves cannot overflow it.
type frame struct {
	arr  *Array
	open int // token index of '{', -1 for the root
}

type parser struct {
	ctx   *Context
	root  *Array
	stack []frame
	pos   int
}

func (p *parser) run() error {
	n := p.ctx.Len()
	for p.pos < n {
		cur := p.stack[len(p.stack)-1].arr
		switch p.ctx.Types[p.pos] {
		case TokenClose:
			if len(p.stack) == 1 {
				return p.errAt(p.pos, ErrUnexpectedClose)
			}
			p.stack = p.stack[:len(p.stack)-1]
			p.pos++

		case TokenEquals:
			return p.errAt(p.pos, ErrUnexpectedEquals)

		case TokenOpen:
			arr := NewArray()
			cur.Elems = append(cur.Elems, Element{Node: arr})
			p.stack = append(p.stack, frame{arr: arr, open: p.pos})
			p.pos++

		default:
			if p.peek(1) == TokenEquals {
				key := p.value(p.pos)
				p.pos += 2
				if err := p.parseValue(cur, key); err != nil {
					return err
				}
				continue
			}
			if err := p.parseValue(cur, nil); err != nil {
				return err
			}
		}
	}
	if len(p.stack) > 1 {
		top := p.stack[len(p.stack)-1]
		return p.errAt(top.open, ErrUnterminatedArray)
	}
	return nil
}

// parseValue consumes the value at p.pos and appends it to cur.
func (p *parser) parseValue(cur *Array, key *Value) error {
	if p.pos >= p.ctx.Len() {
		return p.errAt(p.pos, ErrMissingValue)
	}
	switch p.ctx.Types[p.pos] {
	case TokenOpen:
		arr := NewArray()
		cur.Elems = append(cur.Elems, Element{Key: key, Node: arr})
		p.stack = append(p.stack, frame{arr: arr, open: p.pos})
		p.pos++
		return nil
	case TokenClose, TokenEquals:
		return p.errAt(p.pos, ErrMissingValue)
	}

	if p.peek(1) == TokenOpen && p.ctx.IsColorTag(p.pos) {
		c, err := p.parseColor()
		if err != nil {
			return err
		}
		cur.Elems = append(cur.Elems, Element{Key: key, Node: c})
		return nil
	}

	cur.Elems = append(cur.Elems, Element{Key: key, Node: p.value(p.pos)})
	p.pos++
	return nil
}

// parseColor consumes tag '{' scalar scalar scalar '}'.
func (p *parser) parseColor() (*Color, error) {
	start := p.pos
	c := &Color{Tag: string(p.ctx.Bytes(p.pos)), Values: make([]*Value, 0, 3)}
	p.pos += 2
	for p.pos < p.ctx.Len() {
		switch p.ctx.Types[p.pos] {
		case TokenClose:
			p.pos++
			if len(c.Values) != 3 {
				return nil, p.errDetail(start, ErrInvalidColor,
					fmt.Sprintf("%s with %d components", c.Tag, len(c.Values)))
			}
			return c, nil
		case TokenLiteral, TokenQuoted:
			c.Values = append(c.Values, p.value(p.pos))
			p.pos++
		default:
			return nil, p.errDetail(start, ErrInvalidColor, "unexpected "+p.ctx.describe(p.pos))
		}
	}
	return nil, p.errAt(start+1, ErrUnterminatedArray)
}

func (p *parser) value(i int) *Value {
	return &Value{
		raw:     p.ctx.Bytes(i),
		quoted:  p.ctx.Types[i] == TokenQuoted,
		charset: p.ctx.Charset,
	}
}

// peek returns the type of the token off positions ahead, or TokenLiteral
// past the end (which never matches an operator check).
func (p *parser) peek(off int) TokenType {
	if p.pos+off >= p.ctx.Len() {
		return TokenLiteral
	}
	return p.ctx.Types[p.pos+off]
}

func (p *parser) errAt(tok int, reason error) error {
	return &ParseError{Offset: p.ctx.Offset(tok), Reason: reason}
}

func (p *parser) errDetail(tok int, reason error, detail string) error {
	return &ParseError{Offset: p.ctx.Offset(tok), Reason: reason, Detail: detail}
}
