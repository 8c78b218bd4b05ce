package pdx

// pdx 包实现 Clausewitz 存档文本格式的词法分析、语法分析与序列化。
//
// 范围：
// - 零拷贝词法分析（字面量只记录偏移与长度）
// - 显式栈解析，不使用递归
// - 键值对 / 裸元素共存于同一个 Array
// - 重复键按出现顺序全部保留
// - 颜色节点 rgb / hsv / hsv360
//
// 非目标：
// - 二进制格式（需先由 melter 转为文本）
// - 注释保留

import (
	"bytes"
	"fmt"
)

// =========================
// Token Definitions
// =========================

type TokenType uint8

const (
	TokenLiteral TokenType = iota // bare word: key, number, date, yes/no
	TokenQuoted                   // "quoted string", range excludes the quotes
	TokenEquals                   // =
	TokenOpen                     // {
	TokenClose                    // }
)

func (t TokenType) String() string {
	switch t {
	case TokenLiteral:
		return "LITERAL"
	case TokenQuoted:
		return "QUOTED"
	case TokenEquals:
		return "="
	case TokenOpen:
		return "{"
	case TokenClose:
		return "}"
	default:
		return "UNKNOWN"
	}
}

// Context is the zero-copy backing store of a parse. Token i covers
// Data[Begin[i] : Begin[i]+Length[i]].
type Context struct {
	Data    []byte
	Begin   []int
	Length  []int
	Types   []TokenType
	Charset Charset
}

// Len returns the number of tokens.
func (c *Context) Len() int { return len(c.Types) }

// Bytes returns the raw bytes of token i without copying.
func (c *Context) Bytes(i int) []byte {
	b := c.Begin[i]
	return c.Data[b : b+c.Length[i]]
}

// Offset returns the byte offset of token i, or len(Data) past the end.
func (c *Context) Offset(i int) int {
	if i >= len(c.Begin) {
		return len(c.Data)
	}
	if c.Types[i] == TokenQuoted {
		return c.Begin[i] - 1
	}
	return c.Begin[i]
}

func (c *Context) push(t TokenType, begin, length int) {
	c.Types = append(c.Types, t)
	c.Begin = append(c.Begin, begin)
	c.Length = append(c.Length, length)
}

// =========================
// Tokenizer
// =========================

// Tokenize scans data starting at start. Comments are dropped.
func Tokenize(data []byte, start int, cs Charset) (*Context, error) {
	// rough guess: one token every six bytes
	hint := (len(data) - start) / 6
	if hint < 0 {
		hint = 0
	}
	ctx := &Context{
		Data:    data,
		Begin:   make([]int, 0, hint),
		Length:  make([]int, 0, hint),
		Types:   make([]TokenType, 0, hint),
		Charset: cs,
	}

	i := start
	for i < len(data) {
		ch := data[i]
		switch {
		case isSpace(ch):
			i++
		case ch == '#':
			for i < len(data) && data[i] != '\n' {
				i++
			}
		case ch == '=':
			ctx.push(TokenEquals, i, 1)
			i++
		case ch == '{':
			ctx.push(TokenOpen, i, 1)
			i++
		case ch == '}':
			ctx.push(TokenClose, i, 1)
			i++
		case ch == '"':
			end, ok := scanQuoted(data, i+1)
			if !ok {
				return nil, &ParseError{Offset: i, Reason: ErrUnterminatedString}
			}
			ctx.push(TokenQuoted, i+1, end-(i+1))
			i = end + 1
		default:
			j := i
			for j < len(data) && !isDelimiter(data[j]) {
				j++
			}
			ctx.push(TokenLiteral, i, j-i)
			i = j
		}
	}
	return ctx, nil
}

// scanQuoted returns the index of the closing quote.
func scanQuoted(data []byte, i int) (int, bool) {
	for i < len(data) {
		switch data[i] {
		case '\\':
			i += 2
			continue
		case '"':
			return i, true
		}
		i++
	}
	return 0, false
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

func isDelimiter(ch byte) bool {
	return isSpace(ch) || ch == '=' || ch == '{' || ch == '}' || ch == '"' || ch == '#'
}

// =========================
// Color Tags
// =========================

var (
	tagRGB    = []byte("rgb")
	tagHSV    = []byte("hsv")
	tagHSV360 = []byte("hsv360")
)

// IsColorTag reports whether token i is exactly rgb, hsv or hsv360.
// Runs once per array-like construct, so it compares raw bytes.
func (c *Context) IsColorTag(i int) bool {
	if c.Types[i] != TokenLiteral {
		return false
	}
	n := c.Length[i]
	if n != 3 && n != 6 {
		return false
	}
	b := c.Begin[i]
	if c.Data[b] != 'r' && c.Data[b] != 'h' {
		return false
	}
	lit := c.Data[b : b+n]
	return bytes.Equal(lit, tagRGB) || bytes.Equal(lit, tagHSV) || bytes.Equal(lit, tagHSV360)
}

func (c *Context) describe(i int) string {
	if i >= c.Len() {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", c.Types[i], c.Bytes(i))
}
