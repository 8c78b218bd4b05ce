package pdx

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// =========================
// AST Definitions
// =========================

type Kind uint8

const (
	KindValue Kind = iota
	KindArray
	KindColor
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindArray:
		return "array"
	case KindColor:
		return "color"
	default:
		return "unknown"
	}
}

// Node is one of *Value, *Array or *Color. Consumers switch on the
// concrete type.
type Node interface {
	Kind() Kind
}

type ValueType uint8

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeDate
)

func (t ValueType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	default:
		return "string"
	}
}

var ErrWrongType = errors.New("value has a different type")

// -------- Value --------

// Value keeps the literal exactly as it appeared in the input. For
// quoted strings raw is the escaped content between the quotes. Typed
// accessors decode lazily.
type Value struct {
	raw     []byte
	quoted  bool
	charset Charset
}

func (*Value) Kind() Kind { return KindValue }

// NewString returns a quoted string value.
func NewString(s string) *Value {
	return &Value{raw: []byte(escape(s)), quoted: true}
}

// NewLiteral returns an unquoted value with s as its literal text.
func NewLiteral(s string) *Value {
	return &Value{raw: []byte(s)}
}

func NewInt(i int64) *Value {
	return &Value{raw: strconv.AppendInt(nil, i, 10)}
}

func NewFloat(f float64) *Value {
	return &Value{raw: strconv.AppendFloat(nil, f, 'f', 3, 64)}
}

func NewBool(b bool) *Value {
	if b {
		return &Value{raw: []byte("yes")}
	}
	return &Value{raw: []byte("no")}
}

func NewDate(d Date) *Value {
	return &Value{raw: []byte(d.String())}
}

// Raw returns the literal bytes as stored, in the source charset.
func (v *Value) Raw() []byte { return v.raw }

func (v *Value) Quoted() bool { return v.quoted }

func (v *Value) Charset() Charset { return v.charset }

// Text returns the decoded, unescaped string form.
func (v *Value) Text() string {
	s := v.charset.Decode(v.raw)
	if v.quoted {
		return unescape(s)
	}
	return s
}

func (v *Value) String() string {
	if v.quoted {
		return `"` + v.charset.Decode(v.raw) + `"`
	}
	return v.charset.Decode(v.raw)
}

// Type classifies the literal by its lexical shape. Quoted values are
// always strings.
func (v *Value) Type() ValueType {
	if v.quoted {
		return TypeString
	}
	b := v.raw
	switch {
	case bytes.Equal(b, []byte("yes")), bytes.Equal(b, []byte("no")):
		return TypeBool
	case isIntShape(b):
		return TypeInt
	}
	dots := bytes.Count(b, []byte("."))
	switch {
	case dots == 1 && isNumberShape(b):
		return TypeFloat
	case (dots == 2 || dots == 3) && isNumberShape(b):
		return TypeDate
	}
	return TypeString
}

func (v *Value) Int() (int64, error) {
	if v.Type() != TypeInt {
		return 0, fmt.Errorf("%w: %s is %s", ErrWrongType, v, v.Type())
	}
	return strconv.ParseInt(string(v.raw), 10, 64)
}

func (v *Value) Float() (float64, error) {
	switch v.Type() {
	case TypeInt, TypeFloat:
		return strconv.ParseFloat(string(v.raw), 64)
	}
	return 0, fmt.Errorf("%w: %s is %s", ErrWrongType, v, v.Type())
}

func (v *Value) Bool() (bool, error) {
	if v.Type() != TypeBool {
		return false, fmt.Errorf("%w: %s is %s", ErrWrongType, v, v.Type())
	}
	return v.raw[0] == 'y', nil
}

// Date decodes Y.M.D or Y.M.D.H. Quoted dates are accepted.
func (v *Value) Date() (Date, error) {
	return ParseDate(v.Text())
}

func isIntShape(b []byte) bool {
	if len(b) > 0 && (b[0] == '-' || b[0] == '+') {
		b = b[1:]
	}
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// isNumberShape: optional sign, digits and single dots, no empty groups.
func isNumberShape(b []byte) bool {
	if len(b) > 0 && (b[0] == '-' || b[0] == '+') {
		b = b[1:]
	}
	if len(b) == 0 || b[0] == '.' || b[len(b)-1] == '.' {
		return false
	}
	prevDot := false
	for _, c := range b {
		if c == '.' {
			if prevDot {
				return false
			}
			prevDot = true
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
		prevDot = false
	}
	return true
}

// escape quotes the characters the tokenizer treats specially inside
// a quoted string.
func escape(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// -------- Array --------

// Element is either a bare node (Key == nil) or a key/value pair.
type Element struct {
	Key  *Value
	Node Node
}

func (e Element) Keyed() bool { return e.Key != nil }

// KeyText returns the decoded key, or "" for bare elements.
func (e Element) KeyText() string {
	if e.Key == nil {
		return ""
	}
	return e.Key.Text()
}

func (e Element) keyIs(key string) bool {
	if e.Key == nil {
		return false
	}
	if e.Key.charset == UTF8 && !e.Key.quoted {
		return string(e.Key.raw) == key
	}
	return e.Key.Text() == key
}

// Array is an ordered multimap: duplicate keys are kept in file order
// and bare elements may sit next to keyed ones.
type Array struct {
	Elems []Element
}

func NewArray() *Array {
	return &Array{}
}

func (*Array) Kind() Kind { return KindArray }

func (a *Array) Len() int { return len(a.Elems) }

// Put appends a key/value pair. Existing pairs with the same key stay.
func (a *Array) Put(key string, n Node) {
	k := NewLiteral(key)
	if key == "" || strings.ContainsAny(key, " \t\r\n=#{}\"") {
		k = NewString(key)
	}
	a.Elems = append(a.Elems, Element{Key: k, Node: n})
}

// Append adds a bare element.
func (a *Array) Append(n Node) {
	a.Elems = append(a.Elems, Element{Node: n})
}

// Get returns the first node stored under key.
func (a *Array) Get(key string) (Node, bool) {
	for _, e := range a.Elems {
		if e.keyIs(key) {
			return e.Node, true
		}
	}
	return nil, false
}

// GetAll returns every node stored under key in file order.
func (a *Array) GetAll(key string) []Node {
	var out []Node
	for _, e := range a.Elems {
		if e.keyIs(key) {
			out = append(out, e.Node)
		}
	}
	return out
}

func (a *Array) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// Items returns the bare elements in order.
func (a *Array) Items() []Node {
	var out []Node
	for _, e := range a.Elems {
		if e.Key == nil {
			out = append(out, e.Node)
		}
	}
	return out
}

// IsObject reports whether every element is keyed. Empty arrays are both
// objects and lists.
func (a *Array) IsObject() bool {
	for _, e := range a.Elems {
		if e.Key == nil {
			return false
		}
	}
	return true
}

func (a *Array) IsList() bool {
	for _, e := range a.Elems {
		if e.Key != nil {
			return false
		}
	}
	return true
}

// -------- Color --------

type Color struct {
	Tag    string
	Values []*Value
}

func (*Color) Kind() Kind { return KindColor }

// =========================
// Structural Equality
// =========================

// Equal compares two trees by structure: same element order, same keys,
// same duplicate multiplicities, same color tags and same value text.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *Value:
		y, ok := b.(*Value)
		return ok && x.quoted == y.quoted && x.Text() == y.Text()
	case *Color:
		y, ok := b.(*Color)
		if !ok || x.Tag != y.Tag || len(x.Values) != len(y.Values) {
			return false
		}
		for i := range x.Values {
			if !Equal(x.Values[i], y.Values[i]) {
				return false
			}
		}
		return true
	case *Array:
		y, ok := b.(*Array)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			ex, ey := x.Elems[i], y.Elems[i]
			if ex.Keyed() != ey.Keyed() {
				return false
			}
			if ex.Keyed() && ex.KeyText() != ey.KeyText() {
				return false
			}
			if !Equal(ex.Node, ey.Node) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// =========================
// Safe Access Helpers
// =========================

// Get walks keyed children from root. Empty path segments are skipped.
func Get(root *Array, path ...string) (Node, bool) {
	var cur Node = root
	for _, p := range path {
		if len(p) == 0 {
			continue
		}
		a, ok := cur.(*Array)
		if !ok {
			return nil, false
		}
		cur, ok = a.Get(p)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetText returns the text of the value at path.
func GetText(root *Array, path ...string) (string, bool) {
	n, ok := Get(root, path...)
	if !ok {
		return "", false
	}
	v, ok := n.(*Value)
	if !ok {
		return "", false
	}
	return v.Text(), true
}
