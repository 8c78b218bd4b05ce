package game

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dzjyyds666/pdxu/parse"
	"github.com/dzjyyds666/pdxu/parse/pdx"
	"github.com/google/uuid"
)

var (
	ErrUnknownGame = errors.New("unknown game")
	ErrNoDate      = errors.New("savegame has no date")
)

// campaignNamespace seeds campaign uuids for games whose saves carry no
// campaign id of their own.
var campaignNamespace = uuid.MustParse("7c1d3f4e-2b6a-4e8f-9a51-0d2c6b8e4f17")

type headerKind uint8

const (
	headerMagic headerKind = iota // fixed text/binary prefix
	headerSav                     // SAV<version><type>... first line
	headerNone
)

// Game describes one supported title: its savegame container, text
// dialect and where the summary fields live in the parsed tree.
type Game struct {
	ID        string
	Name      string
	Extension string
	Charset   pdx.Charset

	header      headerKind
	textMagic   []byte
	binaryMagic []byte

	// dotted paths into the gamestate
	datePath     string
	tagPath      string
	campaignPath string
	versionPath  string
	ironmanPath  string
	modsPath     string
}

// Info is the summary extracted from a parsed savegame: the minimum the
// store needs for listing and campaign assignment.
type Info struct {
	Date       pdx.Date
	Tag        string
	CampaignID uuid.UUID
	Version    string
	Ironman    bool
	Mods       []string
	Melted     bool
}

var (
	EU4 = &Game{
		ID: "eu4", Name: "Europa Universalis IV", Extension: "eu4", Charset: pdx.Latin1,
		header: headerMagic, textMagic: []byte("EU4txt"), binaryMagic: []byte("EU4bin"),
		datePath: "date", tagPath: "player", campaignPath: "campaign_id",
		versionPath: "savegame_version", ironmanPath: "ironman", modsPath: "mod_enabled",
	}
	HOI4 = &Game{
		ID: "hoi4", Name: "Hearts of Iron IV", Extension: "hoi4", Charset: pdx.UTF8,
		header: headerMagic, textMagic: []byte("HOI4txt"), binaryMagic: []byte("HOI4bin"),
		datePath: "date", tagPath: "player", campaignPath: "game_unique_id",
		versionPath: "version", ironmanPath: "ironman", modsPath: "mods",
	}
	CK3 = &Game{
		ID: "ck3", Name: "Crusader Kings III", Extension: "ck3", Charset: pdx.UTF8,
		header:   headerSav,
		datePath: "meta_data.meta_date", tagPath: "meta_data.meta_player_name",
		campaignPath: "playthrough_id", versionPath: "meta_data.version",
		ironmanPath: "meta_data.ironman", modsPath: "meta_data.mods",
	}
	Stellaris = &Game{
		ID: "stellaris", Name: "Stellaris", Extension: "sav", Charset: pdx.UTF8,
		header:   headerNone,
		datePath: "date", tagPath: "name", versionPath: "version",
		ironmanPath: "ironman",
	}
)

var registry = map[string]*Game{
	EU4.ID:       EU4,
	HOI4.ID:      HOI4,
	CK3.ID:       CK3,
	Stellaris.ID: Stellaris,
}

// Lookup returns the game with the given id.
func Lookup(id string) (*Game, error) {
	g, ok := registry[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, id)
	}
	return g, nil
}

// All returns every known game ordered by id.
func All() []*Game {
	out := make([]*Game, 0, len(registry))
	for _, g := range registry {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *Game) String() string { return g.ID }

// SaveFileName is the name of the raw savegame inside an entry directory.
func (g *Game) SaveFileName() string {
	return "savegame." + g.Extension
}

// =========================
// Detection
// =========================

// gamestate unpacks a zip container if present.
func (g *Game) gamestate(data []byte) ([]byte, error) {
	off := parse.ZipOffset(data)
	if off < 0 {
		return data, nil
	}
	// a zip header inside an uncompressed text body is not a container
	if off > 0 && !(g.header == headerSav && g.savCompressed(data)) {
		return data, nil
	}
	body, _, err := parse.Member(data[off:], "gamestate")
	return body, err
}

// IsBinary reports whether raw file content needs melting first.
func (g *Game) IsBinary(data []byte) bool {
	switch g.header {
	case headerSav:
		t, ok := g.savType(data)
		return ok && (t == "01" || t == "03")
	case headerMagic:
		body, err := g.gamestate(data)
		if err != nil {
			return false
		}
		return parse.HasMagic(body, g.binaryMagic)
	default:
		return false
	}
}

// savType returns the two type digits of a SAV header line.
func (g *Game) savType(data []byte) (string, bool) {
	line, _ := parse.FirstLine(data)
	if len(line) < 7 || string(line[:3]) != "SAV" {
		return "", false
	}
	return string(line[5:7]), true
}

func (g *Game) savCompressed(data []byte) bool {
	t, ok := g.savType(data)
	return ok && (t == "02" || t == "03")
}

// Body returns the text to parse and the offset parsing starts at.
func (g *Game) Body(data []byte) ([]byte, int, error) {
	body, err := g.gamestate(data)
	if err != nil {
		return nil, 0, err
	}
	switch g.header {
	case headerMagic:
		if parse.HasMagic(body, g.textMagic) {
			return body, len(g.textMagic), nil
		}
	case headerSav:
		if _, ok := g.savType(body); ok {
			_, next := parse.FirstLine(body)
			return body, next, nil
		}
	}
	return body, 0, nil
}

// Parse unpacks and parses text savegame content in this game's dialect.
func (g *Game) Parse(data []byte) (*pdx.Array, error) {
	body, start, err := g.Body(data)
	if err != nil {
		return nil, err
	}
	return pdx.ParseBytes(body, start, g.Charset)
}

// =========================
// Write back
// =========================

// savMetaKey is the leading block whose size a SAV header records.
const savMetaKey = "meta_data"

// Encode serializes root into a savegame the game loads again. The
// container of stored is kept: zip members other than the gamestate are
// copied and a SAV header keeps its version and compression.
func (g *Game) Encode(stored []byte, root *pdx.Array, indent string) ([]byte, error) {
	if g.header == headerSav {
		return g.encodeSav(stored, root, indent)
	}
	var magic []byte
	if g.header == headerMagic {
		magic = g.textMagic
	}
	text, err := g.serialize(root, indent, magic)
	if err != nil {
		return nil, err
	}
	if parse.IsZip(stored) {
		return parse.ReplaceMember(stored, text, "gamestate")
	}
	return text, nil
}

func (g *Game) serialize(root *pdx.Array, indent string, magic []byte) ([]byte, error) {
	var buf bytes.Buffer
	if len(magic) > 0 {
		buf.Write(magic)
		buf.WriteByte('\n')
	}
	if err := pdx.Write(&buf, root, g.Charset, indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeSav writes the header line, the plain meta block and then either
// the rest as text or a zip whose gamestate member holds everything.
func (g *Game) encodeSav(stored []byte, root *pdx.Array, indent string) ([]byte, error) {
	meta, rest := &pdx.Array{}, root
	if root.Len() > 0 && root.Elems[0].KeyText() == savMetaKey {
		meta = &pdx.Array{Elems: root.Elems[:1]}
		rest = &pdx.Array{Elems: root.Elems[1:]}
	}
	metaText, err := g.serialize(meta, indent, nil)
	if err != nil {
		return nil, err
	}
	restText, err := g.serialize(rest, indent, nil)
	if err != nil {
		return nil, err
	}

	off := parse.ZipOffset(stored)
	compressed := g.savCompressed(stored) && off > 0
	var out bytes.Buffer
	out.WriteString(savHeader(stored, compressed, len(metaText)))
	out.Write(metaText)
	if !compressed {
		out.Write(restText)
		return out.Bytes(), nil
	}
	full := append(append([]byte{}, metaText...), restText...)
	archive, err := parse.ReplaceMember(stored[off:], full, "gamestate")
	if err != nil {
		return nil, err
	}
	out.Write(archive)
	return out.Bytes(), nil
}

// savHeader renders SAV<version><type><id><meta size>, taking version and
// id from the stored header. Melted binary types become their text types.
func savHeader(stored []byte, compressed bool, metaSize int) string {
	version, id := "01", "00000000"
	line, _ := parse.FirstLine(stored)
	if len(line) >= 7 && string(line[:3]) == "SAV" {
		version = string(line[3:5])
	}
	if len(line) >= 15 && string(line[:3]) == "SAV" {
		id = string(line[7:15])
	}
	typ := "00"
	if compressed {
		typ = "02"
	}
	return fmt.Sprintf("SAV%s%s%s%08x\n", version, typ, id, metaSize)
}

// =========================
// Summary
// =========================

func lookup(root *pdx.Array, path string) (pdx.Node, bool) {
	if path == "" {
		return nil, false
	}
	return pdx.Get(root, strings.Split(path, ".")...)
}

func lookupText(root *pdx.Array, path string) string {
	n, ok := lookup(root, path)
	if !ok {
		return ""
	}
	if v, ok := n.(*pdx.Value); ok {
		return v.Text()
	}
	return ""
}

// Summarize extracts listing info from a parsed gamestate.
func (g *Game) Summarize(root *pdx.Array, melted bool) (*Info, error) {
	info := &Info{Melted: melted}

	n, ok := lookup(root, g.datePath)
	if !ok {
		return nil, ErrNoDate
	}
	v, ok := n.(*pdx.Value)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNoDate, g.datePath, n.Kind())
	}
	d, err := v.Date()
	if err != nil {
		return nil, err
	}
	info.Date = d

	info.Tag = lookupText(root, g.tagPath)
	info.Version = g.version(root)
	info.Ironman = lookupText(root, g.ironmanPath) == "yes"
	info.Mods = g.mods(root)
	info.CampaignID = g.campaignID(root, info.Tag)
	return info, nil
}

// campaignID uses the save's own id when it is a uuid and derives a
// stable one otherwise.
func (g *Game) campaignID(root *pdx.Array, tag string) uuid.UUID {
	raw := lookupText(root, g.campaignPath)
	if raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
		return uuid.NewSHA1(campaignNamespace, []byte(g.ID+"/campaign/"+raw))
	}
	return uuid.NewSHA1(campaignNamespace, []byte(g.ID+"/tag/"+tag))
}

// version renders either a plain string or a {first second third}
// block as dotted text.
func (g *Game) version(root *pdx.Array) string {
	n, ok := lookup(root, g.versionPath)
	if !ok {
		return ""
	}
	switch v := n.(type) {
	case *pdx.Value:
		return v.Text()
	case *pdx.Array:
		var parts []string
		for _, k := range []string{"first", "second", "third", "forth", "fourth"} {
			if s, ok := pdx.GetText(v, k); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ".")
	}
	return ""
}

func (g *Game) mods(root *pdx.Array) []string {
	n, ok := lookup(root, g.modsPath)
	if !ok {
		return nil
	}
	arr, ok := n.(*pdx.Array)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr.Items() {
		if v, ok := item.(*pdx.Value); ok {
			out = append(out, v.Text())
		}
	}
	return out
}

// DefaultEntryName names a fresh entry after its in-game date.
func (g *Game) DefaultEntryName(info *Info) string {
	return info.Date.String()
}

// DefaultCampaignName names a fresh campaign after the player.
func (g *Game) DefaultCampaignName(info *Info) string {
	if info.Tag == "" {
		return g.Name
	}
	return info.Tag
}
