package parse

// parse 包负责在进入文本解析器之前识别存档容器：zip 压缩包、文件头魔数与内容校验和。

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

var (
	ErrEmptyArchive   = errors.New("archive has no members")
	ErrMemberTooLarge = errors.New("archive member exceeds size limit")
)

// zipMagic is the local file header signature.
var zipMagic = []byte("PK\x03\x04")

// MaxMemberSize bounds a single decompressed member.
const MaxMemberSize = 1 << 30

// =========================
// Containers
// =========================

// IsZip reports whether data starts with a zip local file header.
func IsZip(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// ZipOffset returns the position of the first zip header inside data,
// or -1. Some formats put a plain text header in front of the archive.
func ZipOffset(data []byte) int {
	return bytes.Index(data, zipMagic)
}

// Member returns the first member of the zip archive in data whose name
// matches one of names, falling back to the first member.
func Member(data []byte, names ...string) ([]byte, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, "", fmt.Errorf("open archive: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, "", ErrEmptyArchive
	}

	pick := pickMember(zr, names)

	rc, err := pick.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open member %s: %w", pick.Name, err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rc, MaxMemberSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read member %s: %w", pick.Name, err)
	}
	if n > MaxMemberSize {
		return nil, "", fmt.Errorf("%w: %s", ErrMemberTooLarge, pick.Name)
	}
	return buf.Bytes(), pick.Name, nil
}

func pickMember(zr *zip.Reader, names []string) *zip.File {
	for _, name := range names {
		for _, f := range zr.File {
			if f.Name == name {
				return f
			}
		}
	}
	return zr.File[0]
}

// ReplaceMember rebuilds the zip archive in data with the member Member
// would pick replaced by content. Other members are copied unchanged.
func ReplaceMember(data, content []byte, names ...string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, ErrEmptyArchive
	}
	pick := pickMember(zr, names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
		if err != nil {
			return nil, fmt.Errorf("create member %s: %w", f.Name, err)
		}
		if f == pick {
			_, err = w.Write(content)
		} else {
			err = copyMember(w, f)
		}
		if err != nil {
			return nil, fmt.Errorf("write member %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func copyMember(w io.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, io.LimitReader(rc, MaxMemberSize))
	return err
}

// =========================
// Headers
// =========================

// HasMagic reports whether data starts with magic.
func HasMagic(data, magic []byte) bool {
	return len(magic) > 0 && bytes.HasPrefix(data, magic)
}

// FirstLine returns the bytes before the first newline and the offset
// just after it.
func FirstLine(data []byte) ([]byte, int) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return data, len(data)
	}
	return data[:i], i + 1
}

// =========================
// Checksums
// =========================

// Checksum is the content hash used for deduplication.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
