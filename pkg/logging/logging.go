package logging

// logging 包初始化 slog：每次运行生成一个会话 id，日志写入 <dir>/<session-id>-pdxu.log，
// 无法创建文件时退回到 stderr。

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	sessionID     string
	sessionIDOnce sync.Once
)

// SessionID is generated once per process.
func SessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// ParseLevel maps a config level name to a slog level. Unknown names
// map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Session is an installed logger and the file behind it.
type Session struct {
	Logger *slog.Logger
	Path   string // empty in stderr fallback mode
	file   *os.File
}

func (s *Session) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Setup installs the default slog logger writing to a session file in
// dir. On failure it falls back to stderr and returns the cause together
// with a usable session.
func Setup(dir, level string) (*Session, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fallback(opts, fmt.Errorf("create log directory: %w", err))
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-pdxu.log", SessionID()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fallback(opts, fmt.Errorf("open log file: %w", err))
	}

	s := &Session{Logger: newLogger(file, opts), Path: path, file: file}
	slog.SetDefault(s.Logger)
	return s, nil
}

func fallback(opts *slog.HandlerOptions, cause error) (*Session, error) {
	s := &Session{Logger: newLogger(os.Stderr, opts)}
	slog.SetDefault(s.Logger)
	s.Logger.Warn("file logging unavailable, using stderr", "err", cause)
	return s, cause
}

func newLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, opts)).With("session", SessionID())
}
