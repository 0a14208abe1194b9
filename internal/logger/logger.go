package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level はログレベルを表す
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel は文字列をログレベルに変換する
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

var levelColors = map[Level][]color.Attribute{
	LevelDebug: {color.FgCyan},
	LevelInfo:  {color.FgGreen},
	LevelWarn:  {color.FgYellow},
	LevelError: {color.FgRed, color.Bold},
}

// Logger はスレッドセーフなロガー
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
	colorize bool
}

// Default はデフォルトのロガー
var Default = New(os.Stdout, LevelInfo)

// New は新しいロガーを作成する
func New(out io.Writer, minLevel Level) *Logger {
	return &Logger{
		out:      out,
		minLevel: minLevel,
	}
}

// SetLevel はログレベルを設定する
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// SetColor はレベル表示の色付けを切り替える
func (l *Logger) SetColor(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.colorize = enabled
}

// SetOutput は出力先を変更する
func (l *Logger) SetOutput(out io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = out
}

// Enabled は指定レベルが出力対象かを返す
func (l *Logger) Enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.minLevel
}

func (l *Logger) levelTag(level Level) string {
	tag := "[" + level.String() + "]"
	if !l.colorize {
		return tag
	}
	attrs, ok := levelColors[level]
	if !ok {
		return tag
	}
	// color.NoColor is process-wide; force per-logger output instead.
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(tag)
}

// log は指定されたレベルでログを出力する
func (l *Logger) log(level Level, component string, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minLevel {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	tag := l.levelTag(level)

	if component != "" {
		_, _ = fmt.Fprintf(l.out, "[%s] %s [%s] %s\n", timestamp, tag, component, msg)
	} else {
		_, _ = fmt.Fprintf(l.out, "[%s] %s %s\n", timestamp, tag, msg)
	}
}

// Debug はデバッグログを出力する
func (l *Logger) Debug(component string, format string, args ...any) {
	l.log(LevelDebug, component, format, args...)
}

// Info は情報ログを出力する
func (l *Logger) Info(component string, format string, args ...any) {
	l.log(LevelInfo, component, format, args...)
}

// Warn は警告ログを出力する
func (l *Logger) Warn(component string, format string, args ...any) {
	l.log(LevelWarn, component, format, args...)
}

// Error はエラーログを出力する
func (l *Logger) Error(component string, format string, args ...any) {
	l.log(LevelError, component, format, args...)
}

// グローバル関数（デフォルトロガーを使用）

// Debug はデバッグログを出力する
func Debug(component string, format string, args ...any) {
	Default.Debug(component, format, args...)
}

// Info は情報ログを出力する
func Info(component string, format string, args ...any) {
	Default.Info(component, format, args...)
}

// Warn は警告ログを出力する
func Warn(component string, format string, args ...any) {
	Default.Warn(component, format, args...)
}

// Error はエラーログを出力する
func Error(component string, format string, args ...any) {
	Default.Error(component, format, args...)
}
