package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"flowline/pkg/config"
)

func TestParseLevelDefaultsToInfo(t *testing.T) {
	lvl, err := parseLevel("")
	if err != nil {
		t.Fatalf("parseLevel: %v", err)
	}
	if lvl != zapcore.InfoLevel {
		t.Errorf("expected InfoLevel, got %v", lvl)
	}
}

func TestParseLevelAcceptsKnownLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := parseLevel(in)
		if err != nil {
			t.Fatalf("parseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	if _, err := parseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewConsoleDefault(t *testing.T) {
	sl, err := New("console-logger", config.LoggerConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sl.Sync()
	sl.Infow("hello", "k", "v")
}

func TestNewFileRequiresPrefix(t *testing.T) {
	if _, err := New("file-logger", config.LoggerConfig{Output: "file"}); err == nil {
		t.Fatal("expected error when output=file has no file_prefix")
	}
}

func TestNewFileWritesToTempDir(t *testing.T) {
	dir := t.TempDir()
	sl, err := New("file-logger", config.LoggerConfig{
		Output:     "file",
		FilePrefix: dir + "/flowline",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sl.Sync()
	sl.Infow("rotated write", "k", "v")
}

func TestNewRejectsUnknownOutput(t *testing.T) {
	if _, err := New("bad-logger", config.LoggerConfig{Output: "syslog"}); err == nil {
		t.Fatal("expected error for unknown output kind")
	}
}
