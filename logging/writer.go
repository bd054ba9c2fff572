package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const dayLayout = "2006-01-02"

// dailyFile appends to {director}/{day}/{level}.log. Size based rotation
// inside a day is lumberjack's; crossing midnight closes the old day's file
// and opens the next one.
type dailyFile struct {
	cfg   Config
	level string
	clock func() time.Time

	mu  sync.Mutex
	day string
	out *lumberjack.Logger
}

func newDailyFile(cfg Config, level string) *dailyFile {
	return &dailyFile{cfg: cfg, level: level, clock: time.Now}
}

func (f *dailyFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current().Write(p)
}

// Sync is a no-op: lumberjack writes through to the file.
func (f *dailyFile) Sync() error { return nil }

// current returns the file for today. Callers hold f.mu.
func (f *dailyFile) current() *lumberjack.Logger {
	day := f.clock().Format(dayLayout)
	if f.out != nil && f.day == day {
		return f.out
	}
	if f.out != nil {
		_ = f.out.Close()
	}

	dir := filepath.Join(f.cfg.Director, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		dir = f.cfg.Director
		_ = os.MkdirAll(dir, 0o755)
	}
	f.day = day
	f.out = &lumberjack.Logger{
		Filename:   filepath.Join(dir, f.level+".log"),
		MaxSize:    f.cfg.MaxSize,
		MaxBackups: f.cfg.MaxBackups,
		MaxAge:     f.cfg.MaxAge,
		Compress:   f.cfg.Compress,
		LocalTime:  true,
	}
	return f.out
}

func (f *dailyFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.out == nil {
		return nil
	}
	err := f.out.Close()
	f.out, f.day = nil, ""
	return err
}

// openFiles tracks every dailyFile so CloseAllWriters can flush them at exit.
var openFiles struct {
	sync.Mutex
	list []*dailyFile
}

func trackFile(f *dailyFile) *dailyFile {
	openFiles.Lock()
	openFiles.list = append(openFiles.list, f)
	openFiles.Unlock()
	return f
}

// CloseAllWriters closes every log file opened by loggers of this process.
func CloseAllWriters() error {
	openFiles.Lock()
	files := openFiles.list
	openFiles.list = nil
	openFiles.Unlock()

	var firstErr error
	for _, f := range files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ io.WriteCloser = (*dailyFile)(nil)
