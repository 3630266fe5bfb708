package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"
)

var mu sync.Mutex
var wr io.Writer
var tty bool
var logger *zap.SugaredLogger

// LogJSON routes every message through the zap logger instead of the plain
// text writer.
var LogJSON = false

// Level is the log level
// 0: silent  - do not log
// 1: normal  - show everything except debug and warn
// 2: verbose - show everything except debug
// 3: very verbose - show everything
var Level = 1

type tag struct {
	name  string
	color string
	level int
}

var (
	tagInfo  = tag{"INFO", "\x1b[36m", 1}
	tagHTTP  = tag{"HTTP", "\x1b[1m\x1b[30m", 1}
	tagError = tag{"ERRO", "\x1b[1m\x1b[31m", 1}
	tagFatal = tag{"FATA", "\x1b[31m", 1}
	tagWarn  = tag{"WARN", "\x1b[33m", 2}
	tagDebug = tag{"DEBU", "\x1b[35m", 3}
)

func init() {
	SetOutput(os.Stderr)
}

// SetOutput sets the output of the logger
func SetOutput(w io.Writer) {
	f, ok := w.(*os.File)
	mu.Lock()
	tty = ok && term.IsTerminal(int(f.Fd()))
	wr = w
	mu.Unlock()
}

// Output returns the output writer
func Output() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return wr
}

// Build a zap logger from the default production config or from a zap JSON
// config document.
func Build(c string) error {
	zcfg := zap.NewProductionConfig()
	if c != "" {
		zcfg = zap.Config{}
		if err := json.Unmarshal([]byte(c), &zcfg); err != nil {
			return err
		}
	}
	// filtering happens on Level, not inside zap
	zcfg.Level.SetLevel(zap.DebugLevel)
	// caller is always log.go
	zcfg.DisableCaller = true
	core, err := zcfg.Build()
	if err != nil {
		return err
	}
	defer core.Sync()
	logger = core.Sugar()
	return nil
}

// Set a zap logger
func Set(sl *zap.SugaredLogger) {
	logger = sl
}

// Get a zap logger
func Get() *zap.SugaredLogger {
	return logger
}

func write(t tag, formatted bool, format string, args ...interface{}) {
	if Level < t.level {
		return
	}
	var msg string
	if formatted {
		msg = fmt.Sprintf(format, args...)
	} else {
		msg = fmt.Sprint(args...)
	}
	if LogJSON && logger != nil {
		switch t {
		case tagError:
			logger.Error(msg)
		case tagFatal:
			logger.Fatal(msg)
		case tagWarn:
			logger.Warn(msg)
		case tagDebug:
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
		return
	}
	s := []byte(time.Now().Format("2006/01/02 15:04:05"))
	s = append(s, ' ')
	mu.Lock()
	defer mu.Unlock()
	if tty {
		s = append(s, t.color...)
	}
	s = append(s, '[')
	s = append(s, t.name...)
	s = append(s, ']')
	if tty {
		s = append(s, "\x1b[0m"...)
	}
	s = append(s, ' ')
	s = append(s, msg...)
	if len(s) == 0 || s[len(s)-1] != '\n' {
		s = append(s, '\n')
	}
	wr.Write(s)
}

// Infof ...
func Infof(format string, args ...interface{}) { write(tagInfo, true, format, args...) }

// Info ...
func Info(args ...interface{}) { write(tagInfo, false, "", args...) }

// HTTPf logs an inbound or outbound request.
func HTTPf(format string, args ...interface{}) { write(tagHTTP, true, format, args...) }

// HTTP ...
func HTTP(args ...interface{}) { write(tagHTTP, false, "", args...) }

// Errorf ...
func Errorf(format string, args ...interface{}) { write(tagError, true, format, args...) }

// Error ...
func Error(args ...interface{}) { write(tagError, false, "", args...) }

// Warnf ...
func Warnf(format string, args ...interface{}) { write(tagWarn, true, format, args...) }

// Warn ...
func Warn(args ...interface{}) { write(tagWarn, false, "", args...) }

// Debugf ...
func Debugf(format string, args ...interface{}) { write(tagDebug, true, format, args...) }

// Debug ...
func Debug(args ...interface{}) { write(tagDebug, false, "", args...) }

// Printf is an alias for Infof.
func Printf(format string, args ...interface{}) { Infof(format, args...) }

// Print is an alias for Info.
func Print(args ...interface{}) { Info(args...) }

// Fatalf logs and exits the process.
func Fatalf(format string, args ...interface{}) {
	write(tagFatal, true, format, args...)
	os.Exit(1)
}

// Fatal logs and exits the process.
func Fatal(args ...interface{}) {
	write(tagFatal, false, "", args...)
	os.Exit(1)
}
