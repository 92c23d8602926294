package persist

import (
	"log"
	"os"
)

// Logger is a thin wrapper around the standard library logger that brackets
// a log file with STARTUP and SHUTDOWN markers, so that a file can be
// inspected after the fact to see exactly which process lifetime produced
// which lines.
type Logger struct {
	*log.Logger
	file *os.File
}

// NewLogger returns a Logger that appends to (or creates) filename.
func NewLogger(filename string) (*Logger, error) {
	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	l := &Logger{
		Logger: log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile|log.LUTC),
		file:   f,
	}
	l.Println("STARTUP: resource pipeline log opened")
	return l, nil
}

// Close writes a shutdown marker and closes the underlying file.
func (l *Logger) Close() error {
	l.Println("SHUTDOWN: resource pipeline log closed")
	return l.file.Close()
}
