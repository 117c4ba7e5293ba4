package appender

import (
	"bytes"
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// NoLevelName is the level of events written without one, such as
// zerolog.Logger.Print or a plain Write.
const NoLevelName = "NONE"

type levelWriter struct {
	app      *Appender
	category string
}

// NewLevelWriter adapts app to a zerolog output. zerolog has no logger names, so
// every event carries the given category.
func NewLevelWriter(app *Appender, category string) zerolog.LevelWriter {
	return &levelWriter{app: app, category: category}
}

func (w *levelWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel publishes one rendered event. zerolog reuses p, so it is copied.
func (w *levelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	w.app.Append(context.Background(), Event{
		Category: w.category,
		Level:    levelName(l),
		Message:  bytes.Clone(p),
	})
	return len(p), nil
}

func levelName(l zerolog.Level) string {
	if name := l.String(); name != "" {
		return strings.ToUpper(name)
	}
	return NoLevelName
}
