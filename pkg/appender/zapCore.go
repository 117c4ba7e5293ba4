package appender

import (
	"context"

	"go.uber.org/zap/zapcore"
)

// RootCategory is the category of events logged through an unnamed zap logger.
const RootCategory = "root"

type zapCore struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	app *Appender
}

// NewCore returns a zapcore.Core that publishes every enabled entry through app.
// The logger name is the category, the capitalized level is the level, and enc
// renders the message body.
func NewCore(app *Appender, enc zapcore.Encoder, enab zapcore.LevelEnabler) zapcore.Core {
	return &zapCore{
		LevelEnabler: enab,
		enc:          enc,
		app:          app,
	}
}

func (c *zapCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &zapCore{
		LevelEnabler: c.LevelEnabler,
		enc:          c.enc.Clone(),
		app:          c.app,
	}
	for i := range fields {
		fields[i].AddTo(clone.enc)
	}
	return clone
}

func (c *zapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *zapCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := make([]byte, buf.Len())
	copy(msg, buf.Bytes())
	buf.Free()

	category := ent.LoggerName
	if category == "" {
		category = RootCategory
	}

	c.app.Append(context.Background(), Event{
		Category: category,
		Level:    ent.Level.CapitalString(),
		Message:  msg,
	})
	return nil
}

func (c *zapCore) Sync() error {
	return nil
}
