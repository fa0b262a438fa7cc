package log

import (
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var std = newLogger(os.Stdout)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "ts",
			logrus.FieldKeyMsg:  "action",
		},
	})
	return l
}

// Setup applies the configured level and sink. An empty level keeps info.
func Setup(level string, w io.Writer) error {
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		std.SetLevel(lvl)
	}
	if w != nil {
		std.SetOutput(w)
	}
	return nil
}

func SetOutput(w io.Writer) { std.SetOutput(w) }

// Writer exposes the sink so fiber's access logger writes next to our events.
func Writer() io.Writer { return std.Out }

// L is the logger for code that runs outside a request.
func L() *logrus.Entry { return logrus.NewEntry(std) }

func entry(c *fiber.Ctx, kind, action string, fields map[string]any) *logrus.Entry {
	e := std.WithField("kind", kind)
	if c != nil {
		e = e.WithFields(logrus.Fields{
			"ip":     c.IP(),
			"method": c.Method(),
			"path":   c.Path(),
			"status": c.Response().StatusCode(),
		})
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			e = e.WithField("req_id", rid)
		}
		if uid, ok := c.Locals("user_id").(string); ok && uid != "" {
			e = e.WithField("user_id", uid)
		}
	}
	if len(fields) > 0 {
		e = e.WithField("fields", fields)
	}
	return e
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	entry(c, "info", action, fields).Info(action)
}

func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	entry(c, "audit", action, fields).Info(action)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	entry(c, "security", action, fields).Warn(action)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	e := entry(c, "error", action, fields)
	if err != nil {
		e = e.WithField("err", err.Error())
	}
	e.Error(action)
}
