package sink

import (
	"context"

	"github.com/edirooss/slowdog/internal/watchdog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSink emits each report as one structured log entry, with the request
// metadata attached as an "http" object.
type LogSink struct {
	log   *zap.Logger
	level zapcore.Level
}

// NewLogSink logs through log.Named(name) at level.
func NewLogSink(log *zap.Logger, name string, level zapcore.Level) *LogSink {
	return &LogSink{
		log:   log.Named(name),
		level: level,
	}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, r *watchdog.Report) error {
	s.Log(s.level, "slow request watchdog",
		zap.String("route", r.Request.Route),
		zap.Stringer("request", r.Request),
		zap.Stringer("report_id", r.ID),
		zap.String("report", r.Text()),
		requestField(r.Request),
	)
	return nil
}

// Log writes msg at level with fields.
func (s *LogSink) Log(level zapcore.Level, msg string, fields ...zap.Field) {
	if ce := s.log.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

func requestField(req watchdog.Request) zap.Field {
	return zap.Dict("http",
		zap.String("method", req.Method),
		zap.String("scheme", req.Scheme),
		zap.String("host", req.Host),
		zap.String("path", req.Path),
		zap.String("query", req.RawQuery),
		zap.String("request_id", req.RequestID),
		zap.String("client_ip", req.ClientIP),
		zap.String("user_agent", req.UserAgent),
	)
}
