package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edirooss/slowdog/internal/watchdog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// reportPusher is the write side of redis.ReportRepository.
type reportPusher interface {
	Push(ctx context.Context, payload []byte) error
}

// reportReader is the read side of redis.ReportRepository.
type reportReader interface {
	Recent(ctx context.Context, n int64) ([][]byte, error)
	Len(ctx context.Context) (int64, error)
}

// RedisSink pushes each report as JSON onto a capped Redis list.
type RedisSink struct {
	repo reportPusher
}

func NewRedisSink(repo reportPusher) *RedisSink {
	return &RedisSink{repo: repo}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Deliver(ctx context.Context, r *watchdog.Report) error {
	payload, err := EncodeReport(r)
	if err != nil {
		return err
	}
	return s.repo.Push(ctx, payload)
}

// RedisReports reads back the reports a RedisSink stored, so every instance
// behind a shared Redis serves the same history.
type RedisReports struct {
	log  *zap.Logger
	repo reportReader
}

func NewRedisReports(log *zap.Logger, repo reportReader) *RedisReports {
	return &RedisReports{
		log:  log.Named("redis_reports"),
		repo: repo,
	}
}

// List returns up to limit reports, newest first. limit <= 0 means all
// retained. Entries that fail to decode are logged and skipped.
func (s *RedisReports) List(ctx context.Context, limit int) ([]*watchdog.Report, error) {
	payloads, err := s.repo.Recent(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]*watchdog.Report, 0, len(payloads))
	for _, p := range payloads {
		r, err := DecodeReport(p)
		if err != nil {
			s.log.Warn("skipping undecodable report", zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Lookup scans the retained reports for id.
func (s *RedisReports) Lookup(ctx context.Context, id uuid.UUID) (*watchdog.Report, bool, error) {
	reports, err := s.List(ctx, 0)
	if err != nil {
		return nil, false, err
	}
	for _, r := range reports {
		if r.ID == id {
			return r, true, nil
		}
	}
	return nil, false, nil
}

func (s *RedisReports) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Len(ctx)
	return int(n), err
}

// StoredReport is the JSON shape stored in Redis.
type StoredReport struct {
	ID          string    `json:"id"`
	CapturedAt  time.Time `json:"captured_at"`
	Request     string    `json:"request"`
	Method      string    `json:"method"`
	Scheme      string    `json:"scheme"`
	Host        string    `json:"host"`
	Path        string    `json:"path"`
	Query       string    `json:"query,omitempty"`
	Route       string    `json:"route,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Hostname    string    `json:"hostname"`
	GoroutineID int64     `json:"goroutine_id"`
	PID         int       `json:"pid"`
	Started     time.Time `json:"started"`
	Text        string    `json:"text"`
}

// EncodeReport serializes r as a StoredReport.
func EncodeReport(r *watchdog.Report) ([]byte, error) {
	req := r.Request
	b, err := json.Marshal(StoredReport{
		ID:          r.ID.String(),
		CapturedAt:  r.CapturedAt.UTC(),
		Request:     req.String(),
		Method:      req.Method,
		Scheme:      req.Scheme,
		Host:        req.Host,
		Path:        req.Path,
		Query:       req.RawQuery,
		Route:       req.Route,
		RequestID:   req.RequestID,
		ClientIP:    req.ClientIP,
		UserAgent:   req.UserAgent,
		Hostname:    r.Hostname,
		GoroutineID: r.GoroutineID,
		PID:         r.PID,
		Started:     r.Started.UTC(),
		Text:        r.Text(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return b, nil
}

// DecodeReport rebuilds a Report from EncodeReport's output.
func DecodeReport(b []byte) (*watchdog.Report, error) {
	var s StoredReport
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return nil, fmt.Errorf("report id: %w", err)
	}
	return watchdog.NewReport(watchdog.Report{
		ID:         id,
		CapturedAt: s.CapturedAt,
		Request: watchdog.Request{
			Method:    s.Method,
			Scheme:    s.Scheme,
			Host:      s.Host,
			Path:      s.Path,
			RawQuery:  s.Query,
			Route:     s.Route,
			RequestID: s.RequestID,
			ClientIP:  s.ClientIP,
			UserAgent: s.UserAgent,
		},
		Hostname:    s.Hostname,
		GoroutineID: s.GoroutineID,
		PID:         s.PID,
		Started:     s.Started,
	}, s.Text), nil
}
