package sink

import (
	"context"
	"fmt"

	"github.com/edirooss/slowdog/internal/watchdog"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// FileSink writes each report to a new, uniquely named file in dir.
type FileSink struct {
	log *zap.Logger
	fs  afero.Fs
	dir string
}

// NewFileSink returns a FileSink writing under dir; a nil fs means the OS filesystem.
func NewFileSink(log *zap.Logger, fs afero.Fs, dir string) *FileSink {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileSink{
		log: log.Named("file_sink"),
		fs:  fs,
		dir: dir,
	}
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Deliver(_ context.Context, r *watchdog.Report) error {
	path, err := s.Write(r.Bytes())
	if err != nil {
		return err
	}
	s.log.Info("report written", zap.Stringer("report_id", r.ID), zap.String("path", path))
	return nil
}

// Write stores b in a fresh slow_request_*.log file and returns its path.
func (s *FileSink) Write(b []byte) (string, error) {
	f, err := afero.TempFile(s.fs, s.dir, "slow_request_*.log")
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}

	_, werr := f.Write(b)
	cerr := f.Close()
	if werr != nil {
		return f.Name(), fmt.Errorf("write report file: %w", werr)
	}
	if cerr != nil {
		return f.Name(), fmt.Errorf("close report file: %w", cerr)
	}
	return f.Name(), nil
}
