package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liveinteract/realtime-load-tester/internal/domain"
)

// FileRepository persists run and batch reports as JSON files in a reports
// directory. Reports are write-once artifacts named with a millisecond
// timestamp; directory creation is idempotent.
type FileRepository struct {
	fs     afero.Fs
	dir    string
	logger *logrus.Logger
}

// NewFileRepository creates a repository rooted at dir.
func NewFileRepository(fs afero.Fs, dir string, logger *logrus.Logger) *FileRepository {
	return &FileRepository{fs: fs, dir: dir, logger: logger}
}

// SaveRunReport writes one run report and returns the file name.
func (r *FileRepository) SaveRunReport(report domain.Report) (string, error) {
	name := fmt.Sprintf("load-test-report-%d.json", report.Timestamp.UnixMilli())
	return name, r.write(name, report)
}

// SaveBatchReport writes one batch report and returns the file name.
func (r *FileRepository) SaveBatchReport(report domain.BatchReport) (string, error) {
	name := fmt.Sprintf("batch-test-report-%d.json", report.Timestamp.UnixMilli())
	return name, r.write(name, report)
}

func (r *FileRepository) write(name string, payload any) error {
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}

	path := filepath.Join(r.dir, name)
	if _, err := r.fs.Stat(path); err == nil {
		return fmt.Errorf("report %s already exists", name)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check for existing report: %w", err)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := afero.WriteFile(r.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	r.logger.WithField("path", path).Debug("report written")
	return nil
}
