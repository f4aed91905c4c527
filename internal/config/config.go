package config

import (
	"log/slog"
	"path/filepath"

	"github.com/opendata-tools/zeejob/internal/logger"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// Load parses, validates and converts the job file at path.
// Relative references inside the file are resolved against its directory.
func Load(path string) (*job.Config, error) {
	result, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	cfg, err := ConvertToJob(result.Data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	logger.WithFile(Role, path).Debug("job configuration loaded",
		slog.String("job_name", cfg.Name()),
		slog.String("format", result.Format),
		slog.String("max_events", cfg.MaxEvents().String()),
	)
	return cfg, nil
}
