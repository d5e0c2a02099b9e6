package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/foliosync/internal/reliability"
)

// BackupJob drives the nightly store backup.
type BackupJob struct {
	service *reliability.BackupService
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *reliability.BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes a backup
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	return j.service.CreateAndUploadBackup(ctx)
}
