package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
	defaultTerminalAttempt = 10
)

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configure pruning of outbox rows. TerminalAttempts
// should match the publisher's max attempts so abandoned rows are collected too.
// DeadLetters is optional; without it the DLQ grows until purged by hand.
type OutboxRetentionJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Outbox           outboxPruner
	DeadLetters      deadLetterPruner
	Retention        time.Duration
	DLQRetention     time.Duration
	TerminalAttempts int
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		outbox:    params.Outbox,
		dlq:       params.DeadLetters,
		retention: params.Retention,
		dlqKeep:   params.DLQRetention,
		terminal:  params.TerminalAttempts,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.dlqKeep <= 0 {
		job.dlqKeep = defaultDLQRetention
	}
	if job.terminal <= 0 {
		job.terminal = defaultTerminalAttempt
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	outbox    outboxPruner
	dlq       deadLetterPruner
	retention time.Duration
	dlqKeep   time.Duration
	terminal  int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now()
	cutoff := now.Add(-j.retention)
	dlqCutoff := now.Add(-j.dlqKeep)
	var deleted, deadDeleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = j.outbox.DeletePublishedBefore(ctx, tx, cutoff, j.terminal)
		if err != nil {
			return fmt.Errorf("prune outbox: %w", err)
		}
		if j.dlq == nil {
			return nil
		}
		deadDeleted, err = j.dlq.DeleteFailedBefore(ctx, tx, dlqCutoff)
		if err != nil {
			return fmt.Errorf("prune outbox dlq: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":            cutoff,
		"dlq_cutoff":        dlqCutoff,
		"terminal_attempts": j.terminal,
		"rows_deleted":      deleted,
		"dlq_rows_deleted":  deadDeleted,
	}), "outbox pruned")
	return nil
}
