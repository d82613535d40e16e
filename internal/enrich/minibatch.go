package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsync/internal/model"
)

// MiniBatch is the lightweight variant of ProcessChunk for callers with very
// tight timeouts: a hard-capped batch size, a truncated eligibility scan, a
// fixed managers filter and a shorter inter-company delay.
func (o *Orchestrator) MiniBatch(ctx context.Context, batchSize, startOffset int) (*model.MiniBatchStats, *model.MiniBatchInfo, error) {
	if batchSize <= 0 {
		batchSize = o.cfg.MiniBatchDefaultSize
	}
	if batchSize > o.cfg.MiniBatchMaxSize {
		batchSize = o.cfg.MiniBatchMaxSize
	}
	if startOffset < 0 {
		startOffset = 0
	}

	zap.L().Info("processing mini batch",
		zap.Int("offset", startOffset),
		zap.Int("batch_size", batchSize),
	)

	// Only scan far enough to serve this batch; the caller carries the
	// offset forward, so no session state is kept.
	eligible, more, err := o.scanner.EligibleUpTo(ctx, startOffset+batchSize)
	if err != nil {
		return nil, nil, err
	}

	var batch []model.Company
	if startOffset < len(eligible) {
		batch = eligible[startOffset:]
	}

	stats := &model.MiniBatchStats{}
	for i, company := range batch {
		result, err := o.enrichOne(ctx, company, o.cfg.MiniBatchContacts, model.FilterManagers)
		if err != nil {
			return nil, nil, err
		}

		stats.CompaniesProcessed++
		if result.Status == model.CompanyStatusEnriched {
			stats.CompaniesEnriched++
			stats.ContactsCreated += result.ContactsCreated
		}

		if i < len(batch)-1 {
			if err := o.sleep(ctx, o.cfg.MiniBatchDelay); err != nil {
				return nil, nil, eris.Wrap(err, "enrich: mini batch cancelled")
			}
		}
	}

	info := &model.MiniBatchInfo{
		Offset:    startOffset,
		BatchSize: batchSize,
		HasMore:   more,
		Completed: !more,
	}
	if more {
		next := startOffset + batchSize
		info.NextOffset = &next
	}
	return stats, info, nil
}
