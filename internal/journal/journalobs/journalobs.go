package journalobs

import (
	"context"
	"time"

	"fx-analyst-bot/internal/interfaces"
	"fx-analyst-bot/internal/logger"
	"fx-analyst-bot/internal/trace"
	"fx-analyst-bot/internal/types"
)

type observableJournal struct {
	journal interfaces.Journal
	sink    string
}

var _ interfaces.Journal = (*observableJournal)(nil)

// Wrap adds a journal.Append span and logging around a sink.
func Wrap(journal interfaces.Journal, sink string) interfaces.Journal {
	return &observableJournal{journal: journal, sink: sink}
}

func (oj *observableJournal) Append(ctx context.Context, records []types.LogRecord) error {
	ctx, span := trace.StartSpan(ctx, "journal.Append")
	defer span.End()

	if len(records) == 0 {
		logger.DebugSkip(ctx, 1, "No resolvable setups to journal", "sink", oj.sink)
		return nil
	}

	start := time.Now()
	if err := oj.journal.Append(ctx, records); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Journal append failed", err,
			"sink", oj.sink,
			"rows", len(records),
		)
		return err
	}

	logger.InfoSkip(ctx, 1, "Journal rows appended",
		"sink", oj.sink,
		"rows", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (oj *observableJournal) Close() error {
	return oj.journal.Close()
}
