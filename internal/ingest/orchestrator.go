package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/logging"
	"github.com/sari-dev/sari/internal/parser"
	"github.com/sari-dev/sari/internal/store"
	"github.com/sari-dev/sari/internal/textindex"
	"github.com/sari-dev/sari/internal/types"
)

// Orchestrator owns the single-writer transition of §4.4: for each
// validated ParseResult it writes Store and TextIndex in the same
// logical batch keyed by doc_id, rolling back the other sink if either
// fails.
type Orchestrator struct {
	cfg       *config.Config
	collector *Collector
	loader    *Loader
	registry  *parser.Registry
	validator *Validator
	writer    *store.Writer
	index     *textindex.Index
	queue     *WorkQueue
	bucket    *TokenBucket
	failures  map[types.DocID]*types.FailedTask
}

// NewOrchestrator wires the Collector/Loader/Parser/Validator stages to
// a single Store Writer and TextIndex.
func NewOrchestrator(cfg *config.Config, reg *parser.Registry, w *store.Writer, idx *textindex.Index) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		collector: NewCollector(cfg),
		loader:    NewLoader(cfg),
		registry:  reg,
		validator: NewValidator(cfg),
		writer:    w,
		index:     idx,
		queue:     NewWorkQueue(),
		bucket:    NewTokenBucket(cfg.Ingest.TokenBucketCapacity, cfg.Ingest.TokenBucketRefillPerSec),
		failures:  make(map[types.DocID]*types.FailedTask),
	}
}

// Queue exposes the work queue so a watcher/scanner can push items and
// a worker pool can drain it.
func (o *Orchestrator) Queue() *WorkQueue { return o.queue }

// ScanRoot walks root via the Collector and pushes every item onto the
// priority queue for worker processing.
func (o *Orchestrator) ScanRoot(ctx context.Context, rootID types.RootID, root string) error {
	items := make(chan FileItem, 256)
	errCh := make(chan error, 1)
	go func() {
		errCh <- o.collector.Collect(ctx, rootID, root, items)
		close(items)
	}()
	for item := range items {
		o.queue.Push(item)
	}
	return <-errCh
}

// ProcessOne runs one FileItem through Loader -> Parser -> Validator ->
// Store+TextIndex, honoring backpressure via the token bucket.
func (o *Orchestrator) ProcessOne(ctx context.Context, item FileItem) error {
	if err := o.bucket.Take(ctx); err != nil {
		return err
	}

	docID := types.NewDocID(item.RootID, item.RelPath)

	if item.IsExcluded {
		return o.deleteDoc(docID)
	}

	loaded, err := o.loader.Load(item)
	if err != nil {
		o.recordFailure(docID, err)
		return nil
	}

	var bodyText string
	var pres parser.ParseResult
	if loaded.ParseStatus == types.ParseOK {
		pres = o.registry.Dispatch(ctx, &parser.Context{
			Path:    item.RelPath,
			Content: loaded.Content,
			DocID:   docID,
			RootID:  item.RootID,
		})
		bodyText = string(loaded.Content)
	} else {
		pres = parser.ParseResult{Status: loaded.ParseStatus, Reason: loaded.ParseReason}
	}

	verdict := o.validator.Validate(pres, bodyText)

	file := &types.File{
		Path:        docID,
		RootID:      item.RootID,
		RelPath:     item.RelPath,
		Repo:        item.Repo,
		MTime:       item.MTime,
		Size:        item.Size,
		Content:     loaded.Content,
		ContentHash: types.ContentHash(loaded.Content),
		ParseStatus: verdict.Status,
		ParseReason: verdict.Reason,
		IsBinary:    loaded.IsBinary,
		Sampled:     loaded.Sampled,
		LastSeen:    time.Now(),
	}

	if err := o.writer.Upsert(file, pres.Symbols, pres.Relations); err != nil {
		o.recordFailure(docID, err)
		return nil
	}

	if verdict.Status == types.ParseOK {
		o.index.Upsert(textindex.DocMeta{
			DocID:    docID,
			RootID:   item.RootID,
			RelPath:  item.RelPath,
			MTime:    item.MTime,
			FileType: item.Ext,
			InSymbol: len(pres.Symbols) > 0,
			Sampled:  loaded.Sampled,
		}, item.RelPath, bodyText)
	} else {
		o.index.Delete(docID)
	}

	if loaded.ParseStatus == types.ParseOK && verdict.Status == types.ParseFailed {
		o.recordFailure(docID, errors.New("parse failed: "+strings.Join(verdict.Errors, "; ")))
		return nil
	}
	o.clearFailure(docID)
	return nil
}

func (o *Orchestrator) deleteDoc(docID types.DocID) error {
	if err := o.writer.Delete([]types.DocID{docID}); err != nil {
		logging.Warn(logging.CategoryIngest, "delete failed for %s: %v (demoted to warning)", docID, err)
	}
	o.index.Delete(docID)
	return nil
}

// recordFailure enqueues a FailedTask with exponential backoff and
// surfaces it via the doctor tool after FailedTaskSurfaceThreshold
// attempts, per §4.4 "Retry and failure".
func (o *Orchestrator) recordFailure(docID types.DocID, cause error) {
	ft := o.failures[docID]
	if ft == nil {
		ft = &types.FailedTask{Path: docID}
		o.failures[docID] = ft
	}
	ft.Attempts++
	ft.Error = cause.Error()
	ft.LastFailed = time.Now()
	ft.NextRetry = ft.LastFailed.Add(types.RetryBackoff(ft.Attempts))

	if err := o.writer.UpsertFailedTask(ft); err != nil {
		logging.LogIngest("ingest: failed to persist failed-task record for %s: %v", docID, err)
	}
	if ft.Attempts >= types.FailedTaskSurfaceThreshold {
		logging.Warn(logging.CategoryIngest, "%s has failed %d times and will be surfaced by doctor", docID, ft.Attempts)
	}
}

func (o *Orchestrator) clearFailure(docID types.DocID) {
	if _, ok := o.failures[docID]; !ok {
		return
	}
	delete(o.failures, docID)
	if err := o.writer.ClearFailedTask(docID); err != nil {
		logging.LogIngest("ingest: failed to clear failed-task record for %s: %v", docID, err)
	}
}
