// Package scheduler runs persisted ingestion jobs with bounded concurrency.
//
// A single polling loop claims ready jobs from the job repository and hands
// each one to a worker from a fixed-size pool. Mutual exclusion between jobs
// is expressed as a claim filter rather than locks:
//
//   - a document-scoped job (extract-metadata, consolidate) runs alone for its document
//   - summarize and extract-concepts wait for their chapter's embed job
//   - consolidate waits until no chapter-scoped job of the document is pending
//   - jobs inside their backoff window are skipped
//
// Each job moves pending -> running -> done | pending (retry) | failed.
// Cancellation is cooperative: handlers poll Task.CheckCancelled at safe
// points and return core.ErrCancelled, which puts the job back to pending
// without charging an attempt.
//
// # Usage
//
//	s, err := scheduler.New(store.Jobs, store.Documents, handlers,
//	    scheduler.WithMaxConcurrency(3))
//	if err != nil {
//	    return err
//	}
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	defer s.Stop()
package scheduler
