// Package ingestion turns source files into documents, chapters and the job
// chain that processes them, and provides the handlers the scheduler runs
// for each job type.
//
// Ingest loads a file through a Source, splits it into chapters using the
// file's outline (positioned by an OffsetResolver) or fixed page windows,
// and stores the document with one embed, summarize and extract-concepts job
// per chapter plus one extract-metadata and one consolidate job.
//
// Handlers performs the work behind those jobs:
//   - embed: chunk the chapter, index it lexically and store embeddings
//   - summarize: summarize the chapter's chunks
//   - extract-concepts: extract and store the chapter's concepts
//   - extract-metadata: extract title, author, summary and keywords
//   - consolidate: merge chapter concepts into document concepts
//
// Watcher ingests files dropped into a directory.
package ingestion
