package main

import "context"

// Block is one piece of page content from the source, already reduced to
// its plain-text payload by the transport.
type Block struct {
	ID          string
	Kind        string
	Text        string
	HasChildren bool
}

// sourceAPI abstracts the Notion listing endpoints the migration needs. All
// three operations are cursor-paged and are driven through paginate so every
// underlying fetch passes the shared rate limiter. Implementations surface a
// *rateLimitSignal on an HTTP 429-equivalent rejection.
type sourceAPI interface {
	// SearchDatabases lists one page of databases shared with the integration.
	SearchDatabases(ctx context.Context, cursor string) ([]SourceDatabase, string, error)

	// QueryRecords lists one page of records from a database.
	QueryRecords(ctx context.Context, databaseID, cursor string) ([]SourceRecord, string, error)

	// BlockChildren lists one page of content blocks under a page or block.
	BlockChildren(ctx context.Context, blockID, cursor string) ([]Block, string, error)
}
