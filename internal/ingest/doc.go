// Package ingest models the engine's ingestion task and supervisor
// documents.
//
// The types are a typed passthrough: they decode, re-encode and can be
// built programmatically, but nothing here submits them. Filters and
// metrics reuse the query algebra, so an ingestion filter is written and
// validated the same way as a query filter.
package ingest
