// Package store provides SQLite-backed persistence for wiki pages, page
// versions, images and users.
//
// The store is the concrete persistence layer consumed by the exporter, the
// importer, the smart-sync engine and the API server. Each mutation is a single
// statement or a single transaction, so readers never observe a half-applied
// create-page, create-version or update-page.
//
// # Invariants
//
//   - pages.path is UNIQUE; CreatePage returns wiki.ErrConflict on duplicates
//   - page_versions has UNIQUE(page_id, version_number); gaps are allowed
//   - images.filename is not unique; lookups by filename return the newest
//   - Lookups that match nothing return wiki.ErrNotFound
//   - Listings are ordered deterministically (path, version number, id)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as RFC 3339 text in UTC with nanosecond precision, and
// group and tag lists as JSON arrays.
package store
