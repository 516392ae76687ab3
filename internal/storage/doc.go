// Package storage persists chat-log records into a relational database.
//
// It covers:
//   - Connection-string parsing into a ConnSpec (scheme picks the dialect)
//   - Dialect adapters for MySQL, PostgreSQL and SQLite
//   - A sqlx-backed Store with idempotent per-network schema bootstrap,
//     transactional batch inserts and retention pruning
package storage
