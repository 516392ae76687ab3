// Package pipeline moves chat-log records from producers to the database
// without ever blocking the producer.
//
// It has two halves:
//   - Queue: an in-process FIFO; Enqueue is constant-time and never fails
//     observably (a hard cap drops the oldest records instead)
//   - Writer: the single background consumer, a
//     Disconnected -> Connected -> Backoff state machine that drains the
//     queue in transactional batches and requeues a batch wholesale on
//     any failure
package pipeline
