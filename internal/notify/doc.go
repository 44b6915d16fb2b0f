// Package notify batches alert messages and delivers them over a pluggable
// transport.
//
// Messages are buffered in arrival order. When the buffer reaches the batch
// size it is joined with newlines and sent as a single transport call; Flush
// sends whatever remains. Sends are paced by a token-bucket limiter and
// guarded by a circuit breaker, so a dead endpoint is skipped instead of
// retried for every batch.
//
// Transports:
//
//	log       writes batches to the logger (default, dry run)
//	telegram  posts to the Telegram Bot API
//	kafka     publishes one record per batch
package notify
