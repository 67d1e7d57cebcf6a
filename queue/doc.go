// Package queue implements the per-task event channel bridging the
// background graph executor (sole producer) and the consumer iterator (sole
// reader). It provides FIFO delivery, a sentinel-based closure protocol
// triggered by terminal events, a heartbeat/watchdog loop that guarantees
// the listener terminates even if the producer hangs, and cooperative
// cross-process stop signaling through a shared TTL cache.
package queue
