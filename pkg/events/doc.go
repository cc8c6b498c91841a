// Package events provides fire-and-forget emission of exposure events from
// the evaluation path to the external metrics pipeline.
//
// Evaluation is synchronous and latency-sensitive, so emission is modeled as
// an enqueue onto a bounded in-memory buffer drained by a single background
// worker. Emit never blocks and never fails the caller: under backpressure
// the event is dropped, counted, and logged. Delivery failures in the worker
// are logged and do not retry; exposure events are an observability signal,
// not a system of record.
package events
