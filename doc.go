// Package renderflow is a client SDK for a remote render-job queue. It
// submits render jobs over HTTP, watches their progress over a reconnecting
// push channel, and republishes the classified progress stream on an
// in-process event bus — optionally forwarding it to an external broker
// (Kafka, RabbitMQ, NATS, HTTP, or Go channels) through Watermill.
//
// The Service is the entry point: fill a Config, create the Service, register
// bus handlers, and call WatchJob. Progress frames arrive in whatever shape
// the remote pipeline emits — bare numbers, typed records, artifact batches —
// and are normalized into ProgressEvent values before they reach handlers.
//
// # Push channel
//
// The channel dials the configured push URL with the watched client id as the
// key query parameter. An unexpected close schedules a redial with
// exponential backoff; a manual close, or a peer close with code 1000, never
// reconnects. When the configured attempts are exhausted a single
// reconnectFailed event fires and the channel stays down until the next
// WatchJob call.
//
// # Remote queue
//
// SubmitJob validates the required parameters, fills the pipeline defaults,
// stamps fresh correlation ids, and posts the merged body to the queue
// endpoint. CancelJob and ListQueue cover the rest of the queue surface, and
// UploadClient and ModerationClient handle reference images and prompt
// screening. Every operation returns the uniform Result shape: no raw error
// or panic crosses that boundary.
//
// # Forwarding
//
// Setting Config.ForwarderSystem bridges the bus onto a Watermill publisher:
// progress events go to the progress topic, artifact batches to the artifacts
// topic, each message carrying correlation metadata. Sinks register
// themselves on import:
//
//	import _ "github.com/drblury/renderflow/forward/kafka"
//
// # Observability
//
// All components log through ServiceLogger (slog-backed by default), submit
// calls are traced with OpenTelemetry, and Prometheus collectors cover
// reconnects, frames, submissions, and forwarded events. Set
// Config.MetricsEnabled to serve them on Config.MetricsPort.
package renderflow
