/*
Package runtime implements the renderflow client: the push channel, the frame
classifier, the remote queue clients, and the event forwarder.

# Components

The package is organized around a handful of collaborators wired together by
the Service:

  - Bus (bus.go): synchronous in-process publish/subscribe, registration
    order preserved, per-handler panic recovery.
  - Manager (connection.go): owns one push channel at a time and drives the
    Disconnected -> Connecting -> Open -> {Closing | Reconnecting} lifecycle
    with exponential-backoff redials.
  - Classifier (classifier.go): normalizes inbound frames — bare numbers,
    typed records, artifact batches — into Classification values and
    ProgressEvents.
  - Watcher (watcher.go): ties a client id to the channel, keys the push URL,
    and routes taskProgress events to the caller's handler.
  - QueueClient (queueclient.go, remote.go): validates, defaults, and submits
    render jobs; cancels and lists them. Everything reports through the
    uniform Result shape.
  - UploadClient / ModerationClient (upload.go, moderation.go): reference
    image uploads and prompt screening.
  - Forwarder (forwarder.go): bridges bus events onto a Watermill publisher
    selected through the forward package.

# Errors

Operations exposed through Result never return raw errors; remote failures
are normalized into ErrorInfo codes. Constructors and channel operations
return the sentinel errors from internal/runtime/errors.
*/
package runtime
