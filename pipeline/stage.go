package pipeline

// IntermediateStage is one node of the ordered stage chain of spec.md §6.2:
// "process_message(cfg, message) — the stage owns message for the call. It
// must eventually call pass(...) (possibly with a replacement message) or
// drop(...)." Process models both outcomes directly: returning a non-nil
// Message passes it on (the same one, or a caller-built replacement);
// returning (nil, nil) drops it; returning a non-nil error isolates the
// failure (spec.md §5: a stage error drops the message but doesn't kill the
// pipeline) without needing a distinct drop/pass call.
type IntermediateStage interface {
	Name() string
	Process(msg *Message) (*Message, error)
}

// StorageStage is one fan-out leaf of spec.md §6.3: "store_packet(cfg,
// message, template_store) — consume the message; ref-count already
// accounts for this stage." The pipeline calls Store exactly once per
// message per storage stage and releases the pipeline's reference
// afterwards regardless of the returned error.
type StorageStage interface {
	Name() string
	Store(msg *Message) error
}
