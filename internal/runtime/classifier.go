package runtime

import (
	"math"
	"strconv"
	"strings"

	jsoncodec "github.com/drblury/renderflow/internal/runtime/jsoncodec"
)

// FrameKind tags the syntactic shape of an inbound push frame.
type FrameKind int

const (
	// FrameOpaque is a frame that parsed as neither JSON nor a number. It
	// still flows through as a generic message event.
	FrameOpaque FrameKind = iota
	// FrameNumber is a bare numeric literal, the progress shorthand.
	FrameNumber
	// FrameRecord is a keyed JSON object.
	FrameRecord
	// FrameSequence is a JSON array, usually a batch artifact list.
	FrameSequence
)

// Classification is the normalized result of one inbound frame. The shape
// detection rules are cumulative: a record with a type field and a progress
// field yields both a named event and a progress event.
type Classification struct {
	Kind FrameKind
	Raw  []byte

	// Record holds the parsed object for FrameRecord frames.
	Record map[string]any
	// Sequence holds the parsed array for FrameSequence frames.
	Sequence []any
	// Number holds the value of FrameNumber frames.
	Number float64

	// EventName is the record's type field, dispatched as a named event.
	EventName string
	// Progress is set when the frame carried a usable progress signal.
	Progress *ProgressEvent
	// BatchArtifacts is set for output-batch sequences and additionally
	// dispatched as a generatedImages event.
	BatchArtifacts []string
}

// Payload returns the most specific parsed representation of the frame: the
// record, the sequence, the number, or the raw text.
func (c *Classification) Payload() any {
	switch c.Kind {
	case FrameRecord:
		return c.Record
	case FrameSequence:
		return c.Sequence
	case FrameNumber:
		return c.Number
	default:
		return string(c.Raw)
	}
}

// ClassifyFrame normalizes one raw inbound frame. Pure: no side effects, no
// state. Rules are applied in strict precedence order; see the Classification
// field docs for what each rule produces.
func ClassifyFrame(raw []byte) *Classification {
	cls := &Classification{Kind: FrameOpaque, Raw: raw}

	var parsed any
	if err := jsoncodec.Unmarshal(raw, &parsed); err != nil {
		// Not JSON. A frame like "42" is valid JSON and never lands here,
		// but tolerate loosely formatted numerics ("42 ", "+7") anyway.
		if n, perr := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64); perr == nil {
			cls.Kind = FrameNumber
			cls.Number = n
			cls.Progress = &ProgressEvent{Percent: clampPercent(n), Raw: raw}
		}
		return cls
	}

	switch v := parsed.(type) {
	case map[string]any:
		cls.Kind = FrameRecord
		cls.Record = v
		classifyRecord(cls, v)
	case []any:
		cls.Kind = FrameSequence
		cls.Sequence = v
		classifySequence(cls, v)
	case float64:
		cls.Kind = FrameNumber
		cls.Number = v
		cls.Progress = &ProgressEvent{Percent: clampPercent(v), Raw: raw}
	}
	return cls
}

func classifyRecord(cls *Classification, rec map[string]any) {
	if name, ok := rec["type"].(string); ok && name != "" {
		cls.EventName = name
	}

	artifacts := recordArtifacts(rec)

	if pct, ok := recordProgress(rec, cls.EventName); ok {
		cls.Progress = &ProgressEvent{
			Percent:         clampPercent(pct),
			ResultArtifacts: artifacts,
			Raw:             cls.Raw,
		}
		return
	}

	// No usable progress field: a result artifact alone means completion.
	if len(artifacts) > 0 {
		cls.Progress = &ProgressEvent{
			Percent:         100,
			ResultArtifacts: artifacts,
			Raw:             cls.Raw,
		}
	}
}

// recordProgress extracts the numeric progress value from a record: the
// progress key, or the legacy value key when the record type is "str".
func recordProgress(rec map[string]any, eventName string) (float64, bool) {
	if n, ok := rec["progress"].(float64); ok {
		return n, true
	}
	if eventName == "str" {
		if n, ok := rec["value"].(float64); ok {
			return n, true
		}
	}
	return 0, false
}

func recordArtifacts(rec map[string]any) []string {
	var artifacts []string
	if s, ok := rec["resultImage"].(string); ok && s != "" {
		artifacts = append(artifacts, s)
	}
	if s, ok := rec["imageUrl"].(string); ok && s != "" {
		artifacts = append(artifacts, s)
	}
	return artifacts
}

// classifySequence collects value fields from output-typed sub-records. Order
// is preserved; the first element is the primary artifact.
func classifySequence(cls *Classification, seq []any) {
	var artifacts []string
	for _, item := range seq {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := rec["type"].(string); t != "output" {
			continue
		}
		if v, ok := rec["value"].(string); ok && v != "" {
			artifacts = append(artifacts, v)
		}
	}
	if len(artifacts) == 0 {
		return
	}

	cls.BatchArtifacts = artifacts
	cls.Progress = &ProgressEvent{
		Percent:         100,
		ResultArtifacts: artifacts,
		Raw:             cls.Raw,
	}
}

func clampPercent(n float64) int {
	switch {
	case n < 0 || math.IsNaN(n):
		return 0
	case n > 100:
		return 100
	default:
		return int(math.Round(n))
	}
}
