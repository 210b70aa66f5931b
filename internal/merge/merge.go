// Package merge reconciles streamed part snapshots and incremental field
// deltas into a consistent part without ever regressing visible text.
package merge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/williamcory/relay/sdk/agent"
)

var (
	// ErrNoPart is returned when Apply is called without a target part.
	ErrNoPart = errors.New("merge: no target part")
	// ErrEmptyField is returned for a delta with no field path.
	ErrEmptyField = errors.New("merge: empty field path")
	// ErrEmptyDelta is returned for a delta with no content.
	ErrEmptyDelta = errors.New("merge: empty delta")
	// ErrPathConflict is returned when an intermediate path segment exists
	// but is not an object.
	ErrPathConflict = errors.New("merge: path segment is not an object")
	// ErrLeafType is returned when the leaf exists but is not a string.
	ErrLeafType = errors.New("merge: leaf is not a string")
)

// Snapshot merges a full part snapshot against the previously known part.
//
// Full snapshots race with incremental deltas: a stale snapshot fetched
// before recent deltas were folded in must not erase text already assembled
// locally. A snapshot is considered stale only when its text is a strict
// prefix of the known text; a snapshot that is shorter AND different is a
// genuine edit or retry and is accepted as-is. This asymmetry is deliberate.
func Snapshot(prev, next *agent.Part) *agent.Part {
	if prev == nil || next == nil {
		return next
	}
	if prev.ID != next.ID || prev.Type != next.Type {
		return next
	}
	if !next.IsStreamingText() {
		return next
	}
	if len(prev.Text) > len(next.Text) && strings.HasPrefix(prev.Text, next.Text) {
		return prev
	}
	return next
}

// Field appends delta to the string value addressed by the dot-path field
// within the JSON document doc. The input document is never modified; a new
// document is returned.
//
// Missing intermediate segments are created as empty objects. An intermediate
// segment that exists but is not an object fails with ErrPathConflict. At the
// leaf, an absent value is set to delta, a string value is appended to, and
// any other type fails with ErrLeafType rather than silently coercing.
func Field(doc []byte, field, delta string) ([]byte, error) {
	if field == "" {
		return nil, ErrEmptyField
	}
	if delta == "" {
		return nil, ErrEmptyDelta
	}

	segs := strings.Split(field, ".")
	for i := 1; i < len(segs); i++ {
		prefix := strings.Join(segs[:i], ".")
		r := gjson.GetBytes(doc, prefix)
		if r.Exists() && !r.IsObject() {
			return nil, fmt.Errorf("%w: %q", ErrPathConflict, prefix)
		}
	}

	leaf := gjson.GetBytes(doc, field)
	switch {
	case !leaf.Exists():
		return sjson.SetBytes(doc, field, delta)
	case leaf.Type == gjson.String:
		return sjson.SetBytes(doc, field, leaf.String()+delta)
	default:
		return nil, fmt.Errorf("%w: %q is %s", ErrLeafType, field, leaf.Type)
	}
}

// Apply folds one field delta into a part, returning a new part. The input
// part is never mutated.
//
// Two domain policies wrap the raw path merge. Upstream names the streamed
// reasoning field inconsistently, so "reasoning_content" and
// "reasoning_details" on reasoning parts are normalized to "text" first. And
// text/reasoning parts are defined to always be appendable: if the path merge
// fails on one (a leaf-type conflict from an unrelated numeric field, say),
// the delta is appended to the part's text instead of failing. For every
// other variant a merge failure is terminal and the caller should buffer the
// delta.
func Apply(p *agent.Part, field, delta string) (*agent.Part, error) {
	if p == nil {
		return nil, ErrNoPart
	}
	if field == "" {
		return nil, ErrEmptyField
	}
	if delta == "" {
		return nil, ErrEmptyDelta
	}

	if p.IsReasoning() && (field == "reasoning_content" || field == "reasoning_details") {
		field = "text"
	}

	merged, err := mergeDoc(p, field, delta)
	if err != nil {
		if p.IsStreamingText() {
			clone := *p
			clone.Text += delta
			return &clone, nil
		}
		return nil, err
	}
	return merged, nil
}

func mergeDoc(p *agent.Part, field, delta string) (*agent.Part, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("merge: encode part: %w", err)
	}

	out, err := Field(doc, field, delta)
	if err != nil {
		return nil, err
	}

	var next agent.Part
	if err := json.Unmarshal(out, &next); err != nil {
		return nil, fmt.Errorf("merge: decode part: %w", err)
	}
	return &next, nil
}
