// Package identity computes the deterministic fingerprint used to
// deduplicate job submissions, and mints the opaque ids handed out for jobs
// and runners.
package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// NewID returns a freshly generated v4 UUID, hyphenated-hex form, used for
// both job ids and runner ids.
func NewID() string {
	return uuid.New().String()
}

// Hash returns the hex-encoded SHA-256 fingerprint of (jobType, params),
// canonicalized so that two submissions with the same type and
// semantically-equal params always hash identically regardless of object
// key ordering in the original request body.
func Hash(jobType string, params any) (string, error) {
	canon, err := canonicalize(params)
	if err != nil {
		return "", fmt.Errorf("canonicalize input params: %w", err)
	}

	envelope := struct {
		JobType string          `json:"job_type"`
		Params  json.RawMessage `json:"input_params"`
	}{JobType: jobType, Params: canon}

	buf, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("marshal hash envelope: %w", err)
	}

	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize re-encodes an arbitrary JSON-able value with every object's
// keys sorted lexicographically at every nesting depth. Arrays keep their
// original order; scalars keep their default JSON encoding. Re-marshaling a
// value already decoded from JSON (map[string]any / []any / scalars) is
// sufficient because encoding/json always walks maps and slices, so the
// only thing we must control ourselves is key order within each object.
func canonicalize(v any) (json.RawMessage, error) {
	// Round-trip through json to normalize v (which may be a Go struct, a
	// map[string]interface{} from a decoded request body, etc.) into the
	// plain map/slice/scalar shape canonicalValue expects.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, decoded); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
