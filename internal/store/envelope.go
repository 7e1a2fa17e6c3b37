package store

import (
	"encoding/json"
	"fmt"

	"github.com/heysubinoy/quickmdb/pkg/kv"
)

// envelope is the stored form of a document in the bolt and redis backends,
// where the key lives outside the payload.
type envelope struct {
	Rev   int64    `json:"rev"`
	Value kv.Value `json:"value"`
}

func encodeEnvelope(rev int64, value kv.Value) ([]byte, error) {
	return json.Marshal(envelope{Rev: rev, Value: value})
}

func decodeEnvelope(key string, data []byte) (kv.Document, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return kv.Document{}, fmt.Errorf("%w: %q: %v", ErrCorruptDocument, key, err)
	}
	return kv.Document{Key: key, Value: env.Value, Rev: env.Rev}, nil
}
