package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
)

// Import reads a JSON object from path and sets every entry, one key at a
// time in key order. Entries already written stay written if a later Set
// fails.
func (db *DB) Import(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	entries, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := db.Set(ctx, k, entries[k]); err != nil {
			return fmt.Errorf("import %s: set %q: %w", path, k, err)
		}
	}

	db.logger.Info("imported records", zap.String("path", path), zap.Int("count", len(keys)))
	return nil
}

// Export writes every record to path as a single JSON object indented with
// two spaces, replacing any existing file.
func (db *DB) Export(ctx context.Context, path string) error {
	records, err := db.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	data, err := EncodeRecords(records)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	db.logger.Info("exported records", zap.String("path", path), zap.Int("count", len(records)))
	return nil
}

// EncodeRecords folds records into one JSON object keyed by record key.
// A later record wins over an earlier one with the same key.
func EncodeRecords(records []Record) ([]byte, error) {
	obj := make(map[string]Value, len(records))
	for _, r := range records {
		obj[r.Key] = r.Value
	}
	return json.MarshalIndent(obj, "", "  ")
}

func decodeObject(data []byte) (map[string]Value, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	entries, ok := v.AsMapping()
	if !ok {
		return nil, fmt.Errorf("%w: top level is %s", ErrNotObject, v.Kind())
	}
	return entries, nil
}
