package kv

// The functions below compute the new value of a read-modify-write operation
// from the current one. They never touch a Collection. A false ok result
// means the current value has the wrong shape.

// AppendValue returns cur with item appended. cur must be a sequence.
func AppendValue(cur, item Value) (Value, bool) {
	items, ok := cur.AsSequence()
	if !ok {
		return Value{}, false
	}
	return Value{kind: KindSequence, seq: append(items, item)}, true
}

// AddNumber returns cur + delta. cur must be a number.
func AddNumber(cur Value, delta float64) (Value, bool) {
	n, ok := cur.AsNumber()
	if !ok {
		return Value{}, false
	}
	return Number(n + delta), true
}

// RemoveEqual returns cur without any item equal to item. cur must be a
// sequence. The changed result is false when nothing was removed.
func RemoveEqual(cur, item Value) (next Value, changed, ok bool) {
	items, ok := cur.AsSequence()
	if !ok {
		return Value{}, false, false
	}

	kept := items[:0]
	for _, e := range items {
		if !e.Equal(item) {
			kept = append(kept, e)
		}
	}
	return Value{kind: KindSequence, seq: kept}, len(kept) != len(items), true
}

// RemoveField returns cur without the entry named field. cur must be a
// mapping. The changed result is false when field was not present.
func RemoveField(cur Value, field string) (next Value, changed, ok bool) {
	entries, ok := cur.AsMapping()
	if !ok {
		return Value{}, false, false
	}

	if _, present := entries[field]; !present {
		return cur, false, true
	}
	delete(entries, field)
	return Value{kind: KindMapping, m: entries}, true, true
}
