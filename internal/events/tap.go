package events

// Tap wraps a Source and calls fn with every non-empty batch it delivers,
// before the consumer sees it.
func Tap(src Source, fn func(Batch)) Source {
	return &tap{Source: src, fn: fn}
}

type tap struct {
	Source
	fn func(Batch)
}

func (t *tap) NextBatch() Batch {
	b := t.Source.NextBatch()
	if len(b) > 0 {
		t.fn(b)
	}
	return b
}
