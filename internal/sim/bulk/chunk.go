package bulk

// Chunks splits items into consecutive groups of at most size elements.
// Concatenating the groups yields items in the original order. Each group
// has its capacity clipped so appending to one never overwrites the next.
func Chunks[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if len(items) == 0 {
		return nil, nil
	}

	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}

	return out, nil
}
