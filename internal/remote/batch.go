package remote

// Dedup keeps the last occurrence of every key. It walks the input in
// reverse keeping the first sighting, then restores the original order.
func Dedup[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	kept := make([]T, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		k := key(items[i])
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, items[i])
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	if len(items) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
