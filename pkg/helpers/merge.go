package helpers

// Merge returns a new map holding every entry of base overwritten by every entry
// of partial. The merge is shallow: nested maps in partial replace the nested map
// in base wholesale. Neither argument is modified.
func Merge[M ~map[K]V, K comparable, V any](base, partial M) M {
	out := make(M, len(base)+len(partial))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of m. A nil map clones to an empty, non-nil map.
func Clone[M ~map[K]V, K comparable, V any](m M) M {
	return Merge(m, nil)
}
