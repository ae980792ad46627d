package resolver

// ApplyStrict enforces strict mode on a collection lookup. When the value
// was found on only some of the total inputs, the partial result is
// discarded (nil) so that a positive existence check fails, unless the
// upcoming assertions negate existence, in which case the partial result
// is kept so "found on some" stays distinguishable from "found on none".
func ApplyStrict[T any](found []T, total int, upcoming []Assertion) []T {
	if len(found) >= total {
		return found
	}
	if NegatesExistence(upcoming) {
		return found
	}
	return nil
}
