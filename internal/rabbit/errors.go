package rabbit

import "github.com/pkg/errors"

// ErrBadVariant is returned when a closed-union discriminator does not
// match any known variant. It maps to spec.md's DecodeError error kind:
// codec consumed bits but the schema was not satisfied.
var ErrBadVariant = errors.New("rabbit: unknown variant tag")

// maxPrealloc bounds the initial capacity of length-prefixed slices decoded
// from an untrusted count field, so a corrupt or hostile count can't force
// a large allocation up front. Growth past this cap still succeeds for a
// genuine message; it only changes how many reallocations occur.
const maxPrealloc = 1024

func preallocLen(count uint64) int {
	if count > maxPrealloc {
		return maxPrealloc
	}
	return int(count)
}
