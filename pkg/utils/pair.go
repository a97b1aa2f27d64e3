// Nothing to see here in this module. Couldn't find a better place for Pair.

package utils

type Pair[K any, V any] struct {
	Key   K
	Value V
}

// BlobEntry is one key-value record of a snapshot blob.
type BlobEntry Pair[string /*key*/, []byte /*value*/]
