package kv

import (
	"encoding/binary"

	"github.com/arya-analytics/chunker/entity"
)

// Prefix namespaces the keys of a single table within an Engine.
type Prefix []byte

// PrefixedKey appends key to the prefix without modifying p.
func PrefixedKey(p Prefix, key []byte) []byte {
	b := make([]byte, 0, len(p)+len(key))
	return append(append(b, p...), key...)
}

// keySize is the size of an encoded entity.Key.
const keySize = 8

// EncodeKey encodes k under the prefix so that byte order matches signed integer order.
func EncodeKey(p Prefix, k entity.Key) []byte {
	b := make([]byte, keySize)
	binary.BigEndian.PutUint64(b, uint64(k)^(1<<63))
	return PrefixedKey(p, b)
}

// DecodeKey decodes a key produced by EncodeKey with the same prefix.
func DecodeKey(p Prefix, key []byte) (entity.Key, bool) {
	if len(key) != len(p)+keySize {
		return 0, false
	}
	return entity.Key(binary.BigEndian.Uint64(key[len(p):]) ^ (1 << 63)), true
}

// PrefixUpperBound returns the smallest key greater than every key starting with p. Returns nil if no such key
// exists.
func PrefixUpperBound(p Prefix) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
