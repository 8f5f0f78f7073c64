// Package slot maps keys onto the fixed 16384-slot keyspace.
package slot

import (
	"bytes"

	"github.com/sigurn/crc16"
)

// Count is the number of hash slots in the keyspace.
const Count = 16384

var xmodem = crc16.MakeTable(crc16.CRC16_XMODEM)

// Checksum returns the CRC16/XMODEM checksum of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, xmodem)
}

// HashTag returns the substring between the first '{' and the first '}' after it.
// An empty tag counts as no tag.
func HashTag(key []byte) ([]byte, bool) {
	open := bytes.IndexByte(key, '{')
	if open < 0 {
		return nil, false
	}
	end := bytes.IndexByte(key[open+1:], '}')
	if end <= 0 {
		return nil, false
	}
	return key[open+1 : open+1+end], true
}

// ForKey returns the slot owning key.
func ForKey(key []byte) uint16 {
	if tag, ok := HashTag(key); ok {
		key = tag
	}
	return Checksum(key) % Count
}
