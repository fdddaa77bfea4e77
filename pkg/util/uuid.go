package util

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
)

// Md5ThenHex is a quick hasher
func Md5ThenHex(value []byte) string {
	hasher := md5.New()
	hasher.Write(value)
	return hex.EncodeToString(hasher.Sum(nil))
}

// ContentID names a byte stream (an encoded PNG, a decoded raster) by its
// MD5 as a UUID, so identical content always gets the same id.
func ContentID(data []byte) string {
	hash := md5.Sum(data)
	id, err := uuid.FromBytes(hash[:])
	if err != nil {
		return ""
	}
	return id.String()
}

// HashUUID is ContentID over the JSON encoding of value; "" when value does
// not marshal.
func HashUUID(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return ContentID(raw)
}
