package lock

import (
	"strings"
	"time"

	"github.com/hupe1980/redline/codec"
)

// KeyPrefix is the namespace of lock objects in the blob store.
const KeyPrefix = "locks/"

const keySuffix = ".lock"

// Key returns the blob name of the lock for a resource id.
func Key(resourceID string) string {
	return KeyPrefix + resourceID + keySuffix
}

// ResourceID extracts the resource id from a lock blob name.
func ResourceID(key string) (string, bool) {
	if !strings.HasPrefix(key, KeyPrefix) || !strings.HasSuffix(key, keySuffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(key, KeyPrefix), keySuffix), true
}

// Token is the persisted lock record.
type Token struct {
	ResourceID string    `json:"resource_id"`
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the token is no longer live at now.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Tokens are plain JSON whatever the document codec is.
var tokenCodec codec.Codec = codec.GoJSON{}

func encodeToken(t Token) ([]byte, error) {
	return tokenCodec.Marshal(t)
}

func decodeToken(data []byte) (Token, error) {
	var t Token
	err := tokenCodec.Unmarshal(data, &t)
	return t, err
}
