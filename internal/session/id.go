// Package session holds helpers shared by the session stores.
package session

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID returns "session-<YYYYMMDDhhmmss>-<first 8 hex of md5(seed)>".
func NewID(seed string, now time.Time) string {
	sum := md5.Sum([]byte(seed))
	return fmt.Sprintf("session-%s-%s", now.Format("20060102150405"), hex.EncodeToString(sum[:])[:8])
}
