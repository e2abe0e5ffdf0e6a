package objectstore

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

// ContentHash returns the hex blake2b-256 digest of data.
func ContentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ContentKey builds "<category>/<user>/<content hash>/<object id>.<ext>".
// The hash groups identical payloads; the object id keeps every upload a
// distinct object so deleting one never removes bytes another record uses.
func ContentKey(category models.Category, userID string, data []byte, format string) string {
	return fmt.Sprintf("%s/%s/%s/%s.%s", category, userID, ContentHash(data), uuid.NewString(), extensionFor(format))
}
