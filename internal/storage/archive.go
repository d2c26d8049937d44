package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// Archive keeps committed import documents, content-addressed per day.
type Archive struct {
	Blobs BlobStore
}

// Key is the archive key raw would be stored under on day at.
func Key(raw []byte, at time.Time) string {
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("imports/%s/%s.json", at.UTC().Format("2006-01-02"), hex.EncodeToString(sum[:]))
}

func (a Archive) Save(raw []byte, at time.Time) (string, error) {
	return a.Blobs.Put(Key(raw, at), bytes.NewReader(raw))
}

func (a Archive) Load(key string) ([]byte, error) {
	rc, err := a.Blobs.Get(key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
