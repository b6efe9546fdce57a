package embcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/devindrajit1998/ai-novaintel/internal/domain"
)

// entryMagic tags the encoded entry layout: magic | created_at (int64 unix nanos) | float32...
var entryMagic = []byte("emb1")

const entryHeaderLen = 4 + 8

// CacheEntry is an immutable cached embedding.
type CacheEntry struct {
	Key       string
	Vector    []float32
	CreatedAt time.Time
}

// newEntry copies vec so later changes by the caller never reach the cache.
func newEntry(key string, vec []float32, now time.Time) CacheEntry {
	return CacheEntry{Key: key, Vector: slices.Clone(vec), CreatedAt: now}
}

func encodeEntry(e CacheEntry) []byte {
	buf := make([]byte, entryHeaderLen+len(e.Vector)*4)
	copy(buf, entryMagic)
	binary.LittleEndian.PutUint64(buf[4:], uint64(e.CreatedAt.UnixNano()))
	for i, f := range e.Vector {
		binary.LittleEndian.PutUint32(buf[entryHeaderLen+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEntry(key string, data []byte) (CacheEntry, error) {
	if len(data) < entryHeaderLen || !bytes.Equal(data[:4], entryMagic) {
		return CacheEntry{}, fmt.Errorf("entry %s: bad header: %w", key, domain.ErrCacheCorruption)
	}
	body := data[entryHeaderLen:]
	if len(body) == 0 || len(body)%4 != 0 {
		return CacheEntry{}, fmt.Errorf("entry %s: body len=%d: %w", key, len(body), domain.ErrCacheCorruption)
	}
	vec := make([]float32, len(body)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	nanos := int64(binary.LittleEndian.Uint64(data[4:entryHeaderLen]))
	return CacheEntry{Key: key, Vector: vec, CreatedAt: time.Unix(0, nanos).UTC()}, nil
}
