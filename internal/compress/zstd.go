// Package compress provides the zstd decompression service used for the
// binary aircraft feed.
package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ErrNotInitialized is returned by Decode before Init has succeeded
var ErrNotInitialized = errors.New("zstd decoder not initialized")

// maxFrameSize bounds a single decompressed snapshot
const maxFrameSize = 64 << 20

// Decoder is a lazily initialized, shareable zstd decoder
type Decoder struct {
	mu      sync.RWMutex
	dec     *zstd.Decoder
	initErr error
}

// NewDecoder returns an uninitialized decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Init prepares the decoder. It is safe to call repeatedly; once it has
// succeeded later calls are no-ops.
func (d *Decoder) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dec != nil {
		return nil
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(maxFrameSize))
	if err != nil {
		d.initErr = fmt.Errorf("failed to create zstd decoder: %w", err)
		return d.initErr
	}
	d.dec = dec
	d.initErr = nil
	return nil
}

// Ready reports whether Init has succeeded
func (d *Decoder) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dec != nil
}

// Decode decompresses src. expectedSize, when positive, sizes the output
// buffer up front and must match the decompressed length.
func (d *Decoder) Decode(src []byte, expectedSize int) ([]byte, error) {
	d.mu.RLock()
	dec := d.dec
	d.mu.RUnlock()

	if dec == nil {
		return nil, ErrNotInitialized
	}

	var dst []byte
	if expectedSize > 0 {
		dst = make([]byte, 0, expectedSize)
	}
	out, err := dec.DecodeAll(src, dst)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress zstd frame: %w", err)
	}
	if expectedSize > 0 && len(out) != expectedSize {
		return nil, fmt.Errorf("decompressed size %d does not match expected %d", len(out), expectedSize)
	}
	return out, nil
}

// Close releases decoder resources. The decoder may be re-initialized.
func (d *Decoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dec != nil {
		d.dec.Close()
		d.dec = nil
	}
}
