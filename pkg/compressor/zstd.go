/*
Copyright 2019 The Perkeep Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package compressor is the §4.C reversible size-reduction stage applied
// to every 64 KiB logical block before it reaches the crypto envelope. It
// wraps github.com/klauspost/compress/zstd, the library the distr1-distri
// example in the retrieval pack already depends on for the same purpose
// and that is transitively present in the teacher's own module graph.
package compressor

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Level is the zstd compression level used for every block, fixed at 3
// per §4.C: fast enough to run on every write, without the source
// footprint of the ratio-optimized higher levels.
const Level = zstd.SpeedDefault

// encoders and decoders are not safe for concurrent use by multiple
// goroutines (see the zstd package docs), so each is kept in a pool
// rather than shared, the idiom pkg/pools uses for reusable buffers.
var (
	encoderPool = sync.Pool{
		New: func() any {
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(Level), zstd.WithZeroFrames(true))
			if err != nil {
				panic(fmt.Sprintf("compressor: NewWriter: %v", err))
			}
			return enc
		},
	}
	decoderPool = sync.Pool{
		New: func() any {
			dec, err := zstd.NewReader(nil)
			if err != nil {
				panic(fmt.Sprintf("compressor: NewReader: %v", err))
			}
			return dec
		},
	}
)

// Compress returns the zstd frame for plain. An empty plain still
// produces (and the caller still writes) a valid empty zstd frame, so
// that the shard list it's recorded under covers [0,size) exactly even
// for a zero-length block.
func Compress(plain []byte) []byte {
	enc := encoderPool.Get().(*zstd.Encoder)
	defer encoderPool.Put(enc)
	enc.Reset(nil)
	return enc.EncodeAll(plain, make([]byte, 0, len(plain)))
}

// Decompress reverses Compress.
func Decompress(compressed []byte) ([]byte, error) {
	dec := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(dec)
	out, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("compressor: decode: %w", err)
	}
	return out, nil
}
