package encoder

import (
	"context"
	"crypto/sha256"
	"image"
	"math"

	"github.com/atelierlab/portfoliomatch/internal/vecmath"
)

// Synthetic produces deterministic pseudo-embeddings derived from a
// hash of the input, with no network calls. It exists for offline
// development and tests where a real CLIP backend is unavailable;
// its vectors carry no real semantic meaning.
type Synthetic struct {
	dims int
}

// NewSynthetic builds a Synthetic encoder producing vecmath.Dim-wide
// vectors.
func NewSynthetic() *Synthetic {
	return &Synthetic{dims: vecmath.Dim}
}

// Dimensions returns the encoder's embedding width.
func (s *Synthetic) Dimensions() int { return s.dims }

// EncodeText hashes each string into a deterministic unit vector.
func (s *Synthetic) EncodeText(_ context.Context, texts []string) ([]vecmath.Embedding, error) {
	out := make([]vecmath.Embedding, len(texts))
	for i, t := range texts {
		out[i] = vecFromSeed([]byte(t), s.dims)
	}
	return out, nil
}

// EncodeImages hashes each image's raw pixel bytes into a
// deterministic unit vector, so identical images always produce
// identical vectors within a test run.
func (s *Synthetic) EncodeImages(_ context.Context, imgs []image.Image) ([]vecmath.Embedding, error) {
	out := make([]vecmath.Embedding, len(imgs))
	for i, img := range imgs {
		out[i] = vecFromSeed(pixelBytes(img), s.dims)
	}
	return out, nil
}

func pixelBytes(img image.Image) []byte {
	b := img.Bounds()
	buf := make([]byte, 0, b.Dx()*b.Dy()*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			buf = append(buf, byte(r>>8), byte(g>>8), byte(bl>>8), byte(a>>8))
		}
	}
	return buf
}

// vecFromSeed expands a SHA-256 hash of seed into a dims-wide unit
// vector via a simple counter-mode stream, deterministic across runs.
func vecFromSeed(seed []byte, dims int) vecmath.Embedding {
	out := make(vecmath.Embedding, dims)
	block := 0
	var digest [32]byte
	for i := 0; i < dims; i++ {
		if i%32 == 0 {
			h := sha256.New()
			h.Write(seed)
			h.Write([]byte{byte(block)})
			copy(digest[:], h.Sum(nil))
			block++
		}
		// Map a hash byte into a small signed float via a fixed offset,
		// then normalize the whole vector at the end.
		v := float64(digest[i%32]) - 127.5
		out[i] = float32(v)
	}
	return vecmath.Normalize(clampNaN(out))
}

func clampNaN(v vecmath.Embedding) vecmath.Embedding {
	for i, x := range v {
		if math.IsNaN(float64(x)) {
			v[i] = 0
		}
	}
	return v
}
