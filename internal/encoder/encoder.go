// Package encoder turns raw images and text briefs into vectors in
// the shared CLIP-family embedding space. Preprocessing (aspect-ratio
// preserving resize, batching) lives here rather than in the fetcher,
// since resize is a property of what the model needs, not of how the
// bytes were retrieved.
package encoder

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/atelierlab/portfoliomatch/internal/vecmath"
)

// Encoder maps images and text into the shared embedding space.
// Implementations must return L2-normalized vectors of vecmath.Dim
// dimensions.
type Encoder interface {
	EncodeImages(ctx context.Context, imgs []image.Image) ([]vecmath.Embedding, error)
	EncodeText(ctx context.Context, texts []string) ([]vecmath.Embedding, error)
	Dimensions() int
}

// knownModelDims lists the embedding widths of CLIP-family models this
// module has been exercised against. An unrecognized CLIPModelName
// falls back to vecmath.Dim with a warning logged by the caller
// (internal/config), not here.
var knownModelDims = map[string]int{
	"openai/clip-vit-base-patch32":  512,
	"openai/clip-vit-base-patch16":  512,
	"openai/clip-vit-large-patch14": 768,
	"clip-ViT-B-32":                 512,
	"clip-ViT-B-16":                 512,
	"clip-ViT-L-14":                 768,
}

// DimensionsFor returns the known embedding width for a CLIP model
// name, or vecmath.Dim if the name is not recognized.
func DimensionsFor(modelName string) int {
	if d, ok := knownModelDims[modelName]; ok {
		return d
	}
	return vecmath.Dim
}

// resizeToMax scales img down so that its larger dimension is at most
// maxSize, preserving aspect ratio, matching
// original_source/app/image_embedding_generator.py's _resize_image.
// Images already within bounds are returned unchanged.
func resizeToMax(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxSize && h <= maxSize {
		return img
	}

	var newW, newH int
	if w >= h {
		newW = maxSize
		newH = int(float64(h) * float64(maxSize) / float64(w))
	} else {
		newH = maxSize
		newW = int(float64(w) * float64(maxSize) / float64(h))
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	// CatmullRom is the closest high-quality kernel golang.org/x/image/draw
	// offers to PIL's Lanczos resampling used by the original generator.
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// batches splits items into chunks of at most size, matching the
// image_batch_size processing loop in
// original_source/app/image_embedding_generator.py's process_batch.
func batches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	if size == 0 {
		return nil
	}
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

func normalizeAll(vecs []vecmath.Embedding) []vecmath.Embedding {
	out := make([]vecmath.Embedding, len(vecs))
	for i, v := range vecs {
		out[i] = vecmath.Normalize(v)
	}
	return out
}

func validateDims(vecs []vecmath.Embedding, want int) error {
	for i, v := range vecs {
		if len(v) != want {
			return fmt.Errorf("encoder: embedding %d has %d dimensions, want %d", i, len(v), want)
		}
	}
	return nil
}
