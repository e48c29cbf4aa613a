package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	huggingface "github.com/hupe1980/go-huggingface"
	"github.com/rs/zerolog"

	"github.com/atelierlab/portfoliomatch/internal/vecmath"
)

// HuggingFaceConfig configures the hosted-inference CLIP backend.
type HuggingFaceConfig struct {
	ModelID     string
	APIToken    string
	MaxImageDim int
	Timeout     time.Duration
}

// HuggingFace encodes text via go-huggingface's feature extraction
// client (the library's only demonstrated text embedding surface) and
// images via a plain HTTP call to the same hosted inference endpoint,
// since the library exposes no image feature-extraction method.
type HuggingFace struct {
	cfg    HuggingFaceConfig
	client *huggingface.InferenceClient
	http   *http.Client
	dims   int
	log    zerolog.Logger
}

// NewHuggingFace builds a HuggingFace-backed Encoder.
func NewHuggingFace(log zerolog.Logger, cfg HuggingFaceConfig) *HuggingFace {
	if cfg.MaxImageDim <= 0 {
		cfg.MaxImageDim = 512
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := huggingface.NewInferenceClient(cfg.APIToken)
	client.SetModel(cfg.ModelID)
	return &HuggingFace{
		cfg:    cfg,
		client: client,
		http:   &http.Client{Timeout: cfg.Timeout},
		dims:   DimensionsFor(cfg.ModelID),
		log:    log,
	}
}

// Dimensions returns the encoder's embedding width.
func (h *HuggingFace) Dimensions() int { return h.dims }

// EncodeText embeds a batch of text briefs, one HuggingFace request
// per item since the client's automatic-reduction path is demonstrated
// against a single input at a time in the teacher codebase.
func (h *HuggingFace) EncodeText(ctx context.Context, texts []string) ([]vecmath.Embedding, error) {
	out := make([]vecmath.Embedding, 0, len(texts))
	for _, text := range texts {
		req := &huggingface.FeatureExtractionRequest{
			Inputs: []string{text},
			Options: huggingface.Options{
				WaitForModel: huggingface.PTR(true),
				UseCache:     huggingface.PTR(true),
			},
		}
		resp, err := h.client.FeatureExtractionWithAutomaticReduction(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("encoder: huggingface text feature extraction failed: %w", err)
		}
		if len(resp) == 0 {
			return nil, fmt.Errorf("encoder: huggingface returned no embedding for text")
		}
		out = append(out, vecmath.Embedding(resp[0]))
	}
	if err := validateDims(out, h.dims); err != nil {
		return nil, err
	}
	return normalizeAll(out), nil
}

// EncodeImages embeds a batch of images by POSTing each (resized) image
// to the hosted inference endpoint for the configured model and
// decoding a flat float array response.
func (h *HuggingFace) EncodeImages(ctx context.Context, imgs []image.Image) ([]vecmath.Embedding, error) {
	out := make([]vecmath.Embedding, 0, len(imgs))
	for _, img := range imgs {
		resized := resizeToMax(img, h.cfg.MaxImageDim)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("encoder: failed to encode image for upload: %w", err)
		}

		endpoint := fmt.Sprintf("https://api-inference.huggingface.co/models/%s", h.cfg.ModelID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
		if err != nil {
			return nil, fmt.Errorf("encoder: failed to build image inference request: %w", err)
		}
		req.Header.Set("Content-Type", "image/jpeg")
		if h.cfg.APIToken != "" {
			req.Header.Set("Authorization", "Bearer "+h.cfg.APIToken)
		}

		resp, err := h.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("encoder: huggingface image inference request failed: %w", err)
		}
		var embedding []float32
		decodeErr := json.NewDecoder(resp.Body).Decode(&embedding)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("encoder: failed to decode huggingface image embedding response: %w", decodeErr)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("encoder: huggingface image inference returned status %d", resp.StatusCode)
		}
		out = append(out, vecmath.Embedding(embedding))
	}
	if err := validateDims(out, h.dims); err != nil {
		return nil, err
	}
	return normalizeAll(out), nil
}
