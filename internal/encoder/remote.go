package encoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/atelierlab/portfoliomatch/internal/vecmath"
)

// RemoteConfig points at a self-hosted CLIP inference server exposing
// /embed_text and /embed_image endpoints, generalizing the teacher's
// text-embedding-server client to a joint text/image API.
type RemoteConfig struct {
	ServerURL   string
	ModelName   string
	MaxImageDim int
	Timeout     time.Duration
}

// Remote encodes text and images by calling a self-hosted CLIP server.
type Remote struct {
	cfg    RemoteConfig
	client *http.Client
	dims   int
}

// NewRemote builds a Remote-backed Encoder.
func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.MaxImageDim <= 0 {
		cfg.MaxImageDim = 512
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Remote{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		dims:   DimensionsFor(cfg.ModelName),
	}
}

// Dimensions returns the encoder's embedding width.
func (r *Remote) Dimensions() int { return r.dims }

type embedRequest struct {
	Model string   `json:"model,omitempty"`
	Texts []string `json:"texts,omitempty"`
	// Images carries base64-encoded JPEG payloads.
	Images []string `json:"images,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EncodeText embeds a batch of text briefs in a single request.
func (r *Remote) EncodeText(ctx context.Context, texts []string) ([]vecmath.Embedding, error) {
	vecs, err := r.post(ctx, r.cfg.ServerURL+"/embed_text", embedRequest{Model: r.cfg.ModelName, Texts: texts})
	if err != nil {
		return nil, err
	}
	if err := validateDims(vecs, r.dims); err != nil {
		return nil, err
	}
	return normalizeAll(vecs), nil
}

// EncodeImages embeds a batch of resized, JPEG-encoded images in a
// single request.
func (r *Remote) EncodeImages(ctx context.Context, imgs []image.Image) ([]vecmath.Embedding, error) {
	encoded := make([]string, 0, len(imgs))
	for _, img := range imgs {
		resized := resizeToMax(img, r.cfg.MaxImageDim)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("encoder: failed to encode image for upload: %w", err)
		}
		encoded = append(encoded, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}

	vecs, err := r.post(ctx, r.cfg.ServerURL+"/embed_image", embedRequest{Model: r.cfg.ModelName, Images: encoded})
	if err != nil {
		return nil, err
	}
	if err := validateDims(vecs, r.dims); err != nil {
		return nil, err
	}
	return normalizeAll(vecs), nil
}

func (r *Remote) post(ctx context.Context, url string, payload embedRequest) ([]vecmath.Embedding, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoder: failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("encoder: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encoder: remote embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encoder: remote server returned status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("encoder: failed to decode remote embedding response: %w", err)
	}
	vecs := make([]vecmath.Embedding, len(out.Embeddings))
	for i, e := range out.Embeddings {
		vecs[i] = vecmath.Embedding(e)
	}
	return vecs, nil
}
