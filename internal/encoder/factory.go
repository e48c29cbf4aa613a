package encoder

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/atelierlab/portfoliomatch/internal/config"
)

// Backend names one of the encoder implementations selectable from
// config.
type Backend string

const (
	BackendHuggingFace Backend = "huggingface"
	BackendRemote      Backend = "remote"
	BackendSynthetic   Backend = "synthetic"
)

// Factory builds an Encoder for a chosen backend, the way the
// teacher's EmbedderFactory selects among embedding providers.
type Factory struct {
	log zerolog.Logger
	cfg *config.Config
}

// NewFactory builds a Factory.
func NewFactory(log zerolog.Logger, cfg *config.Config) *Factory {
	return &Factory{log: log, cfg: cfg}
}

// Create builds the Encoder for backend, or a Synthetic encoder if
// backend is empty (the offline development default).
func (f *Factory) Create(backend Backend, remoteServerURL string) (Encoder, error) {
	switch backend {
	case BackendHuggingFace:
		f.log.Info().Str("model", f.cfg.CLIPModelName).Int("max_image_size", f.cfg.MaxImageSizePx).Msg("initializing huggingface encoder backend")
		return NewHuggingFace(f.log, HuggingFaceConfig{
			ModelID:     f.cfg.CLIPModelName,
			APIToken:    f.cfg.HFAPIToken,
			MaxImageDim: f.cfg.MaxImageSizePx,
		}), nil
	case BackendRemote:
		if remoteServerURL == "" {
			return nil, fmt.Errorf("encoder: remote backend requires a server URL")
		}
		f.log.Info().Str("server", remoteServerURL).Str("model", f.cfg.CLIPModelName).Int("max_image_size", f.cfg.MaxImageSizePx).Msg("initializing remote encoder backend")
		return NewRemote(RemoteConfig{
			ServerURL:   remoteServerURL,
			ModelName:   f.cfg.CLIPModelName,
			MaxImageDim: f.cfg.MaxImageSizePx,
		}), nil
	case BackendSynthetic, "":
		f.log.Info().Msg("initializing synthetic encoder backend (no live CLIP model configured)")
		return NewSynthetic(), nil
	default:
		return nil, fmt.Errorf("encoder: unsupported backend %q", backend)
	}
}
