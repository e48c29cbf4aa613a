package imaging

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierlab/portfoliomatch/internal/matcherr"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	buf := &bytesBuffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.b
}

type bytesBuffer struct{ b []byte }

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.b = append(b.b, p...)
	return len(p), nil
}

func TestFetchDecodesValidImage(t *testing.T) {
	data := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	f := New(zerolog.Nop(), Config{Timeout: time.Second, MaxRetries: 1, MaxBytes: 1 << 20})
	img, err := f.Fetch(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
}

func TestFetchRejectsUnsupportedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	f := New(zerolog.Nop(), Config{Timeout: time.Second, MaxRetries: 2, MaxBytes: 1 << 20})
	_, err := f.Fetch(context.Background(), srv.URL+"/a.txt")
	require.Error(t, err)
	kind, ok := matcherr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, matcherr.KindUnsupportedContentType, kind)
}

func TestFetchRetriesOnServerError(t *testing.T) {
	data := pngBytes(t)
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	f := New(zerolog.Nop(), Config{Timeout: time.Second, MaxRetries: 3, MaxBytes: 1 << 20})
	img, err := f.Fetch(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestFetchDoesNotRetryOn404(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(zerolog.Nop(), Config{Timeout: time.Second, MaxRetries: 3, MaxBytes: 1 << 20})
	_, err := f.Fetch(context.Background(), srv.URL+"/missing.png")
	require.Error(t, err)
	kind, ok := matcherr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, matcherr.KindHTTPError, kind)
	assert.Equal(t, 1, attempts)
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	f := New(zerolog.Nop(), Config{})
	_, err := f.Fetch(context.Background(), "not-a-url")
	require.Error(t, err)
	kind, ok := matcherr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, matcherr.KindInvalidURL, kind)
}
