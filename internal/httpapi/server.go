// Package httpapi exposes a minimal gin-based HTTP surface for
// exercising the recommender interactively — recommend/reload/stats —
// during development. It is explicitly not the production façade: the
// real upstream-facing API is out of scope for this module.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/atelierlab/portfoliomatch/internal/catalog"
	"github.com/atelierlab/portfoliomatch/internal/matcherr"
	"github.com/atelierlab/portfoliomatch/internal/metrics"
	"github.com/atelierlab/portfoliomatch/internal/recommender"
)

// Server wires the debug HTTP surface to a Recommender.
type Server struct {
	router *gin.Engine
	rec    *recommender.Recommender
	log    zerolog.Logger
}

// NewServer builds a Server. reloader is invoked by POST /reload; it
// typically re-runs ingestion against the current catalog source.
func NewServer(log zerolog.Logger, rec *recommender.Recommender, met *metrics.Collector, reloader func() error) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	s := &Server{router: router, rec: rec, log: log}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"state": rec.State().String()})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(met.Registry(), promhttp.HandlerOpts{})))

	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, rec.Stats())
	})

	router.POST("/recommend", func(c *gin.Context) {
		var req recommendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.handleRecommend(c, req)
	})

	router.POST("/reload", func(c *gin.Context) {
		if reloader == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "no reload source configured"})
			return
		}
		go func() {
			if err := reloader(); err != nil {
				s.log.Error().Err(err).Msg("catalog reload failed")
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "reload started"})
	})

	return s
}

type recommendRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Modality     string  `json:"modality"`
	Contract     string  `json:"contract"`
	Specialty    string  `json:"specialty"`
	Requirements string  `json:"requirements"`
	ImageURL     string  `json:"image_url"`
	ImageWeight  float64 `json:"image_weight"`
	TopK         int     `json:"top_k"`
}

func (s *Server) handleRecommend(c *gin.Context, req recommendRequest) {
	brief := catalog.Brief{
		Title:        req.Title,
		Description:  req.Description,
		Modality:     req.Modality,
		Contract:     req.Contract,
		Specialty:    req.Specialty,
		Requirements: req.Requirements,
		ImageURL:     req.ImageURL,
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}

	var results []catalog.RecommendationResult
	var err error
	if brief.ImageURL != "" {
		results, err = s.rec.RecommendWithImage(c.Request.Context(), brief, topK, req.ImageWeight)
	} else {
		results, err = s.rec.Recommend(c.Request.Context(), brief, topK)
	}
	if err != nil {
		if kind, ok := matcherr.KindOf(err); ok && kind == matcherr.KindNotReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Run starts the HTTP server listening on addr.
func (s *Server) Run(addr string) error {
	s.log.Info().Str("addr", addr).Msg("starting debug HTTP surface")
	return s.router.Run(addr)
}
