package webui

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/jpeg"
	"math"
	"net/http"
	"strconv"
	"time"

	_ "embed"

	"github.com/yyyoichi/mllab/spamfilter"
	"github.com/yyyoichi/mllab/svdimage"
	"go.uber.org/zap"
)

//go:embed index.html
var indexHTML []byte

// Server serves the interactive lab page and its JSON API.
type Server struct {
	comp *svdimage.Compressor
	pipe *spamfilter.Pipeline
	log  *zap.Logger

	httpServer *http.Server
	mux        *http.ServeMux
}

// Config holds server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	Address string

	// Read/write timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for local use.
func DefaultConfig() Config {
	return Config{
		Address:      ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // SVD on large images takes a while
	}
}

// New creates a new server. pipe may be nil when no classifier has
// been trained; the classify endpoint then reports 503.
func New(cfg Config, comp *svdimage.Compressor, pipe *spamfilter.Pipeline, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		comp: comp,
		pipe: pipe,
		log:  log,
		mux:  http.NewServeMux(),
	}

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/images", s.handleImages)
	s.mux.HandleFunc("GET /api/compress", s.handleCompress)
	s.mux.HandleFunc("POST /api/classify", s.handleClassify)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	names := s.comp.Names()
	infos := make([]svdimage.Info, 0, len(names))
	for _, name := range names {
		info, err := s.comp.Info(name)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, infos)
}

// CompressResponse carries one reconstruction to the page.
type CompressResponse struct {
	Name   string   `json:"name"`
	Rank   int      `json:"rank"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Ratio  float64  `json:"ratio"`
	PSNR   *float64 `json:"psnr,omitempty"` // nil for a lossless reconstruction, JSON has no +Inf
	Energy float64  `json:"energy"`
	Image  string   `json:"image"` // data URL
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("image")
	k, err := strconv.Atoi(r.URL.Query().Get("k"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rank")
		return
	}

	res, err := s.comp.Compress(r.Context(), name, k)
	switch {
	case errors.Is(err, svdimage.ErrUnknownImage):
		writeError(w, http.StatusNotFound, "unknown image")
		return
	case errors.Is(err, svdimage.ErrRankOutOfRange):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error("compression failed", zap.String("image", name), zap.Int("rank", k), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "compression failed")
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, res.Image, &jpeg.Options{Quality: 90}); err != nil {
		s.log.Error("jpeg encoding failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "encoding failed")
		return
	}

	resp := CompressResponse{
		Name:   res.Name,
		Rank:   res.Rank,
		Width:  res.Width,
		Height: res.Height,
		Ratio:  res.Ratio,
		Energy: res.Energy,
		Image:  "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}
	if !math.IsInf(res.PSNR, 1) {
		psnr := res.PSNR
		resp.PSNR = &psnr
	}
	writeJSON(w, http.StatusOK, resp)
}

// Classify request/response
type ClassifyRequest struct {
	Text string `json:"text"`
}

type ClassifyResponse struct {
	Text        string  `json:"text"`
	Probability float64 `json:"probability"`
	Spam        bool    `json:"spam"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if s.pipe == nil {
		writeError(w, http.StatusServiceUnavailable, "no classifier loaded")
		return
	}

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := s.pipe.Classify(req.Text)
	writeJSON(w, http.StatusOK, ClassifyResponse{
		Text:        result.Text,
		Probability: result.Probability,
		Spam:        result.Spam,
	})
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
