// Package server exposes hiding and revealing over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"ciphercanvas/internal/carrier"
	"ciphercanvas/internal/config"
	"ciphercanvas/internal/lsb"
	"ciphercanvas/internal/seal"
)

const revealFailedMessage = "Decryption failed. Wrong password or not a CipherCanvas image."

// Server serves the hide/reveal API.
type Server struct {
	cfg      *config.Config
	sealer   *seal.Sealer
	registry *prometheus.Registry
	metrics  *metrics
	mux      *http.ServeMux
}

// New builds a Server. A nil sealer uses the default key derivation cost.
func New(cfg *config.Config, sealer *seal.Sealer) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if sealer == nil {
		var err error
		if sealer, err = seal.NewSealer(seal.Iterations, nil); err != nil {
			return nil, err
		}
	}

	registry := prometheus.NewRegistry()
	s := &Server{
		cfg:      cfg,
		sealer:   sealer,
		registry: registry,
		metrics:  newMetrics(registry),
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/hide", s.handleHide)
	s.mux.HandleFunc("POST /api/reveal", s.handleReveal)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return s, nil
}

// Handler returns the HTTP handler of s.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config) error {
	s, err := New(cfg, nil)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		klog.InfoS("Starting server", "addr", cfg.Addr, "config", cfg.String())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	klog.InfoS("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// ── Hide ──

func (s *Server) handleHide(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r, opHide) {
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.fail(w, opHide, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()

	if !hasField(r, "message") || !hasField(r, "password") {
		s.fail(w, opHide, http.StatusBadRequest, "Message and password are required")
		return
	}
	message := strings.TrimSpace(r.FormValue("message"))
	password := r.FormValue("password")

	if message == "" {
		s.fail(w, opHide, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	if password == "" {
		s.fail(w, opHide, http.StatusBadRequest, "Password is required")
		return
	}
	if header.Filename == "" || !carrier.Supported(header.Filename) {
		s.fail(w, opHide, http.StatusBadRequest, "Please upload a valid image (PNG, JPG, BMP, GIF, TIFF, WEBP)")
		return
	}

	grid, _, err := carrier.Decode(file)
	if err != nil {
		s.fail(w, opHide, http.StatusBadRequest, "Invalid image: "+err.Error())
		return
	}

	blob, err := s.sealer.Encrypt(message, password)
	if err != nil {
		klog.ErrorS(err, "Encryption failed")
		s.fail(w, opHide, http.StatusInternalServerError, "Encryption failed: "+err.Error())
		return
	}

	stego, err := lsb.Hide(grid, blob)
	if err != nil {
		if errors.Is(err, lsb.ErrCapacityExceeded) {
			s.fail(w, opHide, http.StatusBadRequest, err.Error())
			return
		}
		klog.ErrorS(err, "Hide failed")
		s.fail(w, opHide, http.StatusInternalServerError, err.Error())
		return
	}

	format := s.cfg.Format()
	var buf bytes.Buffer
	if err := carrier.Encode(&buf, stego, format); err != nil {
		klog.ErrorS(err, "Encoding stego image failed")
		s.fail(w, opHide, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.observe(opHide, outcomeOK)
	s.metrics.payloadBytes.WithLabelValues(opHide).Observe(float64(len(blob)))
	klog.V(2).InfoS("Hid message", "payloadBytes", len(blob), "width", grid.Width, "height", grid.Height)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, stegoFilename(format)))
	if _, err := w.Write(buf.Bytes()); err != nil {
		klog.ErrorS(err, "Writing stego image failed", "bytes", buf.Len())
	}
}

// ── Reveal ──

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r, opReveal) {
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.fail(w, opReveal, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()

	if !hasField(r, "password") {
		s.fail(w, opReveal, http.StatusBadRequest, "Password is required")
		return
	}
	password := r.FormValue("password")

	if header.Filename == "" {
		s.fail(w, opReveal, http.StatusBadRequest, "Please select an image file")
		return
	}

	grid, _, err := carrier.Decode(file)
	if err != nil {
		s.fail(w, opReveal, http.StatusBadRequest, "Invalid or corrupted image: "+err.Error())
		return
	}

	blob, err := lsb.Extract(grid)
	if err != nil {
		s.fail(w, opReveal, http.StatusBadRequest, "Image does not contain valid hidden data: "+err.Error())
		return
	}

	message, err := s.sealer.Decrypt(blob, password)
	if err != nil {
		s.fail(w, opReveal, http.StatusBadRequest, revealFailedMessage)
		return
	}

	s.metrics.observe(opReveal, outcomeOK)
	s.metrics.payloadBytes.WithLabelValues(opReveal).Observe(float64(len(blob)))
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ── Helpers ──

// parseForm reads the multipart body within the upload limit. It writes the
// error response itself and reports whether the handler should continue.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request, op string) bool {
	limit := s.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, op, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload exceeds the %d MB limit", s.cfg.MaxUploadMB))
			return false
		}
		s.fail(w, op, http.StatusBadRequest, "Invalid form data: "+err.Error())
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, op string, status int, msg string) {
	outcome := outcomeBadRequest
	if status >= http.StatusInternalServerError {
		outcome = outcomeError
	}
	s.metrics.observe(op, outcome)
	writeJSON(w, status, map[string]string{"error": msg})
}

func hasField(r *http.Request, name string) bool {
	if r.MultipartForm == nil {
		return false
	}
	_, ok := r.MultipartForm.Value[name]
	return ok
}

func stegoFilename(format carrier.Format) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ciphercanvas_stego_" + id[:8] + format.Extension()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.ErrorS(err, "Writing response failed")
	}
}
