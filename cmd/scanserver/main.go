package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avahowell/voprfscan/pkg/config"
	"github.com/avahowell/voprfscan/pkg/scan"
	"github.com/avahowell/voprfscan/pkg/textscan"
)

func main() {
	logger := log.New(log.Writer(), "[ScanServer] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	textScanner, err := textscan.New(cfg.BlockingKeywords, cfg.WarningKeywords)
	if err != nil {
		logger.Fatalf("compile text-scan keyword lists: %v", err)
	}

	srv := scan.NewServerConfig(cfg.OPRFKey, cfg.MACSecret, textScanner, log.New(log.Writer(), "[Scan] ", log.LstdFlags))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/scan", handleTextScan(srv, logger))
	mux.HandleFunc("/api/scan/image", handleImageScan(srv, logger))
	mux.HandleFunc("/server_key_commitment.json", handleKeyCommitment(srv, logger))

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		logger.Printf("listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
	logger.Printf("stopped")
}

type textScanRequest struct {
	Text string `json:"text"`
}

// handleTextScan serves POST /api/scan: a JSON {"text": string} body,
// classified against the blocking/warning keyword lists and returned as
// an envelope-wrapped {status, detail} result.
func handleTextScan(srv *scan.ServerConfig, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req textScanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		env, err := srv.ScanText(req.Text)
		if err != nil {
			logger.Printf("scan text: %v", err)
			http.Error(w, "text scan failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(env); err != nil {
			logger.Printf("encode response: %v", err)
		}
	}
}

// handleImageScan serves POST /api/scan/image: a multipart form carrying
// the client's blinded point in the "blindedPoint" field, evaluated under
// the server's OPRF key and returned as an envelope-wrapped
// {evaluatedPoint, proof} result.
func handleImageScan(srv *scan.ServerConfig, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "malformed multipart form", http.StatusBadRequest)
			return
		}
		blindedPoint := r.FormValue("blindedPoint")
		if blindedPoint == "" {
			http.Error(w, "missing blindedPoint field", http.StatusBadRequest)
			return
		}

		env, err := srv.EvaluateBlinded(blindedPoint)
		if err != nil {
			logger.Printf("evaluate blinded point: %v", err)
			http.Error(w, "invalid blinded point", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(env); err != nil {
			logger.Printf("encode response: %v", err)
		}
	}
}

func handleKeyCommitment(srv *scan.ServerConfig, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commitment := scan.KeyCommitment{
			PublicKey: srv.PublicKey.Hex(),
			Timestamp: time.Now().UnixMilli(),
			Version:   "v1",
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(commitment); err != nil {
			logger.Printf("encode key commitment: %v", err)
		}
	}
}
