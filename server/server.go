package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"storyreel/logger"
)

// NewRouter registers every API route on a gorilla/mux router.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/api/health", h.HealthHandler).Methods(http.MethodGet)

	// 视频任务
	router.HandleFunc("/api/videos", h.RequireAPIKey(h.CreateVideoHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/videos", h.ListVideosHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/videos/{id}/share", h.RequireAPIKey(h.ShareVideoHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs", h.ListJobsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs/{id}", h.GetJobHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs/{id}", h.RequireAPIKey(h.CancelJobHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/jobs/{id}/ws", h.JobProgressWS).Methods(http.MethodGet)
	router.HandleFunc("/api/jobs/{id}/video", h.RequireAPIKey(h.JobVideoHandler)).Methods(http.MethodGet)
	router.HandleFunc("/share/{token}", h.SharedVideoHandler).Methods(http.MethodGet)

	// 素材与工具
	router.HandleFunc("/api/backgrounds", h.BackgroundsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/voices", h.VoicesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/scrape", h.RequireAPIKey(h.ScrapeHandler)).Methods(http.MethodPost)

	return router
}

// Start serves the API on addr until ctx is done, then shuts down
// gracefully.
func Start(ctx context.Context, addr string, h *APIHandler) error {
	// 设置服务器超时; websocket and file responses are long lived so no
	// write timeout is set
	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server gracefully stopped")
	return nil
}
