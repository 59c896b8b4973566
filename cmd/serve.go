package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	ossignal "os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/billboard-signals/internal/model"
	"github.com/sells-group/billboard-signals/internal/signal"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve location signals over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := ossignal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		timeout := time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env.Gateway, env.Store, cfg.Server.AllowedOrigins, timeout),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("http server listening", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		zap.L().Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// signalPurger deletes every cached signal for a location.
type signalPurger interface {
	DeleteSignals(ctx context.Context, locationKey string) (int, error)
}

// buildRouter mounts the signal API. A zero timeout disables the
// per-request deadline.
func buildRouter(gw *signal.Gateway, purger signalPurger, origins []string, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/locations/{key}/signals", func(r chi.Router) {
		r.Get("/{kind}", handleGetSignal(gw))
		r.Delete("/", handlePurgeSignals(purger))
	})
	return r
}

func handleGetSignal(gw *signal.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := model.ParseSignalKind(chi.URLParam(r, "kind"))
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		lat, err := queryFloat(r, "lat")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		lon, err := queryFloat(r, "lon")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

		loc := model.Location{Key: chi.URLParam(r, "key"), Latitude: lat, Longitude: lon}
		resp, err := getSignal(r.Context(), gw, loc, kind, refresh)
		if err != nil {
			status := statusFor(err)
			switch status {
			case http.StatusBadRequest:
				respondError(w, status, err.Error())
			case http.StatusServiceUnavailable:
				respondError(w, status, "signal unavailable")
			default:
				zap.L().Error("get signal",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Error(err),
				)
				respondError(w, status, "internal error")
			}
			return
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

func handlePurgeSignals(purger signalPurger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		n, err := purger.DeleteSignals(r.Context(), key)
		if err != nil {
			zap.L().Error("purge signals", zap.String("location_key", key), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "purge failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"location_key": key, "deleted": n})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, signal.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, signal.ErrSignalUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, eris.Errorf("missing query parameter %q", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Errorf("invalid query parameter %q", name)
	}
	return v, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
