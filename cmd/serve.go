package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for search orchestration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		// Orchestration outlives the request; it is only canceled by
		// process shutdown.
		launch := func(searchID, userID string) {
			go func() {
				if _, err := env.orch.Run(ctx, searchID, userID); err != nil {
					zap.L().Error("orchestration run failed",
						zap.String("search_id", searchID),
						zap.Error(err))
				}
			}()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.store, launch),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// createSearchRequest is the POST /searches body.
type createSearchRequest struct {
	UserID         string   `json:"user_id"`
	ProductService string   `json:"product_service"`
	Industries     []string `json:"industries"`
	Countries      []string `json:"countries"`
	SearchType     string   `json:"search_type"`
}

// newRouter builds the HTTP surface. launch starts orchestration for a
// created search without blocking the request.
func newRouter(st store.Store, launch func(searchID, userID string)) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/searches", func(w http.ResponseWriter, req *http.Request) {
		var body createSearchRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.ProductService == "" {
			writeError(w, http.StatusBadRequest, "product_service is required")
			return
		}

		searchType := model.SearchType(body.SearchType)
		if searchType == "" {
			searchType = model.SearchTypeCustomer
		}
		if searchType != model.SearchTypeCustomer && searchType != model.SearchTypeSupplier {
			writeError(w, http.StatusBadRequest, "search_type must be customer or supplier")
			return
		}

		search := &model.Search{
			UserID:         body.UserID,
			ProductService: body.ProductService,
			Industries:     body.Industries,
			Countries:      body.Countries,
			SearchType:     searchType,
		}
		if err := st.CreateSearch(req.Context(), search); err != nil {
			zap.L().Error("create search failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "create search failed")
			return
		}

		launch(search.ID, search.UserID)
		writeJSON(w, http.StatusAccepted, search)
	})

	r.Get("/searches/{id}", func(w http.ResponseWriter, req *http.Request) {
		search, err := st.GetSearch(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if eris.Is(err, store.ErrSearchNotFound) {
				writeError(w, http.StatusNotFound, "search not found")
				return
			}
			zap.L().Error("get search failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get search failed")
			return
		}
		writeJSON(w, http.StatusOK, search)
	})

	r.Get("/searches", func(w http.ResponseWriter, req *http.Request) {
		filter := store.SearchFilter{
			Status: model.SearchStatus(req.URL.Query().Get("status")),
			UserID: req.URL.Query().Get("user_id"),
		}
		if v := req.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = n
		}

		searches, err := st.ListSearches(req.Context(), filter)
		if err != nil {
			zap.L().Error("list searches failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list searches failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"searches": searches})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
