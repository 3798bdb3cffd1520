package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/venuelogic/linecheck/internal/engine"
	"github.com/venuelogic/linecheck/internal/ingest"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for the review UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		eng := engine.New(cfg)

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /v1/batch/check", func(w http.ResponseWriter, r *http.Request) {
			var req ingest.BatchFile
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if len(req.Lines) == 0 {
				http.Error(w, `{"error":"lines are required"}`, http.StatusBadRequest)
				return
			}

			ladders, err := ingest.BuildLadders(req.Sources, cfg)
			if err != nil {
				http.Error(w, `{"error":"invalid price sources"}`, http.StatusBadRequest)
				return
			}

			results, report := eng.ProcessBatch(r.Context(), engine.Batch{
				Lines:   req.Lines,
				Ladders: ladders,
			})
			for i := range results {
				if results[i].Err != nil {
					results[i].ErrText = results[i].Err.Error()
				}
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"report":  report,
				"results": results,
			})
		})

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv := &http.Server{Addr: addr, Handler: mux}

		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()

		zap.L().Info("serve: listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override configured port")
	rootCmd.AddCommand(serveCmd)
}
