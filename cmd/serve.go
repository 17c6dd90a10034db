package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/andresmejia3/rollcall/internal/web"
	"github.com/spf13/cobra"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the attendance report API",
	Long:  "Starts an HTTP server exposing students, attendance history and today's count as JSON under /api/v1.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if cmd.Flags().Changed("host") {
			Cfg.Web.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			Cfg.Web.Port = servePort
		}
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "Listen address")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Listen port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	srv := web.NewServer(DB, Cfg.Web.Host, Cfg.Web.Port, slog.Default())

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start()
	}()
	fmt.Fprintf(os.Stderr, "🌐 Listening on http://%s:%d/api/v1 (Ctrl+C to stop)\n", Cfg.Web.Host, Cfg.Web.Port)

	select {
	case err := <-errc:
		if err != nil {
			utils.ShowError("Web server failed", err)
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}
