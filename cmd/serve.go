package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/overmindtech/doinspect/inspect"
	"github.com/overmindtech/doinspect/logging"
	"github.com/overmindtech/doinspect/tracing"
)

// runner is the part of an Inspector the HTTP front end needs.
type runner interface {
	Inspect(ctx context.Context, logger *logging.Logger, query url.Values) *inspect.Result
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves inspections over HTTP",
	Long: `Starts an HTTP server answering GET /inspect with the result envelope.
The query parameters targetHost, targetPort, targetUsername and
targetPassword select a remote appliance. The envelope code is used as
the HTTP status.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		// Bind these to viper
		err := viper.BindPFlags(cmd.Flags())
		if err != nil {
			log.WithError(err).Fatal("could not bind `serve` flags")
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		inspector, err := inspectorFromViper()
		if err != nil {
			return err
		}

		port := viper.GetString("service-port")
		server := &http.Server{
			Addr:              fmt.Sprintf(":%v", port),
			Handler:           otelhttp.NewHandler(newRouter(inspector), "doinspect"),
			ReadHeaderTimeout: 5 * time.Second,
			// an inspection may use its whole process timeout
			WriteTimeout: time.Duration(viper.GetInt64("process-timeout"))*time.Millisecond + 10*time.Second,
		}

		errs := make(chan error, 1)
		go func() {
			// a recovered panic closes errs without a value
			defer close(errs)
			defer tracing.LogRecoverToReturn(context.Background(), "doinspect.serve")

			log.WithField("port", port).Info("Starting HTTP server")
			errs <- server.ListenAndServe()
		}()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errs:
			if err == nil {
				return errors.New("HTTP server stopped unexpectedly")
			}
			return fmt.Errorf("could not start HTTP server: %w", err)
		case <-sigs:
		}

		log.Info("Stopping HTTP server")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return err
		}
		if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		log.Info("Stopped")

		return nil
	},
}

func newRouter(r runner) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/inspect", inspectHandler(r)).Methods(http.MethodGet)

	return router
}

func healthHandler(rw http.ResponseWriter, r *http.Request) {
	_, span := tracing.Tracer().Start(r.Context(), "healthcheck")
	defer span.End()

	fmt.Fprint(rw, "ok")
}

func inspectHandler(r runner) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		logger := logging.NewLogger(log.WithFields(log.Fields{
			"doinspect.frontend": "http",
			"http.remote":        req.RemoteAddr,
		}))

		result := r.Inspect(req.Context(), logger, req.URL.Query())

		body, err := json.Marshal(result)
		if err != nil {
			logger.Severe(fmt.Sprintf("could not encode result: %v", err))
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(result.Code)
		_, _ = rw.Write(body)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("service-port", "8105", "the port to listen on")
	cobra.CheckErr(viper.BindEnv("service-port", "DOINSPECT_SERVICE_PORT", "SERVICE_PORT")) // fallback to global config
}
