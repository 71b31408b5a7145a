package restserver

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/cyclehire/internal/log"
	"github.com/chrissnell/cyclehire/internal/service"
	"github.com/chrissnell/cyclehire/pkg/config"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controller serves the dashboard and its JSON API.
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	FS         fs.FS
	service    *service.Service
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, svc *service.Service, rc config.RESTServerData, logger *zap.SugaredLogger) (*Controller, error) {
	if svc == nil {
		return nil, fmt.Errorf("REST server requires an analysis service")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		service:    svc,
		logger:     logger,
		FS:         GetAssets(),
	}

	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}
	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}
	ctrl.restConfig = rc

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.wrap(ctrl.setupRouter())
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		c.logger.Infof("REST server listening on %s", c.Server.Addr)

		var err error
		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			log.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.requestLogMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/params", c.handlers.GetParams).Methods("GET")
	api.HandleFunc("/capacity", c.handlers.GetCapacity).Methods("GET")
	api.HandleFunc("/capacity/report.xlsx", c.handlers.GetCapacityWorkbook).Methods("GET")
	api.HandleFunc("/stations/{name:.+}/hourly", c.handlers.GetStationHourly).Methods("GET")
	api.HandleFunc("/flows", c.handlers.GetFlows).Methods("GET")
	api.HandleFunc("/critical-times", c.handlers.GetCriticalTimes).Methods("GET")
	api.HandleFunc("/health", c.handlers.GetHealth).Methods("GET")
	api.HandleFunc("/logs/http", c.handlers.GetHTTPLogs).Methods("GET")

	router.HandleFunc("/", c.handlers.ServeIndex).Methods("GET")
	router.PathPrefix("/").Handler(http.FileServer(http.FS(c.FS)))

	return router
}

// wrap applies the outer middleware: panic recovery, optional CORS and gzip.
func (c *Controller) wrap(h http.Handler) http.Handler {
	h = handlers.CompressHandler(h)
	if c.restConfig.EnableCORS {
		origins := c.restConfig.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		h = handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
			handlers.ExposedHeaders([]string{"X-Request-ID"}),
		)(h)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{c.logger}),
		handlers.PrintRecoveryStack(true),
	)(h)
}

// requestLogMiddleware tags every request with an ID and records it in the
// HTTP log buffer.
func (c *Controller) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		log.LogHTTPRequest(requestID, r.Method, r.URL.RequestURI(), rec.status, elapsed, rec.size, r.RemoteAddr, r.UserAgent())
		c.logger.Debugw("request served",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed,
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// recoveryLogger adapts zap to the gorilla/handlers recovery logger.
type recoveryLogger struct {
	logger *zap.SugaredLogger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error(v...)
}
