package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loadprofile/internal/audit"
	"loadprofile/internal/auth"
	"loadprofile/internal/config"
	"loadprofile/internal/observability/metrics"
	"loadprofile/internal/usage/application"
	usage "loadprofile/internal/usage/domain"
	"loadprofile/internal/usage/infrastructure/holiday"
	"loadprofile/internal/usage/infrastructure/postgres"
	"loadprofile/internal/usage/infrastructure/source"
	"loadprofile/internal/usage/interfaces/export"
	summaryhttp "loadprofile/internal/usage/interfaces/http"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("LOADPROFILE_JWT_SECRET is required")
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	}

	metrics.Init(db, logger)

	calendar, holidayStore := loadHolidays(cfg, db, logger)
	convention, err := usage.ParseLabelConvention(cfg.Source.LabelConvention)
	if err != nil {
		logger.Fatalf("label convention error: %v", err)
	}
	encoding, err := source.ParseEncoding(cfg.Source.Encoding)
	if err != nil {
		logger.Fatalf("encoding error: %v", err)
	}

	engine, err := usage.NewEngine(usage.NewClassifier(calendar.Snapshot()))
	if err != nil {
		logger.Fatalf("engine error: %v", err)
	}
	serviceOpts := []application.Option{
		application.WithLogger(logger),
		application.WithHolidaySource(calendar),
	}
	if db != nil {
		serviceOpts = append(serviceOpts, application.WithRepository(postgres.NewSummaryRepository(db)))
	}
	service, err := application.NewSummaryService(usage.NewNormalizer(usage.WithLabelConvention(convention)), engine, serviceOpts...)
	if err != nil {
		logger.Fatalf("summary service error: %v", err)
	}

	grid := export.GridLayout{
		Sheet:           cfg.Export.Grid.Sheet,
		WeekdayStartCol: cfg.Export.Grid.WeekdayStartCol,
		HolidayStartCol: cfg.Export.Grid.HolidayStartCol,
		FirstSlotRow:    cfg.Export.Grid.FirstSlotRow,
		DayCountRow:     cfg.Export.Grid.DayCountRow,
	}
	writer, err := export.NewTemplateWriter(grid,
		export.WithTemplate(cfg.Export.TemplatePath),
		export.WithRawSheets(cfg.Export.RawSheets))
	if err != nil {
		logger.Fatalf("template writer error: %v", err)
	}

	handlerOpts := []summaryhttp.Option{
		summaryhttp.WithLogger(logger),
		summaryhttp.WithMaxUploadBytes(cfg.MaxUploadBytes()),
		summaryhttp.WithSourceOptions(source.Options{
			WorkbookHeaderRow: cfg.Source.WorkbookHeaderRow,
			CSVHeaderRow:      cfg.Source.CSVHeaderRow,
			Encoding:          encoding,
		}),
		summaryhttp.WithHolidays(calendar, holidayStore),
	}
	if db != nil {
		handlerOpts = append(handlerOpts, summaryhttp.WithAuditLogger(audit.NewRepository(db)))
	}
	handler, err := summaryhttp.NewHandler(service, writer, handlerOpts...)
	if err != nil {
		logger.Fatalf("summary handler error: %v", err)
	}

	authPolicy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), authPolicy, cfg.TenantID)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	handler.Routes(router)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(router), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		logger.Printf("http listening on %s history=%t", cfg.HTTPAddr, service.HistoryEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	logger.Printf("http stopped")
}

// loadHolidays prefers the YAML file; otherwise the calendar comes from public_holidays
// and can be edited over the API.
func loadHolidays(cfg config.Config, db *sql.DB, logger *log.Logger) (*holiday.Dynamic, summaryhttp.HolidayStore) {
	if cfg.HolidayFile != "" {
		cal, err := holiday.LoadFile(cfg.HolidayFile)
		if err != nil {
			logger.Fatalf("holiday file error: %v", err)
		}
		logger.Printf("holidays loaded: source=%s count=%d", cfg.HolidayFile, cal.Len())
		return holiday.NewDynamic(cal), nil
	}
	if db == nil {
		logger.Printf("holidays: no calendar configured, weekends only")
		return holiday.NewDynamic(nil), nil
	}
	repo := postgres.NewHolidayRepository(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cal, err := repo.LoadCalendar(ctx)
	if err != nil {
		logger.Fatalf("holiday load error: %v", err)
	}
	logger.Printf("holidays loaded: source=db count=%d", cal.Len())
	return holiday.NewDynamic(cal), repo
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
