package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/themeparkwaits/internal/app"
	"github.com/coreman2200/themeparkwaits/internal/config"
	"github.com/coreman2200/themeparkwaits/internal/display"
	"github.com/coreman2200/themeparkwaits/internal/layout"
	"github.com/coreman2200/themeparkwaits/internal/led"
	"github.com/coreman2200/themeparkwaits/internal/queuetimes"
	"github.com/coreman2200/themeparkwaits/internal/render"
	"github.com/coreman2200/themeparkwaits/internal/ws"
)

func main() {
	// ---- Flags (the settings file overrides the hardware ones) ----
	var (
		width      = flag.Int("width", 64, "matrix width in pixels")
		height     = flag.Int("height", 32, "matrix height in pixels")
		serpentine = flag.Bool("serpentine", false, "rows alternate direction along the chain")
		driver     = flag.String("driver", "sim", "driver: spi | console | sim")
		spiPort    = flag.String("spi-port", "", "SPI port name; empty picks the first")
		spiHz      = flag.Int("spi-hz", 0, "SPI clock in Hz; 0 for the WS2812 default")
		budgetmA   = flag.Float64("budget-ma", 0, "current budget in mA; 0 disables")
		addr       = flag.String("addr", ":8080", "HTTP listen address")
		configPath = flag.String("config", "settings.yaml", "path to settings.yaml")
		dataDir    = flag.String("data", "", "read parks from this directory instead of queue-times.com")
		baseURL    = flag.String("base-url", queuetimes.DefaultBaseURL, "queue-times.com API root")
		noReveal   = flag.Bool("no-reveal", false, "skip the opening reveal")
		logLevel   = flag.String("log-level", "info", "trace | debug | info | warn | error")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	if lvl, err := zerolog.ParseLevel(*logLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Err(err).Str("level", *logLevel).Msg("Unknown log level; using info")
	}

	// ---- Settings ----
	hw := config.Hardware{
		Driver:     *driver,
		Width:      *width,
		Height:     *height,
		Serpentine: *serpentine,
		BudgetmA:   *budgetmA,
		WhiteCap:   config.DefaultHardware().WhiteCap,
		SPI:        config.SPI{Port: *spiPort, SpeedHz: *spiHz},
	}
	settings, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("Settings load failed; proceeding with defaults and flags")
		settings = config.New(nil)
		settings.Hardware = hw
	} else {
		settings.Hardware = mergeHardware(settings.Hardware, hw)
	}
	hw = settings.Hardware

	// ---- Layout, preview state and driver ----
	lay := layout.Layout{
		Dim:   layout.Dim{X: hw.Width, Y: hw.Height},
		Order: layout.Serpentine{XFlipEveryRow: hw.Serpentine},
	}
	state := ws.NewState(lay, hw.Driver, log.Logger)

	var out led.Driver
	switch hw.Driver {
	case "sim":
		out = state
	case "spi":
		freq := physic.Frequency(hw.SPI.SpeedHz) * physic.Hertz
		out = led.Tee{led.Open(hw.SPI.Port, lay, freq, log.Logger), state}
	case "console":
		out = led.Tee{led.NewConsole(hw.Width, hw.Height), state}
	default:
		log.Warn().Str("driver", hw.Driver).Msg("Unknown driver; using sim")
		out = state
	}
	defer out.Close()

	eng, err := render.NewEngine(render.Dimensions{W: hw.Width, H: hw.Height}, out)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating render engine")
	}
	limiter := render.DefaultLimiter(hw.BudgetmA)
	limiter.WhiteCap = hw.WhiteCap
	eng.SetPost(render.PostPipeline{Limiter: limiter.Apply})

	matrix := display.NewMatrix(eng, settings, log.Logger)
	matrix.Layout = lay

	// ---- Park data ----
	var src queuetimes.Source
	if *dataDir != "" {
		src = queuetimes.Dir(*dataDir)
	} else {
		c := queuetimes.New(log.Logger)
		c.BaseURL = *baseURL
		src = c
	}

	a := app.New(settings, src, matrix, log.Logger)
	a.SettingsPath = *configPath
	a.Diag = state
	state.Controller = a

	// ---- HTTP routes ----
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", state.HandleFramesWS)
	mux.HandleFunc("/diag", state.HandleDiagWS)
	mux.HandleFunc("/control", state.HandleControlWS)
	mux.HandleFunc("/health", state.HandleHealth)
	mux.HandleFunc("/parks", a.HandleParks)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ---- Run server, display loop and settings watcher ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", *addr).Str("driver", hw.Driver).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if !*noReveal {
			if err := a.Initialize(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
		return a.Run(ctx)
	})
	g.Go(func() error {
		if err := config.Watch(ctx, *configPath, log.Logger, a.Reload); err != nil {
			log.Warn().Err(err).Msg("Settings will not hot reload")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Shutting down")
		return
	}
	log.Info().Msg("Shut down")
}

// mergeHardware fills unset fields of the settings file from the flags.
func mergeHardware(file, flags config.Hardware) config.Hardware {
	if file.Driver == "" {
		file.Driver = flags.Driver
	}
	if file.Width <= 0 {
		file.Width = flags.Width
	}
	if file.Height <= 0 {
		file.Height = flags.Height
	}
	file.Serpentine = file.Serpentine || flags.Serpentine
	if file.BudgetmA == 0 {
		file.BudgetmA = flags.BudgetmA
	}
	if file.WhiteCap == 0 {
		file.WhiteCap = flags.WhiteCap
	}
	if file.SPI.Port == "" {
		file.SPI.Port = flags.SPI.Port
	}
	if file.SPI.SpeedHz == 0 {
		file.SPI.SpeedHz = flags.SPI.SpeedHz
	}
	return file
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}
