package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/loopholelabs/logging"
	"github.com/loopholelabs/logging/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ystepanoff/nrfesb/config"
	esbprom "github.com/ystepanoff/nrfesb/metrics/prometheus"
	proto "github.com/ystepanoff/nrfesb/protocol"
	"github.com/ystepanoff/nrfesb/transport"
)

func newLogger(name string, debug bool) types.RootLogger {
	log := logging.New(logging.Zerolog, name, os.Stderr)
	if debug {
		log.SetLevel(types.TraceLevel)
	}
	return log
}

// loadControllerConfig reads path, or starts from the defaults when path is empty.
func loadControllerConfig(path string) (*transport.ControllerConfig, error) {
	schema := config.DefaultSchema()
	if path != "" {
		var err error
		schema, err = config.ReadSchema(path)
		if err != nil {
			return nil, err
		}
	}
	return schema.ControllerConfig()
}

// serveMetrics exposes the link on addr until the returned func is called.
func serveMetrics(addr string, name string, link *transport.LinkController, log types.Logger) func() {
	if addr == "" {
		return func() {}
	}

	reg := prometheus.NewRegistry()
	met := esbprom.New(reg, esbprom.DefaultConfig())
	met.AddLink(name, link)

	// Add the default go metrics
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		reg,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Registry:          reg,
		},
	))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()

	return func() {
		met.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// consoleIndicator renders the three status outputs as a row of lamps.
type consoleIndicator struct {
	out io.Writer
	on  *color.Color
	off *color.Color
}

func newConsoleIndicator(out io.Writer) *consoleIndicator {
	return &consoleIndicator{
		out: out,
		on:  color.New(color.FgGreen, color.Bold),
		off: color.New(color.FgHiBlack),
	}
}

func (c *consoleIndicator) Show(p proto.IndicatorPattern) {
	lamps := make([]string, 0, len(p))
	for _, lit := range p {
		if lit {
			lamps = append(lamps, c.on.Sprint("●"))
		} else {
			lamps = append(lamps, c.off.Sprint("○"))
		}
	}
	fmt.Fprintf(c.out, "leds %s\n", strings.Join(lamps, " "))
}
