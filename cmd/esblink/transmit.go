package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ystepanoff/nrfesb/driver/stub"
	proto "github.com/ystepanoff/nrfesb/protocol"
	"github.com/ystepanoff/nrfesb/transport"
)

var (
	cmdTransmit = &cobra.Command{
		Use:   "transmit",
		Short: "Run the transmitter demo loop",
		Long:  ``,
		RunE:  runTransmit,
	}
)

var transmitConf string
var transmitDebug bool
var transmitMetrics string
var transmitLoss float64
var transmitInterval time.Duration
var transmitSeed uint64

func init() {
	rootCmd.AddCommand(cmdTransmit)
	cmdTransmit.Flags().StringVarP(&transmitConf, "conf", "c", "", "Link configuration file")
	cmdTransmit.Flags().BoolVarP(&transmitDebug, "debug", "d", false, "Debug logging (trace)")
	cmdTransmit.Flags().StringVarP(&transmitMetrics, "metrics", "m", "", "Prom metrics address")
	cmdTransmit.Flags().Float64VarP(&transmitLoss, "loss", "l", 0.3, "Simulated loss ratio per attempt")
	cmdTransmit.Flags().DurationVarP(&transmitInterval, "interval", "i", 0, "Send interval (overrides config)")
	cmdTransmit.Flags().Uint64Var(&transmitSeed, "seed", uint64(time.Now().UnixNano()), "Seed for the simulated air")
}

func runTransmit(_ *cobra.Command, _ []string) error {
	log := newLogger("esblink.transmit", transmitDebug)

	conf, err := loadControllerConfig(transmitConf)
	if err != nil {
		return err
	}
	conf.Link.Mode = proto.ModePTX
	if transmitInterval > 0 {
		conf.SendInterval = transmitInterval
	}

	radio := stub.New(stub.WithLoss(transmitLoss, transmitSeed), stub.WithLogger(log))
	defer radio.Close()

	link := transport.NewLinkController(conf, radio, &stub.Clock{StartupDelay: time.Millisecond}, newConsoleIndicator(os.Stdout), log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := link.Start(ctx); err != nil {
		return err
	}

	stopMetrics := serveMetrics(transmitMetrics, "transmit", link, log)
	defer stopMetrics()

	err = link.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	met := link.GetMetrics()
	log.Info().
		Str("link", met.ID).
		Int("submitted", int(met.Tx.Submitted)).
		Int("acked", int(met.Tx.Acked)).
		Int("retries", int(met.Tx.Retries)).
		Msg("transmitter stopped")
	return err
}
