package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/loopholelabs/logging/types"
	"github.com/spf13/cobra"
	"github.com/ystepanoff/nrfesb/driver/stub"
	proto "github.com/ystepanoff/nrfesb/protocol"
	"github.com/ystepanoff/nrfesb/transport"
)

var (
	cmdReceive = &cobra.Command{
		Use:   "receive",
		Short: "Run the receiver fed by a simulated remote transmitter",
		Long:  ``,
		RunE:  runReceive,
	}
)

var receiveConf string
var receiveDebug bool
var receiveMetrics string
var receiveLoss float64
var receiveInterval time.Duration
var receiveSeed uint64

func init() {
	rootCmd.AddCommand(cmdReceive)
	cmdReceive.Flags().StringVarP(&receiveConf, "conf", "c", "", "Link configuration file")
	cmdReceive.Flags().BoolVarP(&receiveDebug, "debug", "d", false, "Debug logging (trace)")
	cmdReceive.Flags().StringVarP(&receiveMetrics, "metrics", "m", "", "Prom metrics address")
	cmdReceive.Flags().Float64VarP(&receiveLoss, "loss", "l", 0.1, "Simulated frame loss ratio")
	cmdReceive.Flags().DurationVarP(&receiveInterval, "interval", "i", time.Second, "Remote transmitter interval")
	cmdReceive.Flags().Uint64Var(&receiveSeed, "seed", uint64(time.Now().UnixNano()), "Seed for the simulated air")
}

func runReceive(_ *cobra.Command, _ []string) error {
	log := newLogger("esblink.receive", receiveDebug)

	conf, err := loadControllerConfig(receiveConf)
	if err != nil {
		return err
	}
	conf.Link.Mode = proto.ModePRX

	highlight := color.New(color.FgCyan)
	conf.OnReceive = func(p *proto.Payload) {
		fmt.Fprintf(color.Output, "pipe %d pid %d %s\n", p.Pipe, p.PID, highlight.Sprintf("% x", p.Bytes()))
	}

	radio := stub.New(stub.WithLogger(log))
	defer radio.Close()

	link := transport.NewLinkController(conf, radio, &stub.Clock{StartupDelay: time.Millisecond}, newConsoleIndicator(os.Stdout), log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := link.Start(ctx); err != nil {
		return err
	}

	stopMetrics := serveMetrics(receiveMetrics, "receive", link, log)
	defer stopMetrics()

	pipe, err := conf.Addresses.Pipe(conf.Pipe)
	if err != nil {
		return err
	}
	if conf.SequenceIndex < 0 || conf.SequenceIndex >= len(conf.Payload) {
		return fmt.Errorf("%w: sequence index %d outside payload", proto.ErrInvalidConfig, conf.SequenceIndex)
	}

	err = remoteTransmitter(ctx, radio, pipe, conf, log)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// remoteTransmitter plays the other end of the link: every interval it puts the next
// demo payload on air. A payload lost on air is sent again on the next tick.
func remoteTransmitter(ctx context.Context, radio *stub.Driver, pipe proto.Pipe, conf *transport.ControllerConfig, log types.Logger) error {
	rnd := rand.New(rand.NewPCG(receiveSeed, receiveSeed>>1))
	ticker := time.NewTicker(receiveInterval)
	defer ticker.Stop()

	var seq byte
	var pid uint8
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		p, err := proto.NewPayload(pipe.Index, conf.Payload...)
		if err != nil {
			return err
		}
		p.Data[conf.SequenceIndex] = seq
		pid = proto.NextPID(pid)
		frame := proto.EncodeFrame(proto.FrameFor(pipe, pid, p))

		if rnd.Float64() < receiveLoss {
			log.Debug().Uint8("sequence", seq).Msg("remote frame lost")
			continue
		}
		if err := radio.InjectFrame(frame); err != nil {
			log.Warn().Err(err).Msg("remote frame rejected")
			continue
		}
		seq++
	}
}
