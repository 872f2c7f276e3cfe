package main

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/moffa90/go-spilink/capture"
	"github.com/moffa90/go-spilink/host"
	"github.com/moffa90/go-spilink/link"
	"github.com/moffa90/go-spilink/sim"
)

// loopbackStep is the simulated time between two transfers
const loopbackStep = 10 * time.Millisecond

func runLoopback(args []string) error {
	fs := newFlagSet("loopback")
	var (
		cfgPath  = fs.String("config", "", "YAML configuration file")
		size     = fs.Int("size", 300, "message size in bytes")
		count    = fs.Int("count", 10, "number of messages")
		drop     = fs.Int("drop", 0, "percent of received frames the peripheral drops")
		corrupt  = fs.Int("corrupt", 0, "percent of frames corrupted in each direction")
		seed     = fs.Int64("seed", 1, "random seed for payloads and faults")
		maxSteps = fs.Int("max-transfers", 20000, "transfers allowed per message")
		capPath  = fs.String("capture", "", "write the transfers to this capture file")
		verbose  = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	clock := clockwork.NewFakeClock()
	bus := sim.NewBus(logger.Named("bus"))
	tap := capture.NewTap(bus, clock)

	var (
		tr     *link.Transport
		echoed [][]byte
	)
	opts := append(cfg.LinkOptions(),
		link.WithClock(clock),
		link.WithLogger(logger.Named("link")),
		link.WithPulseWidth(0),
	)
	if *drop > 0 || *corrupt > 0 {
		// a watchdog reset would discard the echo in flight
		opts = append(opts,
			link.WithInjector(link.NewRandomInjector(*corrupt, *drop, *seed)),
			link.WithRetransmitPeriod(100*time.Millisecond),
			link.WithQueueResetTimeout(time.Hour),
		)
	}

	tr, err = link.New(tap, sim.NewLine(clock), link.Callbacks{
		TxDone: func() {},
		RxDone: func(msg []byte) error {
			err := tr.Send(msg)
			if errors.Is(err, link.ErrBusy) {
				return link.ErrOutOfMemory
			}
			return err
		},
	}, opts...)
	if err != nil {
		return err
	}
	defer tr.Close()

	peer := host.New(append(cfg.HostOptions(),
		host.WithLogger(logger.Named("host")),
		host.WithOnMessage(func(msg []byte) { echoed = append(echoed, msg) }),
	)...)

	step := func() error {
		if err := tr.Process(); err != nil {
			return err
		}
		if err := peer.Exchange(bus); err != nil {
			return err
		}
		if err := tr.Process(); err != nil {
			return err
		}
		clock.Advance(loopbackStep)
		return nil
	}

	rng := rand.New(rand.NewSource(*seed))
	start := time.Now()
	for i := 0; i < *count; i++ {
		msg := make([]byte, *size)
		rng.Read(msg)

		if err := peer.Send(msg); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		steps := 0
		for len(echoed) <= i || !peer.Idle() {
			if steps++; steps > *maxSteps {
				return fmt.Errorf("message %d not echoed after %d transfers", i, *maxSteps)
			}
			if err := step(); err != nil {
				return fmt.Errorf("message %d: %w", i, err)
			}
		}
		if !bytes.Equal(echoed[i], msg) {
			return fmt.Errorf("message %d: echo differs", i)
		}
		logger.Debug("echoed", zap.Int("message", i), zap.Int("transfers", steps))
	}

	ls, hs := tr.Stats(), peer.Stats()
	fmt.Printf("echoed %d x %d bytes in %v (%d transfers, %v simulated)\n",
		*count, *size, time.Since(start).Round(time.Millisecond), ls.Transfers,
		time.Duration(ls.Transfers)*loopbackStep)
	fmt.Printf("link: data=%d retransmits=%d acks=%d nacks=%d crc_errors=%d duplicates=%d overflows=%d resets=%d\n",
		ls.DataSent, ls.Retransmits, ls.AcksSent, ls.NacksSent, ls.CRCErrors, ls.Duplicates, ls.Overflows, ls.QueueResets)
	fmt.Printf("host: data=%d retransmits=%d acks=%d nacks=%d crc_errors=%d\n",
		hs.DataSent, hs.Retransmits, hs.AcksSent, hs.NacksSent, hs.CRCErrors)

	if *capPath != "" {
		if err := tap.Capture().WriteFile(*capPath); err != nil {
			return err
		}
		fmt.Printf("capture written to %s\n", *capPath)
	}
	return nil
}
