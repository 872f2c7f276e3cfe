package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/moffa90/go-spilink/driver/periph"
	"github.com/moffa90/go-spilink/host"
	"github.com/moffa90/go-spilink/link"
)

// processInterval is how often the slave loop runs Process
const processInterval = time.Millisecond

func runSlave(args []string) error {
	fs := newFlagSet("slave")
	var (
		cfgPath = fs.String("config", "", "YAML configuration file")
		verbose = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dev, err := periph.OpenSlave(cfg.Periph(logger.Named("periph")))
	if err != nil {
		return err
	}

	linkLog, logs := cfg.SideChannel(logger.Named("link"))
	opts := append(cfg.LinkOptions(), link.WithLogger(linkLog))
	if logs != nil {
		opts = append(opts, link.WithLogSource(logs))
	}

	var tr *link.Transport
	tr, err = link.New(dev.Bus, dev.Line, link.Callbacks{
		TxDone: func() { linkLog.Info("message sent") },
		RxDone: func(msg []byte) error {
			linkLog.Info("message received", zap.Int("size", len(msg)))
			err := tr.Send(msg)
			if errors.Is(err, link.ErrBusy) {
				return link.ErrOutOfMemory
			}
			return err
		},
	}, opts...)
	if err != nil {
		return multierr.Append(err, dev.Close())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(processInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s := tr.Stats()
			logger.Info("stopping",
				zap.Uint64("transfers", s.Transfers),
				zap.Uint64("messages_received", s.MessagesReceived),
				zap.Uint64("retransmits", s.Retransmits),
				zap.Uint64("queue_resets", s.QueueResets),
			)
			return tr.Close()
		case <-ticker.C:
			if err := tr.Process(); err != nil {
				return err
			}
		}
	}
}

func runHost(args []string) error {
	fs := newFlagSet("host")
	var (
		cfgPath = fs.String("config", "", "YAML configuration file")
		send    = fs.String("send", "", "hex message to send once the link is up")
		wait    = fs.Duration("wait", 0, "stop after this long (0 runs until interrupted)")
		verbose = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var msg []byte
	if *send != "" {
		var err error
		if msg, err = hex.DecodeString(*send); err != nil {
			return fmt.Errorf("-send: %w", err)
		}
	}

	cfg, logger, err := loadConfig(*cfgPath, *verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	m, err := periph.OpenMaster(cfg.Periph(logger.Named("periph")))
	if err != nil {
		return err
	}
	defer m.Close()

	peer := host.New(append(cfg.HostOptions(),
		host.WithLogger(logger.Named("host")),
		host.WithOnMessage(func(b []byte) { fmt.Printf("rx % X\n", b) }),
		host.WithOnSent(func() { fmt.Println("tx done") }),
		host.WithOnLog(func(index byte, text []byte) { fmt.Printf("log[%d] %s\n", index, text) }),
	)...)

	if msg != nil {
		if err := peer.Send(msg); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *wait)
		defer cancel()
	}

	return clockLoop(ctx, m, peer)
}

// clockLoop clocks a transfer whenever the peripheral asserts its interrupt
// or the peer has something outbound.
func clockLoop(ctx context.Context, m *periph.Master, peer *host.Peer) error {
	for {
		if peer.Idle() {
			wctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			err := m.IRQ().WaitAsserted(wctx)
			cancel()
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				continue
			}
		}

		if err := peer.Exchange(m); err != nil {
			return err
		}
	}
}
