package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/gabrieldemian/p2p-chat/internal/fabric"
	"github.com/gabrieldemian/p2p-chat/internal/logging"
	"github.com/gabrieldemian/p2p-chat/internal/logging/events"
	"github.com/gabrieldemian/p2p-chat/internal/metrics"
	"github.com/gabrieldemian/p2p-chat/internal/network"
	"github.com/gabrieldemian/p2p-chat/internal/overlay"
	"github.com/gabrieldemian/p2p-chat/internal/ui"
)

// ErrNoTerminal is returned when stdin or stdout is not a terminal.
var ErrNoTerminal = errors.New("p2p-chat needs an interactive terminal")

// Config describes user-provided application options.
type Config struct {
	Peer            string
	ListenAddress   string
	Tick            time.Duration
	ChannelCapacity int
	MDNS            bool
	DHT             bool
	Rendezvous      string
	MetricsAddress  string
	Room            string
}

var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// daemon and program are the two actors. They are interfaces so tests can
// supervise stand-ins.
type daemon interface {
	Run(ctx context.Context) error
}

type program interface {
	Run() (tea.Model, error)
}

// Run builds the overlay, the fabric and both actors, then blocks until both
// actors have stopped.
func Run(ctx context.Context, cfg Config) error {
	if !isTerminal() {
		return ErrNoTerminal
	}

	ov, err := overlay.NewLibp2p(ctx, overlay.Options{
		ListenAddress: cfg.ListenAddress,
		MDNS:          cfg.MDNS,
		DHT:           cfg.DHT,
		Rendezvous:    cfg.Rendezvous,
	})
	if err != nil {
		return fmt.Errorf("start overlay: %w", err)
	}

	fab := fabric.New(cfg.ChannelCapacity)
	counters := metrics.NewDaemon()
	d := network.New(ov, fab, network.Options{BootPeer: cfg.Peer, Metrics: counters})
	// UI sends give up once the daemon is gone.
	uiSends, daemonGone := context.WithCancel(ctx)
	defer daemonGone()
	model := ui.NewModel(fab, ui.Options{Tick: cfg.Tick, Room: cfg.Room, Context: uiSends})
	prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithoutSignalHandler())

	var serveErr <-chan error
	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()
	if cfg.MetricsAddress != "" {
		srv, err := metrics.Listen(cfg.MetricsAddress, counters)
		if err != nil {
			_ = ov.Close()
			return err
		}
		ch := make(chan error, 1)
		go func() { ch <- srv.Serve(serveCtx) }()
		serveErr = ch
	}

	shutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = supervise(ctx, shutdown, fab, d, prog, daemonGone)
	stopServing()
	if serveErr != nil {
		err = multierr.Append(err, <-serveErr)
	}
	return err
}

// supervise runs both actors until they have stopped. When shutdown ends,
// Quit is sent on both channels; when the UI stops for any reason, Quit is
// sent to the daemon and the UI's end of the event channel is drained until
// the daemon exits, so a daemon blocked on a full channel still reaches the
// Quit. daemonGone is called once the daemon has returned.
func supervise(ctx, shutdown context.Context, fab *fabric.Fabric, d daemon, prog program, daemonGone context.CancelFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	daemonCtx, daemonStopped := context.WithCancel(gctx)
	uiCtx, uiStopped := context.WithCancel(gctx)
	defer daemonStopped()
	defer uiStopped()

	g.Go(func() error {
		defer daemonStopped()
		if daemonGone != nil {
			defer daemonGone()
		}
		err := d.Run(gctx)
		events.App.ActorExit("network", err)
		return err
	})

	g.Go(func() error {
		defer uiStopped()
		_, err := prog.Run()
		events.App.ActorExit("ui", err)
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-uiCtx.Done()
		// A stopped daemon never reads again, so give up once it is gone.
		if err := fab.SendCommand(daemonCtx, fabric.Quit{}); err != nil {
			logging.Debug("daemon already stopped", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		<-uiCtx.Done()
		return drainEvents(daemonCtx, fab)
	})

	g.Go(func() error {
		select {
		case <-shutdown.Done():
		case <-uiCtx.Done():
			return nil
		}
		events.App.Signal("shutdown")
		_ = fab.SendCommand(daemonCtx, fabric.Quit{})
		_ = fab.SendEvent(uiCtx, fabric.Quit{})
		return nil
	})

	return g.Wait()
}

// drainEvents discards events nobody will render until ctx ends.
func drainEvents(ctx context.Context, fab *fabric.Fabric) error {
	discarded := 0
	defer func() {
		if discarded > 0 {
			logging.Debug("discarded events after the UI stopped", zap.Int("count", discarded))
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fab.Events():
			discarded++
		}
	}
}
