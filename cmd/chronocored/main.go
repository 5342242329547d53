// Command chronocored runs the decoder ingestion host: a Race Engine Core
// bound to a journal database, fed by a UDP decoder listener. It is the
// process real timing decoders talk to over the wire protocol this binary
// listens on; an external control/HTTP layer (out of this module's scope
// per spec §1) would embed the same engine.Engine directly rather than
// going through this binary. Its entry-point shape (flags, zerolog console
// writer, context wired to OS signals) follows the teacher SDK's testclient
// command.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hybridsix/chronocore-rs-sub001/internal/engine"
	"github.com/hybridsix/chronocore-rs-sub001/internal/journal"
	"github.com/hybridsix/chronocore-rs-sub001/internal/model"
	"github.com/hybridsix/chronocore-rs-sub001/internal/udpdecoder"
)

func main() {
	var (
		addr string
		dsn  string
	)
	flag.StringVar(&addr, "addr", "0.0.0.0:9900", "UDP address to listen for decoder pass packets on")
	flag.StringVar(&dsn, "db", "chronocore.sqlite", "sqlite journal database path (':memory:' for a throwaway instance)")
	flag.Parse()

	noColor := runtime.GOOS == "windows"
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor, TimeFormat: zerolog.TimeFieldFormat})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := run(addr, dsn); err != nil {
		log.Fatal().Err(err).Msg("chronocored failed")
	}
}

func run(addr, dsn string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := journal.Open(dsn, journal.DefaultConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	e := engine.New(store)
	listener := udpdecoder.NewListener(ingestAdapter(e))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Run(ctx) })
	g.Go(func() error { return listener.Run(ctx, addr) })

	log.Info().Str("addr", addr).Str("db", dsn).Msg("chronocored started")
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil // cancellation via signal is a clean shutdown, not a failure
}

// ingestAdapter flattens engine.Engine.IngestPass's (IngestResult, error)
// return into udpdecoder.IngestFunc's (accepted, reason, error) shape, so
// udpdecoder never needs to import the engine package.
func ingestAdapter(e *engine.Engine) udpdecoder.IngestFunc {
	return func(pass model.Pass) (bool, string, error) {
		result, err := e.IngestPass(pass)
		if err != nil {
			return false, "", err
		}
		return result.Accepted, result.Reason, nil
	}
}
