package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/krancour/identity/internal/version"
)

func main() {
	// We need to parse flags for glog-related options to take effect
	flag.Parse()

	glog.Infof(
		"Starting identity API server -- version %s -- commit %s",
		version.Version(),
		version.Commit(),
	)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	apiServer, replicator, closeStores, err := getAPIServerFromEnvironment()
	if err != nil {
		glog.Fatal(err)
	}
	defer closeStores()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	replicatorErrCh := make(chan error, 1)
	go func() {
		replicatorErrCh <- replicator.Run(ctx)
	}()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- apiServer.ListenAndServe(ctx)
	}()

	// Whichever stops first takes the other down with it
	select {
	case err = <-replicatorErrCh:
		if ctx.Err() == nil {
			glog.Error(err)
		}
		cancel()
		if err = <-serverErrCh; err != nil {
			glog.Error(err)
		}
	case err = <-serverErrCh:
		if err != nil {
			glog.Error(err)
		}
		cancel()
		<-replicatorErrCh
	}
	glog.Info("identity API server stopped")
}
