package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/anyproto/any-sync/metric"
	"go.uber.org/zap"

	"github.com/anyproto/anytype-push-dispatch/config"
	"github.com/anyproto/anytype-push-dispatch/db"
	"github.com/anyproto/anytype-push-dispatch/dispatch"
	"github.com/anyproto/anytype-push-dispatch/dispatch/provider/apns"
	"github.com/anyproto/anytype-push-dispatch/dispatch/provider/fcm"
	"github.com/anyproto/anytype-push-dispatch/dispatch/provider/legacy"
	"github.com/anyproto/anytype-push-dispatch/queue"
	"github.com/anyproto/anytype-push-dispatch/redisprovider"
	"github.com/anyproto/anytype-push-dispatch/repo/tokenrepo"
	"github.com/anyproto/anytype-push-dispatch/sink"

	// runtime profiler
	_ "net/http/pprof"
)

var log = logger.NewNamed("main")

var (
	flagConfigFile = flag.String("c", "etc/config.yml", "path to config file")
	flagVersion    = flag.Bool("v", false, "show version and exit")
	flagHelp       = flag.Bool("h", false, "show help and exit")
)

func main() {
	flag.Parse()

	app.AppName = "anytype-push-dispatch"

	if *flagVersion {
		fmt.Println(app.VersionDescription())
		return
	}
	if *flagHelp {
		flag.PrintDefaults()
		return
	}

	if debug, ok := os.LookupEnv("ANYPROF"); ok && debug != "" {
		log.Info("start profiler", zap.String("addr", debug))
		go func() {
			if err := http.ListenAndServe(debug, nil); err != nil {
				log.Warn("can't start profiler", zap.Error(err))
			}
		}()
	}

	conf, err := config.NewFromFile(*flagConfigFile)
	if err != nil {
		log.Fatal("can't open config file", zap.Error(err))
	}

	a := new(app.App)
	a.Register(conf)
	Bootstrap(a)

	if err = a.Start(context.Background()); err != nil {
		log.Fatal("can't start app", zap.Error(err))
	}
	log.Info("app started", zap.String("version", app.GitSummary))

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGABRT, syscall.SIGQUIT, syscall.SIGTERM)
	sig := <-exit
	log.Info("received exit signal, stop app...", zap.String("signal", fmt.Sprint(sig)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err = a.Close(ctx); err != nil {
		log.Fatal("close error", zap.Error(err))
	} else {
		log.Info("goodbye!")
	}
	time.Sleep(time.Millisecond * 300)
}

func Bootstrap(a *app.App) {
	a.Register(metric.New()).
		Register(db.New()).
		Register(redisprovider.New()).
		Register(tokenrepo.New()).
		Register(queue.New()).
		Register(sink.New()).
		Register(dispatch.New()).
		Register(fcm.New()).
		Register(apns.New()).
		Register(legacy.New())
}
