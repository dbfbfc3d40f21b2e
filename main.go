package main

import (
	"os"
	"os/signal"

	"cakey/birthday"
	"cakey/bot"
	"cakey/config"
	"cakey/dal"
	"cakey/sweep"

	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Bad configuration: %v", err)
	}

	db, err := dal.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}

	resolver, err := birthday.NewResolver(cfg.DefaultTimezone)
	if err != nil {
		log.Fatalf("Bad default timezone: %v", err)
	}

	// The sweeper needs the bot as its emitter, and the bot needs the
	// sweeper's Start as its ready hook. The wired channel holds back a
	// ready event that arrives before the sweeper exists; Start itself
	// is double-start guarded, so reconnect ready events are harmless.
	var sweeper *sweep.Sweeper
	wired := make(chan struct{})
	cakey, err := bot.New(cfg, db, resolver, func() {
		<-wired
		sweeper.Start()
	})
	if err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}
	sweeper = sweep.New(db, cakey, resolver)
	close(wired)
	defer cakey.Shutdown()
	defer sweeper.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
}
