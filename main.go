package main

import (
	"flag"

	"github.com/meeplelab/tileserver/config"
	"github.com/meeplelab/tileserver/logger"
	"github.com/meeplelab/tileserver/persistence"
	"github.com/meeplelab/tileserver/server"
)

func main() {
	dev := flag.Bool("dev", false, "use development logging (console output)")
	flag.Parse()

	// Initialize logger
	if *dev {
		logger.InitDevelopment()
	} else {
		logger.Init()
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	var db persistence.Database
	pg := cfg.Database.Postgres
	switch cfg.Database.Driver {
	case "sql":
		db, err = persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		db, err = persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, db)

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
