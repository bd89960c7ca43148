package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/badrabdoph/sitekeeper/internal/config"
	"github.com/badrabdoph/sitekeeper/internal/server"
)

func main() {

	// a missing .env file is fine, the environment may be set directly
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
