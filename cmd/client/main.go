package main

import (
	"context"

	"github.com/mbakke/listsync/internal/client/cli"
	"github.com/mbakke/listsync/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)
	app.Run(ctx)

}
