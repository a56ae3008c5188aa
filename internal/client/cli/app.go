// Package cli implements the interactive listsync client: a small REPL for
// account and list management plus a live per-list view that applies edits
// optimistically and follows server broadcasts.
package cli

import (
	"bufio"
	"context"
	"os"

	"github.com/mbakke/listsync/internal/client/api"
	"github.com/mbakke/listsync/internal/client/config"
)

type App struct {
	config   *config.Config
	client   api.Client
	reader   *bufio.Reader
	userName string
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		client: api.NewHTTPClient(c.ServerURL),
		reader: bufio.NewReader(os.Stdin),
	}
}

func (a *App) Run(ctx context.Context) {
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.client.IsLoggedIn()
}
