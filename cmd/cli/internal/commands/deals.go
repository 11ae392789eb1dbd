package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfeidau/pricescout/internal/catalog"
	"github.com/wolfeidau/pricescout/internal/realtime"
)

type DealsCmd struct {
	Category string `help:"Filter by category." default:""`
	Limit    int    `help:"Maximum products to list." default:"10"`
	Offset   int    `help:"Offset into the listing." default:"0"`
	Watch    bool   `help:"Stay connected and live-update as prices change." default:"false"`
}

func (d *DealsCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if d.Watch {
		return d.watch(ctx, app)
	}

	products := app.catalog.ListProducts(ctx, catalog.Filter{
		Limit:    d.Limit,
		Offset:   d.Offset,
		Category: d.Category,
	})
	printProducts(products)
	return nil
}

// watch keeps a live product collection via the change feed and redraws it
// on a short ticker.
func (d *DealsCmd) watch(ctx context.Context, app *app) error {
	ctrl := realtime.NewController(app.catalog, app.provider)
	defer ctrl.Stop()

	if err := ctrl.SetScope(ctx, realtime.Scope{}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("Received interrupt signal, shutting down...")
		cancel()
	}()

	fmt.Println("Watching deals (press Ctrl+C to stop)...")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fmt.Print("\033[2J\033[H")
			fmt.Printf("Deals [%s] (updated at %s)\n\n", ctrl.State(), time.Now().Format("15:04:05"))
			printProducts(ctrl.Products())
		}
	}
}
