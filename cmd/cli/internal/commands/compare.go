package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/realtime"
)

type CompareCmd struct {
	ProductID string `arg:"" help:"Product id to compare store prices for."`
	Watch     bool   `help:"Stay connected and live-update as offers change." default:"false"`
}

func (c *CompareCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if c.Watch {
		return c.watch(ctx, app)
	}

	product := app.catalog.GetProduct(ctx, c.ProductID)
	if product == nil {
		fmt.Println("Product not found.")
		return nil
	}

	offers := app.catalog.ListStores(ctx, c.ProductID)
	printComparison(product, offers)
	return nil
}

func (c *CompareCmd) watch(ctx context.Context, app *app) error {
	ctrl := realtime.NewController(app.catalog, app.provider)
	defer ctrl.Stop()

	if err := ctrl.SetScope(ctx, realtime.Scope{ProductID: c.ProductID}); err != nil {
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

	fmt.Println("Watching offers (press Ctrl+C to stop)...")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fmt.Print("\033[2J\033[H")
			fmt.Printf("Price comparison [%s] (updated at %s)\n\n", ctrl.State(), time.Now().Format("15:04:05"))

			product := ctrl.Product(c.ProductID)
			if product == nil {
				fmt.Println("Product not found.")
				continue
			}
			printComparison(product, ctrl.StoresFor(c.ProductID))
		}
	}
}

func printComparison(product *models.Product, offers []models.Offer) {
	fmt.Printf("%s\n", product.Title)
	fmt.Printf("Listed price: %.2f", product.Price)
	if product.DiscountPrice != nil {
		fmt.Printf("  (deal: %.2f)", *product.DiscountPrice)
	}
	fmt.Println()
	fmt.Println()
	printOffers(offers)
}
