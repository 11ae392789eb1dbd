package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pricescout/cmd/cli/internal/config"
	"github.com/wolfeidau/pricescout/cmd/cli/internal/sessioncache"
	"github.com/wolfeidau/pricescout/internal/auth"
	"github.com/wolfeidau/pricescout/internal/catalog"
	"github.com/wolfeidau/pricescout/internal/logger"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider/postgres"
	"github.com/wolfeidau/pricescout/internal/session"
	"github.com/wolfeidau/pricescout/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Config  string
	Version string
}

// app wires the CLI's backend stack: the postgres provider, session store,
// auth gateway and catalog reads.
type app struct {
	provider *postgres.Provider
	sessions *session.Store
	gateway  *auth.Gateway
	catalog  *catalog.Client
	cache    *sessioncache.Cache

	shutdownTelemetry func(context.Context) error
}

// setup builds the stack and restores the cached session when one exists.
func setup(ctx context.Context, globals *Globals) (*app, error) {
	logger.Setup(globals.Debug)

	shutdown, err := telemetry.InitTelemetry(ctx, "pricescout-cli", globals.Version)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(globals.Config)
	if err != nil {
		return nil, err
	}

	prov, err := postgres.New(ctx, cfg.ProviderConfig())
	if err != nil {
		return nil, err
	}

	cache, err := sessioncache.New("")
	if err != nil {
		prov.Close()
		return nil, err
	}

	sessions := session.NewStore()
	gateway := auth.NewGateway(prov, sessions)

	a := &app{
		provider:          prov,
		sessions:          sessions,
		gateway:           gateway,
		catalog:           catalog.NewClient(prov),
		cache:             cache,
		shutdownTelemetry: shutdown,
	}

	// Restoring rotates the refresh token, so persist the replacement
	// immediately.
	if cached, err := cache.Load(); err == nil {
		if err := prov.RestoreSession(ctx, cached.RefreshToken); err != nil {
			log.Debug().Err(err).Msg("cached session no longer valid")
			_ = cache.Clear()
		} else if err := a.persistSession(); err != nil {
			log.Warn().Err(err).Msg("failed to persist restored session")
		}
	}

	return a, nil
}

func (a *app) Close(ctx context.Context) {
	a.gateway.Close()
	a.provider.Close()
	if err := a.shutdownTelemetry(ctx); err != nil {
		log.Debug().Err(err).Msg("telemetry shutdown")
	}
}

// persistSession mirrors the session store into the on-disk cache.
func (a *app) persistSession() error {
	state := a.sessions.Get()
	if !state.LoggedIn() {
		return a.cache.Clear()
	}
	return a.cache.Save(state.Session)
}

func printProducts(products []models.Product) {
	if len(products) == 0 {
		fmt.Println("No products found.")
		return
	}

	fmt.Printf("%-36s %-30s %-15s %10s %10s %7s\n",
		"Product ID", "Title", "Category", "Price", "Deal", "Rating")
	fmt.Println(strings.Repeat("-", 115))

	for _, p := range products {
		deal := "-"
		if p.DiscountPrice != nil {
			deal = fmt.Sprintf("%.2f", *p.DiscountPrice)
		}

		fmt.Printf("%-36s %-30s %-15s %10.2f %10s %7.1f\n",
			p.ID,
			truncate(p.Title, 30),
			truncate(p.Category, 15),
			p.Price,
			deal,
			p.Rating)
	}
}

func printOffers(offers []models.Offer) {
	if len(offers) == 0 {
		fmt.Println("No store offers found.")
		return
	}

	fmt.Printf("%-20s %10s %-8s %s\n", "Store", "Price", "Stock", "URL")
	fmt.Println(strings.Repeat("-", 80))

	for i, o := range offers {
		stock := "yes"
		if !o.InStock {
			stock = "no"
		}

		marker := ""
		if i == 0 {
			marker = " (cheapest)"
		}

		fmt.Printf("%-20s %10.2f %-8s %s%s\n",
			truncate(o.StoreName, 20), o.Price, stock, o.URL, marker)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
