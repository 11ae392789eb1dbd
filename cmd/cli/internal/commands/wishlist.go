package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/pricescout/internal/provider"
)

type WishlistCmd struct {
	Add    WishlistAddCmd    `cmd:"" help:"Save a product to the wishlist"`
	Remove WishlistRemoveCmd `cmd:"" help:"Remove a product from the wishlist"`
	List   WishlistListCmd   `cmd:"" default:"1" help:"List saved products"`
}

type WishlistAddCmd struct {
	ProductID string `arg:"" help:"Product id to save."`
}

func (w *WishlistAddCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if err := app.provider.AddToWishlist(ctx, w.ProductID); err != nil {
		return wishlistError(err)
	}

	fmt.Println("Saved.")
	return nil
}

type WishlistRemoveCmd struct {
	ProductID string `arg:"" help:"Product id to remove."`
}

func (w *WishlistRemoveCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if err := app.provider.RemoveFromWishlist(ctx, w.ProductID); err != nil {
		return wishlistError(err)
	}

	fmt.Println("Removed.")
	return nil
}

type WishlistListCmd struct{}

func (w *WishlistListCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	products, err := app.provider.ListWishlist(ctx)
	if err != nil {
		return wishlistError(err)
	}

	printProducts(products)
	return nil
}

func wishlistError(err error) error {
	switch {
	case errors.Is(err, provider.ErrSessionRequired):
		return fmt.Errorf("sign in first: the wishlist belongs to your account")
	case errors.Is(err, provider.ErrNotFound):
		return fmt.Errorf("no such product")
	default:
		return err
	}
}
