package commands

import (
	"context"
	"fmt"
)

type SearchCmd struct {
	Query string `arg:"" help:"Text to match against titles and descriptions."`
	Limit int    `help:"Maximum products to list." default:"10"`
}

func (s *SearchCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	products := app.catalog.Search(ctx, s.Query, s.Limit)

	fmt.Printf("Results for %q:\n", s.Query)
	printProducts(products)
	return nil
}
