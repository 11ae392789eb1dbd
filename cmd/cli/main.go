package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/pricescout/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Sign in with email and password"`
		Signup   commands.SignupCmd   `cmd:"" help:"Create an account"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Sign out"`
		Profile  commands.ProfileCmd  `cmd:"" help:"Show or update the signed-in profile"`
		Deals    commands.DealsCmd    `cmd:"" help:"List products and deals"`
		Compare  commands.CompareCmd  `cmd:"" help:"Compare store prices for a product"`
		Search   commands.SearchCmd   `cmd:"" help:"Search the catalog"`
		Wishlist commands.WishlistCmd `cmd:"" help:"Manage the wishlist"`
		Config   string               `help:"Path to the config file." default:""`
		Debug    bool                 `help:"Enable debug mode."`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Config: cli.Config, Version: version})
	cmd.FatalIfErrorf(err)
}
