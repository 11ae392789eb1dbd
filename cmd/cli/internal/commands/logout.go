package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if !app.sessions.Get().LoggedIn() {
		fmt.Println("Not signed in.")
		return app.cache.Clear()
	}

	if err := app.gateway.Logout(ctx); err != nil {
		return err
	}

	select {
	case route := <-app.gateway.Redirects():
		log.Debug().Str("route", route).Msg("post-logout navigation")
	default:
	}

	if err := app.cache.Clear(); err != nil {
		return err
	}

	fmt.Println("Signed out.")
	return nil
}
