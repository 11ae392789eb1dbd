package commands

import (
	"context"
	"fmt"
)

type LoginCmd struct {
	Email    string `help:"Account email." required:""`
	Password string `help:"Account password." env:"PRICESCOUT_PASSWORD" required:""`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if err := app.gateway.Login(ctx, l.Email, l.Password); err != nil {
		return err
	}

	state := app.sessions.Get()
	if !state.LoggedIn() {
		return fmt.Errorf("sign-in was accepted but no session arrived")
	}

	if err := app.persistSession(); err != nil {
		return err
	}

	fmt.Printf("Signed in as %s\n", state.Identity.Email)
	return nil
}
