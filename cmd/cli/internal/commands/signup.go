package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/pricescout/internal/auth"
)

type SignupCmd struct {
	FirstName string `help:"First name." required:""`
	LastName  string `help:"Last name." required:""`
	Email     string `help:"Account email." required:""`
	Password  string `help:"Account password." env:"PRICESCOUT_PASSWORD" required:""`
}

func (s *SignupCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	if err := app.gateway.Signup(ctx, s.FirstName, s.LastName, s.Email, s.Password); err != nil {
		if errors.Is(err, auth.ErrPendingVerification) {
			fmt.Printf("Account created. Check %s for a verification link, then run login.\n", s.Email)
			return nil
		}
		return err
	}

	if err := app.persistSession(); err != nil {
		return err
	}

	fmt.Printf("Account created, signed in as %s\n", s.Email)
	return nil
}
