package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/pricescout/internal/models"
)

type ProfileCmd struct {
	FirstName    *string `help:"New first name."`
	LastName     *string `help:"New last name."`
	ProfileImage *string `help:"New profile image URL."`
}

func (p *ProfileCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	state := app.sessions.Get()
	if !state.LoggedIn() {
		fmt.Println("Not signed in.")
		return nil
	}

	patch := models.MetadataPatch{
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		ProfileImage: p.ProfileImage,
	}

	if !patch.IsZero() {
		if err := app.gateway.UpdateProfile(ctx, patch); err != nil {
			return err
		}
		if err := app.persistSession(); err != nil {
			return err
		}
		state = app.sessions.Get()
	}

	ident := state.Identity
	fmt.Printf("Email:      %s\n", ident.Email)
	fmt.Printf("First name: %s\n", ident.Metadata.FirstName)
	fmt.Printf("Last name:  %s\n", ident.Metadata.LastName)
	if ident.Metadata.ProfileImage != "" {
		fmt.Printf("Image:      %s\n", ident.Metadata.ProfileImage)
	}
	return nil
}
