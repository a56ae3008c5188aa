package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mbakke/listsync/internal/common"
)

func (a *App) Register(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	name, err := GetSimpleText(a.reader, "Enter display name", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}

	if err := a.client.Register(ctx, email, name, string(password)); err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			fmt.Println("That email is already registered.")
			return err
		}
		fmt.Printf("Registration failed: %v\n", err)
		return err
	}

	fmt.Println("Account created, logging in...")
	if err := a.client.Login(ctx, email, string(password)); err != nil {
		fmt.Printf("Login failed: %v\n", err)
		return err
	}
	a.userName = name
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}

	if err := a.client.Login(ctx, email, string(password)); err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			fmt.Println("Invalid email or password.")
			return err
		}
		fmt.Printf("Login failed: %v\n", err)
		return err
	}

	a.userName = email
	fmt.Println("Logged in.")
	return nil
}
