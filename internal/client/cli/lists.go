package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mbakke/listsync/internal/client/api"
	"github.com/mbakke/listsync/internal/common"
)

// findList resolves a user-typed reference to a list, matching the server id
// first and then the (case-insensitive) list name.
func (a *App) findList(ctx context.Context, ref string) (*api.List, error) {
	lists, err := a.client.GetLists(ctx)
	if err != nil {
		return nil, err
	}
	for i := range lists {
		if lists[i].ID == ref {
			return &lists[i], nil
		}
	}
	for i := range lists {
		if strings.EqualFold(lists[i].Name, ref) {
			return &lists[i], nil
		}
	}
	return nil, common.ErrNotFound
}

func (a *App) Lists(ctx context.Context) error {
	lists, err := a.client.GetLists(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return err
	}

	if len(lists) == 0 {
		fmt.Println("No lists yet. Use 'create <name>' to start one.")
		return nil
	}

	for _, l := range lists {
		done := 0
		for _, it := range l.Items {
			if it.Completed {
				done++
			}
		}
		fmt.Printf("%s  %q  owner=%s  items=%d/%d", l.ID, l.Name, l.Owner.Email, done, len(l.Items))
		if len(l.SharedWith) > 0 {
			emails := make([]string, len(l.SharedWith))
			for i, u := range l.SharedWith {
				emails[i] = u.Email
			}
			fmt.Printf("  shared=%s", strings.Join(emails, ","))
		}
		fmt.Println()
	}
	return nil
}

func (a *App) CreateList(ctx context.Context, name string) error {
	if name == "" {
		var err error
		name, err = GetSimpleText(a.reader, "Enter list name", os.Stdout)
		if err != nil {
			return err
		}
	}

	list, err := a.client.CreateList(ctx, name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return err
	}
	fmt.Printf("Created %q (%s)\n", list.Name, list.ID)
	return nil
}

func (a *App) RenameList(ctx context.Context, ref, name string) error {
	list, err := a.findList(ctx, ref)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return err
	}

	updated, err := a.client.UpdateListName(ctx, list.ID, name)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			fmt.Println("Only the owner can rename a list.")
			return err
		}
		fmt.Printf("Error: %v\n", err)
		return err
	}
	fmt.Printf("Renamed to %q\n", updated.Name)
	return nil
}

func (a *App) ShareList(ctx context.Context, ref, email string) error {
	list, err := a.findList(ctx, ref)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return err
	}

	if err := a.client.ShareList(ctx, list.ID, email); err != nil {
		switch {
		case errors.Is(err, common.ErrUserNotFound):
			fmt.Printf("No account with email %s\n", email)
		case errors.Is(err, common.ErrUnauthorized):
			fmt.Println("Only the owner can share a list.")
		default:
			fmt.Printf("Error: %v\n", err)
		}
		return err
	}
	fmt.Printf("Shared %q with %s\n", list.Name, email)
	return nil
}

func (a *App) DeleteList(ctx context.Context, ref string) error {
	list, err := a.findList(ctx, ref)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return err
	}

	if err := a.client.DeleteList(ctx, list.ID); err != nil {
		switch {
		case errors.Is(err, common.ErrListNotEmpty):
			fmt.Println("The list still has items. Delete them first.")
		case errors.Is(err, common.ErrUnauthorized):
			fmt.Println("Only the owner can delete a list.")
		default:
			fmt.Printf("Error: %v\n", err)
		}
		return err
	}
	fmt.Printf("Deleted %q\n", list.Name)
	return nil
}
