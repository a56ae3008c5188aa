package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	lsync "github.com/mbakke/listsync/internal/client/sync"
)

// Open enters the interactive view for one list. Edits are applied to the
// local view immediately and pushed to the server in the background; a
// broadcast subscription keeps the view in step with other writers.
func (a *App) Open(ctx context.Context, ref string) error {
	list, err := a.findList(ctx, ref)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return err
	}

	viewCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := lsync.NewListView(a.client, list.ID, list.Items,
		lsync.WithDebounceWindow(a.config.DebounceWindow),
		lsync.WithErrorHandler(func(err error) {
			fmt.Printf("\nsync error: %v\n", err)
		}))
	defer view.Close()

	if events, err := a.client.Subscribe(viewCtx); err != nil {
		fmt.Printf("Live updates unavailable: %v\n", err)
	} else {
		go view.RunListener(viewCtx, events)
	}

	fmt.Printf("Opened %q. Commands: add <name>, toggle <n>, del <n>, show, back\n", list.Name)
	printEntries(view)

	for {
		fmt.Printf("%s> ", list.Name)
		line, err := a.reader.ReadString('\n')
		if err != nil {
			return nil
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			printEntries(view)
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "add":
			name := strings.Join(args, " ")
			if name == "" {
				fmt.Println("Usage: add <name>")
				continue
			}
			view.AddItem(viewCtx, name)
			printEntries(view)

		case "toggle":
			key, ok := entryKeyAt(view, args)
			if !ok {
				continue
			}
			view.Toggle(key)
			printEntries(view)

		case "del":
			key, ok := entryKeyAt(view, args)
			if !ok {
				continue
			}
			view.Delete(viewCtx, key)
			printEntries(view)

		case "show":
			printEntries(view)

		case "back", "exit":
			return nil

		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}

// entryKeyAt parses a 1-based entry number from args and returns the stable
// key of the matching entry.
func entryKeyAt(view *lsync.ListView, args []string) (string, bool) {
	if len(args) == 0 {
		fmt.Println("Usage: toggle|del <n>")
		return "", false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("Not a number:", args[0])
		return "", false
	}
	entries := view.Entries()
	if n < 1 || n > len(entries) {
		fmt.Printf("No entry %d (list has %d)\n", n, len(entries))
		return "", false
	}
	return entries[n-1].Key, true
}

func printEntries(view *lsync.ListView) {
	entries := view.Entries()
	if len(entries) == 0 {
		fmt.Println("(empty)")
		return
	}
	for i, e := range entries {
		mark := " "
		if e.Completed {
			mark = "x"
		}
		suffix := ""
		if e.Pending {
			suffix = " (saving...)"
		}
		fmt.Printf("%2d [%s] %s%s\n", i+1, mark, e.Name, suffix)
	}
}
