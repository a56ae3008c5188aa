package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Lists(ctx context.Context) error
	CreateList(ctx context.Context, name string) error
	RenameList(ctx context.Context, ref, name string) error
	ShareList(ctx context.Context, ref, email string) error
	DeleteList(ctx context.Context, ref string) error
	Open(ctx context.Context, ref string) error
}

func (a *App) getStatus() string {
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s) ", a.userName)
}

func (a *App) Root(ctx context.Context) {
	fmt.Println("Welcome to listsync (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}

// runREPL reads a line per iteration, parses the first token as the command,
// and dispatches to methods on 'a'. It exits on scanner EOF or when the user
// types "exit" or "quit". Command handlers report their own errors, so
// returned errors are ignored here to keep the loop resilient.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("ls %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (l)ists, create <name>, rename <list> <name>, share <list> <email>, rmlist <list>, open <list>, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "l", "lists":
			_ = a.Lists(ctx)

		case "create":
			_ = a.CreateList(ctx, strings.Join(args, " "))

		case "rename":
			if len(args) < 2 {
				printlnFn("Usage: rename <list> <new name>")
				continue
			}
			_ = a.RenameList(ctx, args[0], strings.Join(args[1:], " "))

		case "share":
			if len(args) < 2 {
				printlnFn("Usage: share <list> <email>")
				continue
			}
			_ = a.ShareList(ctx, args[0], args[1])

		case "rmlist":
			if len(args) < 1 {
				printlnFn("Usage: rmlist <list>")
				continue
			}
			_ = a.DeleteList(ctx, args[0])

		case "open":
			if len(args) < 1 {
				printlnFn("Usage: open <list>")
				continue
			}
			_ = a.Open(ctx, strings.Join(args, " "))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
