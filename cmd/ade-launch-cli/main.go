package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xADE/ade-launch/client/launch"
)

var errQuit = errors.New("session ended")

type cli struct {
	socket  string
	verbose bool
	client  *launch.Client
}

func main() {
	c := &cli{}
	root := c.rootCommand()
	err := root.Execute()
	if c.client != nil {
		c.client.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "ade-launch-cli",
		Short:        "Query and launch applications through ade-launchd",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.connect()
		},
	}
	root.PersistentFlags().StringVar(&c.socket, "socket", "", "daemon socket (default $ADE_LAUNCH_SOCK)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		&cobra.Command{
			Use:   "query <text>",
			Short: "List matching applications",
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run("query", args)
			},
		},
		&cobra.Command{
			Use:   "recent",
			Short: "List recently launched applications",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run("recent", args)
			},
		},
		&cobra.Command{
			Use:   "run <pos|name>",
			Short: "Launch a listed position or an exact name",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run("run", args)
			},
		},
		&cobra.Command{
			Use:   "interactive",
			Short: "Read commands from stdin",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.interactive(os.Stdin)
			},
		},
	)

	return root
}

func (c *cli) connect() error {
	if !c.verbose {
		log.SetOutput(io.Discard)
	}

	socketPath := c.socket
	if socketPath == "" {
		var err error
		if socketPath, err = launch.SocketPath(); err != nil {
			return fmt.Errorf("socket: %w", err)
		}
	}

	client, err := launch.Dial(socketPath)
	if err != nil {
		return err
	}
	c.client = client
	return nil
}

// run executes one command; a session ended by a successful launch is not
// an error.
func (c *cli) run(cmd string, args []string) error {
	if err := execute(c.client, cmd, args); err != nil && err != errQuit {
		return err
	}
	return nil
}

func (c *cli) interactive(in io.Reader) error {
	scanner := bufio.NewScanner(in)

	fmt.Println("Interactive mode. Type commands or 'exit' to quit.")
	fmt.Print("> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "exit" || line == "quit" {
			return nil
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			fmt.Print("> ")
			continue
		}

		if err := execute(c.client, parts[0], parts[1:]); err != nil {
			if err != errQuit {
				fmt.Fprintf(os.Stderr, "%s: %v\n", parts[0], err)
			}
			if errors.Is(err, errQuit) {
				return nil
			}
		}

		fmt.Print("> ")
	}

	return scanner.Err()
}

// execute runs one command and prints its result. It returns errQuit once
// the daemon has ended the session.
func execute(client *launch.Client, cmd string, args []string) error {
	switch cmd {
	case "query":
		apps, err := client.Query(strings.Join(args, " "))
		if err != nil {
			return err
		}
		printApps(apps)
	case "recent":
		apps, err := client.Recent()
		if err != nil {
			return err
		}
		printApps(apps)
	case "move":
		if len(args) != 1 {
			return errors.New("usage: move <pos>")
		}
		pos, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		return client.Move(pos)
	case "submit":
		return report(client.Submit())
	case "run":
		if len(args) == 0 {
			return errors.New("usage: run <pos|name>")
		}
		if pos, err := strconv.Atoi(args[0]); err == nil && len(args) == 1 {
			return report(client.Run(pos))
		}
		return report(client.RunName(strings.Join(args, " ")))
	case "cancel":
		return report(client.Cancel())
	default:
		return errors.New("unknown command")
	}
	return nil
}

func report(res launch.Result, err error) error {
	if err != nil {
		return err
	}

	switch {
	case res.Err != nil && res.Quit:
		return fmt.Errorf("%w: %v", errQuit, res.Err)
	case res.Err != nil:
		return res.Err
	case res.Quit:
		if res.Name != "" {
			fmt.Printf("started %s (pid %d)\n", res.Name, res.PID)
		}
		return errQuit
	}
	return nil
}

func printApps(apps []launch.Application) {
	for _, app := range apps {
		fmt.Printf("%d %s\n", app.Pos, app.Name)
	}
}
