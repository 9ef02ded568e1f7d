package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one hyperstage subcommand.
type Command struct {
	// Flags holds the command flags. Global flags are parsed before.
	Flags *flag.FlagSet

	// Usage is shown after "hyperstage" in help, e.g. "read <name> [flags]".
	Usage string

	// Short is the one-line description for the command listing.
	Short string

	// Long is the full description. Short is used when empty.
	Long string

	Exec func(ctx context.Context, env *Env, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the line shown in the command listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-28s %s", c.Usage, c.Short)
}

// PrintHelp prints "hyperstage <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: hyperstage", c.Usage)
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}
	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses args and executes the command. It returns the exit code.
func (c *Command) Run(ctx context.Context, env *Env, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(env.IO)
			return 0
		}
		env.IO.ErrPrintln("error:", err)
		env.IO.ErrPrintln()
		c.PrintHelp(env.IO)
		return 1
	}

	if err := c.Exec(ctx, env, c.Flags.Args()); err != nil {
		env.IO.ErrPrintln("error:", err)
		return 1
	}
	return 0
}
