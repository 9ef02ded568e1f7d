package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/hupe1980/hyperstage"
	"github.com/hupe1980/hyperstage/blobstore"
	"github.com/hupe1980/hyperstage/resource"
)

// EnvStore names the blob store when --store is not given.
const EnvStore = "HYPERSTAGE_STORE"

var errNoStore = errors.New("no store configured (use --store or " + EnvStore + ")")

// Env is the state shared by every command of one invocation.
type Env struct {
	IO     *IO
	Vars   map[string]string
	Logger *hyperstage.Logger

	storeURL   string
	configPath string
	rc         *resource.Controller
	store      blobstore.BlobStore
}

// Lookup reads a variable of the invocation environment.
func (e *Env) Lookup(key string) (string, bool) {
	v, ok := e.Vars[key]
	return v, ok
}

// Store opens the blob store named by --store on first use.
func (e *Env) Store(ctx context.Context) (blobstore.BlobStore, error) {
	if e.store != nil {
		return e.store, nil
	}
	s, err := openStore(ctx, e.storeURL, e.Vars)
	if err != nil {
		return nil, err
	}
	e.store = s
	return s, nil
}

// StageConfig loads the staging configuration.
func (e *Env) StageConfig() (hyperstage.Config, error) {
	return hyperstage.LoadConfig(e.configPath, e.Lookup)
}

// Controller returns the resource controller shared by datasets and stages.
func (e *Env) Controller() *resource.Controller { return e.rc }

func commands() []*Command {
	return []*Command{
		newGenerateCmd(),
		newInfoCmd(),
		newReadCmd(),
		newBenchCmd(),
		newConfigCmd(),
	}
}

// Run is the main entry point. It returns the exit code.
func Run(ctx context.Context, out, errOut io.Writer, args []string, vars map[string]string) int {
	o := NewIO(out, errOut)

	global := flag.NewFlagSet("hyperstage", flag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(&strings.Builder{})

	storeURL := global.StringP("store", "s", vars[EnvStore], "blob store: a directory, s3://bucket/prefix or minio://host/bucket/prefix")
	configPath := global.StringP("config", "c", "", "staging config file (HuJSON), defaults to $"+hyperstage.EnvConfig)
	logLevel := global.String("log-level", "warn", "log level: debug, info, warn or error")
	memLimit := global.String("memory-limit", "0", "memory budget shared by chunk buffers and scratch space (0 = unlimited)")
	ioLimit := global.String("io-limit", "0", "storage read throughput per second (0 = unlimited)")
	maxReads := global.Int64("max-reads", 8, "concurrent storage range reads")

	if len(args) > 0 {
		args = args[1:]
	}
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(o, global)
			return 0
		}
		o.ErrPrintln("error:", err)
		return 1
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(o, global)
		return 0
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		o.ErrPrintln("error: --log-level:", err)
		return 1
	}
	mem, err := humanize.ParseBytes(*memLimit)
	if err != nil {
		o.ErrPrintln("error: --memory-limit:", err)
		return 1
	}
	iops, err := humanize.ParseBytes(*ioLimit)
	if err != nil {
		o.ErrPrintln("error: --io-limit:", err)
		return 1
	}

	env := &Env{
		IO:         o,
		Vars:       vars,
		Logger:     hyperstage.NewLogger(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})),
		storeURL:   *storeURL,
		configPath: *configPath,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   int64(mem),
			MaxConcurrentReads: *maxReads,
			IOLimitBytesPerSec: int64(iops),
		}),
	}

	name := rest[0]
	if name == "help" {
		printUsage(o, global)
		return 0
	}
	for _, cmd := range commands() {
		if cmd.Name() == name {
			return cmd.Run(ctx, env, rest[1:])
		}
	}

	o.ErrPrintln("error: unknown command:", name)
	printUsage(o, global)
	return 1
}

func printUsage(o *IO, global *flag.FlagSet) {
	o.Println("hyperstage - chunk staging cache for N-d datasets")
	o.Println()
	o.Println("Usage: hyperstage [global flags] <command> [flags] [args]")
	o.Println()
	o.Println("Commands:")
	for _, cmd := range commands() {
		o.Println(cmd.HelpLine())
	}
	o.Println()
	o.Println("Global flags:")

	var buf strings.Builder
	global.SetOutput(&buf)
	global.PrintDefaults()
	o.Printf("%s", buf.String())
	o.Println()
	o.Printf("Run 'hyperstage <command> --help' for command flags.\n")
}

func requireName(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected one dataset name, got %d arguments", len(args))
	}
	return args[0], nil
}
