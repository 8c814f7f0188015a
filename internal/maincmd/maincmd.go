package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/color"
	"github.com/mna/curry/internal/config"
	"github.com/mna/curry/lang/token"
	"github.com/mna/mainer"
	"tlog.app/go/tlog"
)

const binName = "curry"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [<path>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<path>...]
       %[1]s -h|--help
       %[1]s -v|--version

Compiler and all-in-one tool for the %[1]s typed-tree language.

The <command> can be one of:
       tokenize                  Execute the scanner phase and print
                                 the resulting tokens.
       parse                     Execute the parser phase and print
                                 the resulting syntax tree.
       resolve                   Execute the resolver phase and print
                                 how each identifier is resolved.
       dasm                      Compile the files and print the
                                 disassembly of the programs.
       compile                   Compile the files and write the
                                 object files (.cyo).
       run                       Compile a source file or load an
                                 object file, run it and print the
                                 result.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --config FILE             Load the TOML configuration file.
                                 Flags override its values.
       --pos MODE                Format of the positions printed by
                                 the tokenize, parse and resolve
                                 commands: long (default), short,
                                 raw or none.
       --trace TOPICS            Trace the compilation, TOPICS is a
                                 comma-separated list of merge, share,
                                 inline, tailcall, unit and capture,
                                 or 'all'.

Valid flag options for the <parse> command are:
       --with-comments           Include comments in the syntax tree
                                 (excluded by default).

Valid flag options for the <dasm>, <compile> and <run> commands are:
       --no-tail-calls           Do not turn self tail calls into loops.
       --no-inline               Do not inline directly applied
                                 functions.
       --no-share                Do not share the instances of functions
                                 without captured state.

Valid flag options for the <compile> command are:
       -o --output DIR           Write the object files in DIR instead
                                 of next to the source files.

Valid flag options for the <run> command are:
       --max-steps N             Abort the execution after N steps.
       --max-call-depth N        Abort the execution if more than N
                                 calls are nested.

More information on the %[1]s repository:
       https://github.com/mna/curry
`, binName)
)

type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Config string `flag:"config"`
	Pos    string `flag:"pos"`
	Trace  string `flag:"trace"`

	WithComments bool `flag:"with-comments"`

	NoTailCalls bool `flag:"no-tail-calls"`
	NoInline    bool `flag:"no-inline"`
	NoShare     bool `flag:"no-share"`

	Output string `flag:"o,output"`

	MaxSteps     int `flag:"max-steps"`
	MaxCallDepth int `flag:"max-call-depth"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
	cfg   *config.Config
}

func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

func (c *Cmd) SetFlags(flags map[string]bool) {
	c.flags = flags
}

var posModes = map[string]token.PosMode{
	"":      token.PosLong,
	"long":  token.PosLong,
	"short": token.PosShort,
	"raw":   token.PosRaw,
	"none":  token.PosNone,
}

// flagsByCmd lists the commands that accept each command-specific flag.
var flagsByCmd = map[string][]string{
	"with-comments":  {"parse"},
	"pos":            {"tokenize", "parse", "resolve"},
	"no-tail-calls":  {"dasm", "compile", "run"},
	"no-inline":      {"dasm", "compile", "run"},
	"no-share":       {"dasm", "compile", "run"},
	"config":         {"dasm", "compile", "run"},
	"trace":          {"dasm", "compile", "run"},
	"o":              {"compile"},
	"output":         {"compile"},
	"max-steps":      {"run"},
	"max-call-depth": {"run"},
}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]

	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", c.args[0])
	}

	if len(c.args[1:]) == 0 {
		return fmt.Errorf("%s: at least one file must be provided", cmdName)
	}
	if cmdName == "run" && len(c.args[1:]) > 1 {
		return fmt.Errorf("%s: a single file must be provided", cmdName)
	}

	for flag, cmds := range flagsByCmd {
		if !c.flags[flag] {
			continue
		}
		var ok bool
		for _, cmd := range cmds {
			if cmd == cmdName {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%s: invalid flag '%s'", cmdName, flag)
		}
	}

	if _, ok := posModes[c.Pos]; !ok {
		return fmt.Errorf("%s: invalid position mode: %s", cmdName, c.Pos)
	}
	if c.MaxSteps < 0 || c.MaxCallDepth < 0 {
		return fmt.Errorf("%s: limits must not be negative", cmdName)
	}
	return nil
}

func (c *Cmd) posMode() token.PosMode {
	return posModes[c.Pos]
}

// loadConfig returns the configuration loaded from the config file, if any,
// with the flags applied over it.
func (c *Cmd) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	cfg := config.Default()
	if c.Config != "" {
		var err error
		if cfg, err = config.Load(c.Config); err != nil {
			return nil, err
		}
	}
	if c.flags["no-tail-calls"] {
		cfg.Optimize.NoTailCalls = c.NoTailCalls
	}
	if c.flags["no-inline"] {
		cfg.Optimize.NoInline = c.NoInline
	}
	if c.flags["no-share"] {
		cfg.Optimize.NoShare = c.NoShare
	}
	if c.flags["max-steps"] {
		cfg.Machine.MaxSteps = c.MaxSteps
	}
	if c.flags["max-call-depth"] {
		cfg.Machine.MaxCallStackDepth = c.MaxCallDepth
	}
	c.cfg = cfg
	return cfg, nil
}

var errPrefix = color.New(color.FgRed, color.Bold)

func printError(stdio mainer.Stdio, err error) error {
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s %s\n", errPrefix.Sprint("error:"), err)
	}
	return err
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false, // leaving this here for now in case some flags can use this
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if c.Trace != "" {
		topics := c.Trace
		if topics == "all" {
			topics = "*"
		}
		tlog.SetVerbosity(topics)
		ctx = tlog.ContextWithSpan(ctx, tlog.Root())
	}
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		// each command takes care of printing its errors, just return with an error code
		return mainer.Failure
	}
	return mainer.Success
}

// valid commands are those that take a mainer.Stdio and a slice of strings as
// input, and return an error as output.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		// must take 4 parameters (including receiver) and return 1
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}

		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
