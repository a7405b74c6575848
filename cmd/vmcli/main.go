// Command vmcli runs a single Java class file through the engine.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"reflect"
	"strings"

	"github.com/docker/docker/pkg/reexec"
	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"
	"rsc.io/goversion/version"

	"github.com/andreabergia/rjvm/classpath"
	"github.com/andreabergia/rjvm/cvm"
)

// tomlSettings keeps TOML keys matching Go struct field names verbatim,
// the same convention cmd/cypher/config.go establishes.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
}

// isolateEntryName is the reexec.Register key: --isolate re-execs the
// current binary under this name, the same mechanism the teacher's
// toolchain uses to spawn isolated subprocess workers.
const isolateEntryName = "vmcli-isolated"

func init() {
	reexec.Register(isolateEntryName, isolatedMain)
	if reexec.Init() {
		os.Exit(0)
	}
}

// config mirrors what --config's TOML file can set, loaded exactly like
// cmd/cypher/config.go loads its node config.
type config struct {
	ClassPath string `toml:"classpath"`
	HeapBytes int    `toml:"heap_bytes"`
	LogLevel  string `toml:"log_level"`
}

func main() {
	app := cli.NewApp()
	app.Name = "vmcli"
	app.Usage = "run a class file on the CVM bytecode engine"
	app.Version = "0.1.0"
	cli.VersionFlag = cli.BoolFlag{Name: "version", Usage: "print vmcli and Go toolchain version"}
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "cp", Usage: "ordered class path (dirs and/or .jar/.zip files, ':'-separated)"},
		cli.StringFlag{Name: "config", Usage: "TOML file providing classpath/heap-bytes/log-level"},
		cli.IntFlag{Name: "heap-bytes", Value: 64 * 1024 * 1024, Usage: "initial heap ceiling in bytes"},
		cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug|info|warn|error"},
		cli.BoolFlag{Name: "isolate", Usage: "run the class in a reexec'd child process"},
	}
	cli.VersionPrinter = func(c *cli.Context) { printVersion() }
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(c *cli.Context) error {
	cfg := config{
		ClassPath: c.String("cp"),
		HeapBytes: c.Int("heap-bytes"),
		LogLevel:  c.String("log-level"),
	}
	if path := c.String("config"); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return err
		}
	}

	args := c.Args()
	if len(args) < 1 {
		return cli.NewExitError("usage: vmcli [flags] <main-class> [arg]...", 2)
	}
	mainClass, guestArgs := args[0], []string(args[1:])

	if c.Bool("isolate") {
		return runIsolated(cfg, mainClass, guestArgs)
	}
	code, err := runInProcess(cfg, mainClass, guestArgs)
	if err != nil && code == 0 {
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// loadConfigFile decodes path into cfg with naoina/toml, unwrapping
// *toml.LineError into a friendlier message exactly as
// cmd/cypher/config.go does.
func loadConfigFile(path string, cfg *config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg); err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return fmt.Errorf("%s, %s", path, err.Error())
		}
		return err
	}
	return nil
}

func runInProcess(cfg config, mainClass string, guestArgs []string) (int, error) {
	cp, err := buildClassPath(cfg.ClassPath)
	if err != nil {
		return 2, err
	}

	engine := cvm.NewEngine(cvm.EngineOptions{
		ClassPath: cp,
		HeapBytes: cfg.HeapBytes,
		LogLevel:  parseLogLevel(cfg.LogLevel),
		Output:    os.Stdout,
	})
	return engine.Run(mainClass, guestArgs)
}

func buildClassPath(raw string) (*classpath.ClassPath, error) {
	var sources []classpath.Source
	for _, entry := range strings.Split(raw, string(os.PathListSeparator)) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.HasSuffix(entry, ".jar") || strings.HasSuffix(entry, ".zip") {
			src, err := classpath.NewZipSource(entry)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
			continue
		}
		sources = append(sources, classpath.NewDirSource(entry))
	}
	return classpath.New(sources...), nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runIsolated re-execs this binary under isolateEntryName via
// docker/pkg/reexec, so the run's heap and any panic are contained to a
// disposable child process; the parent relays the child's exit code and
// stderr.
func runIsolated(cfg config, mainClass string, guestArgs []string) error {
	childArgs := []string{isolateEntryName, "--cp", cfg.ClassPath,
		"--heap-bytes", fmt.Sprintf("%d", cfg.HeapBytes),
		"--log-level", cfg.LogLevel, mainClass}
	childArgs = append(childArgs, guestArgs...)

	child := reexec.Command(childArgs...)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Stdin = os.Stdin
	if err := child.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return err
	}
	return nil
}

// isolatedMain is the reexec entry point run inside the isolated child
// process; it re-parses the same flag surface as the parent's Action.
func isolatedMain() {
	app := cli.NewApp()
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "cp"},
		cli.IntFlag{Name: "heap-bytes", Value: 64 * 1024 * 1024},
		cli.StringFlag{Name: "log-level", Value: "info"},
	}
	app.Action = func(c *cli.Context) error {
		args := c.Args()
		if len(args) < 1 {
			return cli.NewExitError("usage: vmcli-isolated [flags] <main-class> [arg]...", 2)
		}
		cfg := config{ClassPath: c.String("cp"), HeapBytes: c.Int("heap-bytes"), LogLevel: c.String("log-level")}
		code, err := runInProcess(cfg, args[0], []string(args[1:]))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
		return nil
	}
	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// printVersion reports vmcli's own version plus the Go toolchain version
// embedded in the running binary itself, matching cypher's misccmd.go
// diagnostic version reporting.
func printVersion() {
	fmt.Println("vmcli 0.1.0")
	v, err := version.ReadExe(os.Args[0])
	if err != nil {
		return
	}
	fmt.Printf("built with %s\n", v.Release)
}
