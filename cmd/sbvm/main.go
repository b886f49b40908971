// sbvm CLI - loads a legacy project and runs it headless
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/sbvm/cache"
	"github.com/chazu/sbvm/engine"
	"github.com/chazu/sbvm/loader"
	"github.com/chazu/sbvm/manifest"
	"github.com/chazu/sbvm/vm"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "inspect" {
		handleInspectCommand(os.Args[2:])
		return
	}

	configDir := flag.String("config", "", "Directory holding sbvm.toml (default: search upwards from .)")
	ticks := flag.Int("ticks", 0, "Run this many ticks back to back, then exit (0 = run in real time until interrupted)")
	verbosity := flag.Int("v", -1, "Log verbosity, overrides [log] verbosity")
	turbo := flag.Bool("turbo", false, "Do not end a tick's step pass on redraw requests")
	strict := flag.Bool("strict", false, "Fault on unknown opcodes instead of skipping them")
	noCache := flag.Bool("no-cache", false, "Bypass the program cache")
	noFlag := flag.Bool("no-flag", false, "Do not press the green flag after loading")
	assetDir := flag.String("assets", "", "Asset directory for raw project.json input")
	profile := flag.Bool("profile", false, "Print the most executed opcodes on exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sbvm [options] <project.sb2|project.json|->\n")
		fmt.Fprintf(os.Stderr, "       sbvm inspect <project>\n\n")
		fmt.Fprintf(os.Stderr, "Loads a legacy project and runs its scripts without a display.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sbvm game.sb2                   # Run until Ctrl-C\n")
		fmt.Fprintf(os.Stderr, "  sbvm -ticks 300 -profile game.sb2  # Ten seconds of ticks, then opcode counts\n")
		fmt.Fprintf(os.Stderr, "  sbvm -assets ./game project.json  # Unpacked project\n")
		fmt.Fprintf(os.Stderr, "  sbvm inspect game.sb2           # Show what loading produces\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading sbvm.toml: %v\n", err)
		os.Exit(1)
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	if *turbo {
		cfg.Runtime.Turbo = true
	}
	if *strict {
		cfg.Runtime.StrictOpcodes = true
	}
	if *noCache {
		cfg.Cache.Enabled = false
	}
	if *assetDir != "" {
		abs, err := filepath.Abs(*assetDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.Assets.Dir = abs
	}
	configureLogging(cfg)

	data, err := readInput(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ld, closeCache, err := newLoader(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeCache()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	res, err := ld.Load(ctx, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeCache()
		os.Exit(1)
	}
	source := "converted"
	if res.FromCache {
		source = "cached"
	}
	fmt.Printf("Loaded %s (%s, %s program, %d sprites) in %s\n",
		flag.Arg(0), humanize.Bytes(uint64(len(data))), source, len(res.Program.Sprites), time.Since(start).Round(time.Microsecond))
	if res.Assets != nil {
		fmt.Printf("Assets: %d unique, %s\n", res.Assets.Len(), humanize.Bytes(uint64(res.Assets.Size())))
	}
	for _, issue := range res.Issues {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", issue)
	}

	opts := []vm.Option{vm.WithFaultHandler(func(f *vm.Fault) {
		fmt.Fprintf(os.Stderr, "Fault: %v\n", f)
	})}
	var prof *vm.Profiler
	if *profile {
		prof = vm.NewProfiler()
		opts = append(opts, vm.WithProfiler(prof))
	}

	e := engine.New(cfg, ld, opts...)
	e.Publish(res.Program)

	if *ticks > 0 {
		runTicks(e, *ticks, !*noFlag)
	} else {
		runRealtime(ctx, e, !*noFlag)
	}

	if prof != nil {
		printProfile(os.Stdout, prof)
	}
}

func loadConfig(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil || m != nil {
		return m, err
	}
	return manifest.Default(), nil
}

func configureLogging(cfg *manifest.Manifest) {
	if p := cfg.LogPath(); p != "" {
		commonlog.Configure(cfg.Log.Verbosity, &p)
		return
	}
	commonlog.Configure(cfg.Log.Verbosity, nil)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// newLoader builds the loader described by cfg. The returned func closes
// the cache, if one was opened.
func newLoader(cfg *manifest.Manifest) (*loader.Loader, func(), error) {
	var opts []loader.Option
	if dir := cfg.AssetDir(); dir != "" {
		opts = append(opts, loader.WithAssetDir(dir))
	}
	closeCache := func() {}
	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.CachePath())
		if err != nil {
			return nil, nil, fmt.Errorf("opening cache: %w", err)
		}
		opts = append(opts, loader.WithCache(c))
		closeCache = func() { _ = c.Close() }
	}
	return loader.New(opts...), closeCache, nil
}

type totals struct {
	ticks      int
	steps      int
	faults     int
	overBudget int
	maxElapsed time.Duration
}

func (t *totals) add(s vm.TickStats) {
	t.ticks++
	t.steps += s.Steps
	t.faults += s.Faults
	if s.OverBudget {
		t.overBudget++
	}
	if s.Elapsed > t.maxElapsed {
		t.maxElapsed = s.Elapsed
	}
}

// runTicks runs n ticks as fast as possible.
func runTicks(e *engine.Engine, n int, greenFlag bool) {
	e.Tick(time.Now()) // installs the published program
	rt := e.Active()
	if greenFlag {
		rt.GreenFlag()
	}

	var sum totals
	for i := 0; i < n; i++ {
		sum.add(e.Tick(time.Now()))
	}

	fmt.Printf("Ran %s ticks: %s steps, %d faults, %d over budget, slowest %s\n",
		humanize.Comma(int64(sum.ticks)), humanize.Comma(int64(sum.steps)),
		sum.faults, sum.overBudget, sum.maxElapsed.Round(time.Microsecond))
	fmt.Printf("Finished with %d targets and %d threads (generation %s)\n",
		len(rt.Targets()), len(rt.Threads()), rt.Generation())
}

// runRealtime ticks at the configured rate until ctx is cancelled.
func runRealtime(ctx context.Context, e *engine.Engine, greenFlag bool) {
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	if greenFlag {
		if err := e.Do(ctx, func(rt *vm.Runtime) { rt.GreenFlag() }); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	fmt.Println("Running, press Ctrl-C to stop")
	<-done

	if rt := e.Active(); rt != nil {
		fmt.Printf("Stopped with %d targets and %d threads\n", len(rt.Targets()), len(rt.Threads()))
	}
}

func printProfile(w io.Writer, p *vm.Profiler) {
	stats := p.Stats()
	fmt.Fprintf(w, "\nProfile: %s steps over %d opcodes, %d hot\n",
		humanize.Comma(int64(stats.Steps)), stats.Opcodes, stats.HotOpcodes)
	for _, oc := range p.Top(10) {
		fmt.Fprintf(w, "  %-24s %12s\n", oc.Opcode, humanize.Comma(int64(oc.Count)))
	}
}
