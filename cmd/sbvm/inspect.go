package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/chazu/sbvm/loader"
	"github.com/chazu/sbvm/program"
)

// handleInspectCommand processes the `sbvm inspect` subcommand.
// Usage:
//
//	sbvm inspect game.sb2            # sprite summary
//	sbvm inspect -blocks game.sb2    # plus every script as a block tree
func handleInspectCommand(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	blocks := fs.Bool("blocks", false, "Print every script as a block tree")
	assetDir := fs.String("assets", "", "Asset directory for raw project.json input")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: sbvm inspect [-blocks] [-assets dir] <project>")
		os.Exit(2)
	}

	data, err := readInput(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var opts []loader.Option
	if *assetDir != "" {
		opts = append(opts, loader.WithAssetDir(*assetDir))
	}
	res, err := loader.New(opts...).Load(context.Background(), data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	image, err := program.Marshal(res.Program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding program: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Digest: %s\n", res.Digest)
	fmt.Printf("Image:  %s (version %d)\n", humanize.Bytes(uint64(len(image))), program.ImageVersion)
	if res.Assets != nil {
		fmt.Printf("Assets: %d unique, %s\n", res.Assets.Len(), humanize.Bytes(uint64(res.Assets.Size())))
	}
	fmt.Println()

	for _, s := range res.Program.Sprites {
		printSprite(os.Stdout, s, *blocks)
	}

	if len(res.Issues) > 0 {
		fmt.Printf("\n%d issue(s):\n", len(res.Issues))
		for _, issue := range res.Issues {
			fmt.Printf("  %v\n", issue)
		}
	}
}

func printSprite(w io.Writer, s *program.Sprite, blocks bool) {
	kind := "sprite"
	if s.IsStage {
		kind = "stage"
	}
	scripts, defs := 0, 0
	for i := range s.Scripts {
		if s.Scripts[i].IsDefinition() {
			defs++
		} else {
			scripts++
		}
	}
	fmt.Fprintf(w, "%s %q: %d scripts, %d procedures, %d costumes, %d sounds, %d variables, %d lists\n",
		kind, s.Name, scripts, defs, len(s.Costumes), len(s.Sounds), len(s.Variables), len(s.Lists))
	if !s.IsStage {
		fmt.Fprintf(w, "  at (%g, %g) size %g%% heading %g, %s, visible %v\n",
			s.X, s.Y, s.Scale, s.Direction, s.RotationStyle, s.Visible)
	}
	if !blocks {
		return
	}
	for i := range s.Scripts {
		item := &s.Scripts[i]
		if item.IsDefinition() {
			def := item.Definition
			fmt.Fprintf(w, "  define %q %v\n", def.Spec, def.ParameterNames)
			printScript(w, def.Body, 2)
			continue
		}
		fmt.Fprintf(w, "  script at (%g, %g)\n", item.X, item.Y)
		printScript(w, item.Script, 2)
	}
}

func printScript(w io.Writer, s program.Script, depth int) {
	indent := strings.Repeat("  ", depth)
	for i := range s {
		b := &s[i]
		args := make([]string, len(b.Arguments))
		for j, a := range b.Arguments {
			if a.IsExpression() {
				args[j] = "(" + a.Expression.Opcode + " ...)"
			} else {
				args[j] = fmt.Sprintf("%q", a.Literal.String())
			}
		}
		fmt.Fprintf(w, "%s%s %s\n", indent, b.Opcode, strings.Join(args, " "))
		for _, br := range b.Branches {
			printScript(w, br, depth+1)
		}
	}
}
