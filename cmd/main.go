package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"lunette/internal/compiler"
	"lunette/internal/logger"
	"lunette/pkg/color"
)

// Main entry point for the lunette toolchain.
func main() {
	options := compiler.Compiler{}

	flag.BoolVar(&options.Help, "h", false, "Show help")
	flag.BoolVar(&options.Verbose, "v", false, "Verbose mode")
	flag.BoolVar(&options.NoColor, "n", false, "No color")
	flag.BoolVar(&options.ShouldRun, "r", false, "Run the chunk")
	flag.BoolVar(&options.ShouldCompile, "c", false, "Write the chunk to the output file")
	flag.StringVar(&options.OutputFile, "o", "luac.out", "Output chunk name")
	flag.BoolVar(&options.Strip, "s", false, "Strip debug information")
	flag.BoolVar(&options.BigEndian, "b", false, "Write a big endian chunk")
	flag.BoolVar(&options.List, "l", false, "List the compiled chunk")
	flag.StringVar(&options.ListFormat, "f", "text", "Listing format (text, yaml)")
	flag.BoolVar(&options.Trace, "t", false, "Trace executed instructions")
	flag.IntVar(&options.MaxSteps, "m", 0, "Maximum instructions to execute (0 = unlimited)")
	flag.StringVar(&options.ChunkName, "name", "", "Chunk name used in messages")
	flag.StringVar(&options.ConfigFile, "config", "", "Path to lunette.toml")

	flag.Parse()
	args := flag.Args()

	logger.Init(options.Verbose, options.NoColor)
	if options.Help {
		fmt.Printf("Usage: %s [options] <file> [args...]\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
		return
	}

	if options.NoColor {
		color.EnableColor(false)
	}

	if len(args) == 0 {
		log.Fatal("No input file provided", "help", fmt.Sprintf("%s -h", os.Args[0]))
	}

	options.SourceFile = args[0]
	options.Args = args[1:]

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := options.LoadConfig()
	if err != nil {
		log.Fatal("Configuration failed", "error", err)
	}
	options.ApplyConfig(cfg, set)
	if options.Trace {
		logger.EnableTrace()
	}

	// with no action requested, behave like an interpreter
	if !options.ShouldRun && !options.ShouldCompile && !options.List {
		options.ShouldRun = true
	}

	if err := options.Compile(); err != nil {
		log.Fatal("Failed", "error", err)
	}
}
