package compiler

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"lunette/internal/config"
	"lunette/pkg/chunk"
	"lunette/pkg/color"
	"lunette/pkg/interpreter"
	"lunette/pkg/lexer"
	"lunette/pkg/parser"
)

type Compiler struct {
	Help          bool     // Show help message
	Verbose       bool     // Enable verbose output
	ShouldRun     bool     // Whether to run the chunk
	ShouldCompile bool     // Whether to write the chunk to OutputFile
	NoColor       bool     // Disable colored output
	Strip         bool     // Omit debug information from the chunk
	BigEndian     bool     // Write a big endian chunk
	List          bool     // Print a listing of the chunk
	ListFormat    string   // Listing format: text or yaml
	Trace         bool     // Log every executed instruction
	MaxSteps      int      // Instruction budget for running (0 = unlimited)
	ChunkName     string   // Chunk name used in diagnostics (default "@<file>")
	ConfigFile    string   // Explicit lunette.toml path
	SourceFile    string   // Path to the source file or binary chunk
	OutputFile    string   // Path to the output chunk
	Args          []string // Arguments passed to the main function

	Globals map[string]any // extra globals from the configuration
	Stdout  io.Writer      // program and listing output
	Stderr  io.Writer      // diagnostics
}

// ApplyConfig fills every option not set on the command line from c.
// set holds the names of the flags given explicitly.
func (opts *Compiler) ApplyConfig(c *config.Config, set map[string]bool) {
	if c == nil {
		return
	}
	if !set["o"] && c.Compile.Output != "" {
		opts.OutputFile = c.OutputPath()
	}
	if !set["s"] {
		opts.Strip = c.Compile.Strip
	}
	if !set["b"] {
		opts.BigEndian = c.Compile.BigEndian
	}
	if !set["name"] && c.Compile.ChunkName != "" {
		opts.ChunkName = c.Compile.ChunkName
	}
	if !set["t"] {
		opts.Trace = c.Run.Trace
	}
	if !set["m"] {
		opts.MaxSteps = c.Run.MaxSteps
	}
	if !set["f"] && c.Listing.Format != "" {
		opts.ListFormat = c.Listing.Format
	}
	opts.Globals = c.Globals
}

// LoadConfig reads the explicit configuration file, or looks for one next
// to the source file and in its parent directories.
func (opts *Compiler) LoadConfig() (*config.Config, error) {
	if opts.ConfigFile != "" {
		return config.LoadFile(opts.ConfigFile)
	}

	return config.FindAndLoad(filepath.Dir(opts.SourceFile))
}

// Compile processes the source file: it compiles it (unless it already is
// a binary chunk), then lists, writes and runs the chunk as requested.
func (opts *Compiler) Compile() error {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	log.Info("Processing file", "file", opts.SourceFile)

	input, err := os.ReadFile(opts.SourceFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.SourceFile, err)
	}

	var proto *chunk.Prototype
	var data []byte
	if bytes.HasPrefix(input, []byte(chunk.Signature)) {
		log.Debug("Input is a binary chunk", "bytes", len(input))
		data = input
		if opts.List {
			if proto, err = chunk.Undump(data); err != nil {
				return fmt.Errorf("failed to read chunk: %w", err)
			}
		}
	} else {
		if proto, err = opts.parse(string(input)); err != nil {
			return err
		}
		if data, err = opts.dump(proto); err != nil {
			return err
		}
	}

	if opts.List {
		if err := chunk.NewListing(proto).Write(opts.Stdout, opts.ListFormat); err != nil {
			return fmt.Errorf("listing failed: %w", err)
		}
	}

	if opts.ShouldCompile {
		if err := os.WriteFile(opts.OutputFile, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.OutputFile, err)
		}
		log.Info("Chunk written", "file", opts.OutputFile, "bytes", len(data), "stripped", opts.Strip)
	}

	if opts.ShouldRun {
		return opts.run(data)
	}

	return nil
}

func (opts *Compiler) chunkName() string {
	if opts.ChunkName != "" {
		return opts.ChunkName
	}

	return "@" + opts.SourceFile
}

func (opts *Compiler) parse(source string) (*chunk.Prototype, error) {
	proto, err := parser.Parse(source, opts.chunkName())
	if err != nil {
		var perr *parser.Error
		if errors.As(err, &perr) {
			fmt.Fprintln(opts.Stderr, color.BrightRedText("=== Syntax Errors ==="))
			fmt.Fprintln(opts.Stderr, formatCompileError(perr))
		}
		return nil, fmt.Errorf("parsing failed: %w", err)
	}
	log.Debug("Parsed", "functions", countFunctions(proto), "instructions", len(proto.Code))

	return proto, nil
}

func (opts *Compiler) dump(proto *chunk.Prototype) ([]byte, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if opts.BigEndian {
		order = binary.BigEndian
	}

	var buf bytes.Buffer
	if err := chunk.Dump(&buf, proto, chunk.WithStrip(opts.Strip), chunk.WithByteOrder(order)); err != nil {
		return nil, fmt.Errorf("chunk generation failed: %w", err)
	}

	return buf.Bytes(), nil
}

func (opts *Compiler) run(data []byte) error {
	globals := HostGlobals(opts.Stdout)
	for name, v := range opts.Globals {
		globals[name] = ToValue(v)
	}

	main, err := interpreter.Load(data, globals,
		interpreter.WithMaxSteps(opts.MaxSteps),
		interpreter.WithTrace(opts.Trace),
		interpreter.WithLogger(log.Default()))
	if err != nil {
		return fmt.Errorf("failed to load chunk: %w", err)
	}

	args := make([]interpreter.Value, len(opts.Args))
	for i, a := range opts.Args {
		args[i] = a
	}

	if opts.Verbose {
		fmt.Fprintln(opts.Stdout, color.GreenText("\n=== Program Output ==="))
	}
	results, err := main.Call(args...)
	if err != nil {
		var rerr *interpreter.RuntimeError
		if errors.As(err, &rerr) {
			fmt.Fprintln(opts.Stderr, color.BrightRedText("=== Runtime Error ==="))
			fmt.Fprintln(opts.Stderr, color.RedText(rerr.Error()))
		}
		return fmt.Errorf("interpretation failed: %w", err)
	}

	if opts.Verbose && len(results) > 0 {
		fmt.Fprintln(opts.Stdout, color.GreenText("\n=== Results ==="))
		for i, r := range results {
			fmt.Fprintf(opts.Stdout, "%s %s\n", color.CyanText(fmt.Sprintf("%d:", i+1)), interpreter.ToDisplay(r))
		}
	}

	return nil
}

// formatCompileError renders err with a yellow location and a red message
func formatCompileError(err *parser.Error) string {
	msg := err.Message
	if err.Near != "" {
		msg += fmt.Sprintf(" near '%s'", err.Near)
	}

	return color.YellowText(fmt.Sprintf("%s:%d:", lexer.ChunkID(err.Source), err.Line)) + " " + color.RedText(msg)
}

func countFunctions(p *chunk.Prototype) int {
	n := 1
	for _, child := range p.Protos {
		n += countFunctions(child)
	}

	return n
}
