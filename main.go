package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lookbusy1344/icmc-emulator/api"
	"github.com/lookbusy1344/icmc-emulator/config"
	"github.com/lookbusy1344/icmc-emulator/encoder"
	"github.com/lookbusy1344/icmc-emulator/isa"
	"github.com/lookbusy1344/icmc-emulator/loader"
	"github.com/lookbusy1344/icmc-emulator/terminal"
	"github.com/lookbusy1344/icmc-emulator/vm"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var Version = "dev"

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		assembleOut = flag.String("assemble", "", "Assemble only and write the memory image to this file")
		apiServer   = flag.Bool("api-server", false, "Start HTTP API server mode")
		apiPort     = flag.Int("port", 0, "API server port (used with -api-server)")
		maxCycles   = flag.Uint64("max-cycles", 0, "Maximum instruction steps before halt (0 = config default)")
		entryPoint  = flag.String("entry", "", "Entry point address (hex or decimal)")
		useVideo    = flag.Bool("video", false, "Attach the terminal video/keyboard device")
		configPath  = flag.String("config", "", "Configuration file (default: platform config path)")
		verboseMode = flag.Bool("verbose", false, "Verbose output")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("ICMC Emulator %s\n", Version)
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *maxCycles == 0 {
		*maxCycles = cfg.Execution.MaxCycles
	}
	if *apiPort == 0 {
		*apiPort = cfg.API.Port
	}

	if *apiServer {
		runAPIServer(*apiPort)
		return
	}

	if flag.NArg() == 0 {
		printHelp()
		os.Exit(0)
	}

	inputFile := flag.Arg(0)
	words, err := loadInput(inputFile, *verboseMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *assembleOut != "" {
		if err := loader.WriteImage(*assembleOut, words); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if *verboseMode {
			fmt.Printf("Wrote %d words to %s\n", len(words), *assembleOut)
		}
		return
	}

	entry := cfg.Execution.Entry
	if *entryPoint != "" {
		e, err := parseNumber(*entryPoint)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid entry point %q\n", *entryPoint)
			os.Exit(1)
		}
		entry = e
	}

	if err := runProgram(words, entry, *maxCycles, *useVideo || cfg.Terminal.Enabled, cfg.Terminal.NoKey, *verboseMode); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration from the given path, or the platform
// default when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// loadInput assembles a .asm source file or reads a .bin memory image.
func loadInput(path string, verbose bool) ([]uint16, error) {
	if strings.EqualFold(filepath.Ext(path), ".bin") {
		return loader.ReadImage(path)
	}

	src, err := os.ReadFile(path) // #nosec G304 -- user-supplied source path
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	words, prog, err := encoder.Assemble(string(src), filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("assembly failed:\n%w", err)
	}
	if verbose {
		fmt.Printf("Assembled %d statements, %d labels, %d words\n",
			len(prog.Statements), prog.Symbols.Len(), len(words))
	}
	return words, nil
}

// runProgram loads the words into a fresh machine and steps it to HALT,
// printing the final register state when verbose.
func runProgram(words []uint16, entry uint16, maxCycles uint64, video bool, noKey uint16, verbose bool) error {
	machine := vm.New()
	if err := loader.LoadWords(machine, words); err != nil {
		return err
	}
	if err := machine.SetPC(int(entry)); err != nil {
		return err
	}

	if video {
		term, err := terminal.New()
		if err != nil {
			return err
		}
		defer term.Close()
		term.SetNoKeyValue(noKey)
		machine.SetDevice(term)
	}

	var cycles uint64
	for machine.State() != vm.StateHalted {
		if cycles >= maxCycles {
			return fmt.Errorf("cycle limit exceeded (%d steps)", maxCycles)
		}
		if machine.State() == vm.StatePaused {
			// BREAKP acts as a trace point outside a debugger.
			if verbose {
				fmt.Printf("breakpoint at PC=0x%04X\n", machine.PC())
			}
			machine.Resume()
		}
		if err := machine.Step(); err != nil {
			return fmt.Errorf("processor error at PC=0x%04X: %w", machine.PC(), err)
		}
		cycles++
	}

	if verbose {
		printState(machine)
	}
	return nil
}

// printState dumps the register file after a run.
func printState(m *vm.Machine) {
	snap := m.Snapshot()
	for i, r := range snap.Registers {
		fmt.Printf("R%d=0x%04X ", i, r)
	}
	fmt.Printf("\nPC=0x%04X SP=0x%04X IR=0x%04X (%s)\n",
		snap.PC, snap.SP, snap.IR, isa.DataArea(snap.PC))
}

// runAPIServer serves the WebSocket API until interrupted.
func runAPIServer(port int) {
	server := api.NewServerWithVersion(port, Version)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "API server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	fmt.Println("\nShutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		os.Exit(1)
	}
}

// parseNumber accepts decimal or 0x-prefixed hex.
func parseNumber(s string) (uint16, error) {
	base := 10
	digits := s
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		base = 16
		digits = s[2:]
	}
	v, err := strconv.ParseUint(digits, base, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func printHelp() {
	fmt.Println(`ICMC Emulator - a 16-bit academic processor toolchain

Usage:
  icmc-emulator [options] program.asm
  icmc-emulator [options] program.bin
  icmc-emulator -assemble out.bin program.asm
  icmc-emulator -api-server [-port N]

Options:`)
	flag.PrintDefaults()
}
