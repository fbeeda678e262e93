package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/litaotju/mold/pkg/linker"
	"github.com/litaotju/mold/pkg/utils"
)

var version string

func main() {
	ctx := linker.NewContext()
	remaining := parseArgs(ctx)

	if len(remaining) == 0 {
		utils.Fatal("no input files")
	}

	if ctx.Args.Emulation == linker.MachineTypeNone {
		for _, filename := range remaining {
			if strings.HasPrefix(filename, "-") {
				continue
			}
			file := linker.MustNewFile(filename)
			ctx.Args.Emulation = linker.GetMachineTypeFromContents(file.Contents)
			if ctx.Args.Emulation != linker.MachineTypeNone {
				break
			}
		}
	}

	if ctx.Args.Emulation != linker.MachineTypeX86_64 {
		utils.Fatal("unknown emulation type")
	}

	if ctx.Args.ThreadCount <= 0 {
		ctx.Args.ThreadCount = runtime.GOMAXPROCS(0)
	}

	linker.Link(ctx, remaining)

	if ctx.Args.Trace {
		linker.PrintTrace(ctx, os.Stdout)
	}
	if ctx.Args.PrintMap {
		linker.PrintMap(ctx, os.Stdout)
	}
	if ctx.Args.Stat {
		linker.PrintStat(ctx, os.Stdout)
	}
}

func parseArgs(ctx *linker.Context) []string {
	args := os.Args[1:]

	dashes := func(name string) []string {
		if len(name) == 1 {
			return []string{"-" + name}
		}
		return []string{"-" + name, "--" + name}
	}

	arg := ""
	readArg := func(name string) bool {
		if len(args) == 0 {
			return false
		}
		for _, opt := range dashes(name) {
			if args[0] == opt {
				if len(args) == 1 {
					utils.Fatal(fmt.Sprintf("option -%s: argument missing", name))
				}
				arg = args[1]
				args = args[2:]
				return true
			}

			prefix := opt
			if len(name) > 1 {
				prefix += "="
			}
			if strings.HasPrefix(args[0], prefix) {
				arg = args[0][len(prefix):]
				args = args[1:]
				return true
			}
		}
		return false
	}

	readFlag := func(name string) bool {
		if len(args) == 0 {
			return false
		}
		for _, opt := range dashes(name) {
			if args[0] == opt {
				args = args[1:]
				return true
			}
		}
		return false
	}

	remaining := make([]string, 0)
	for len(args) > 0 {
		if readFlag("help") {
			fmt.Printf("usage: %s [options] file...\n", os.Args[0])
			os.Exit(0)
		}

		if readArg("o") || readArg("output") {
			ctx.Args.Output = arg
		} else if readFlag("v") || readFlag("version") {
			fmt.Printf("mold %s\n", version)
			os.Exit(0)
		} else if readArg("m") {
			if arg == "elf_x86_64" {
				ctx.Args.Emulation = linker.MachineTypeX86_64
			} else {
				utils.Fatal(fmt.Sprintf("unknown -m argument: %s", arg))
			}
		} else if readArg("L") {
			ctx.Args.LibraryPaths = append(ctx.Args.LibraryPaths, arg)
		} else if readArg("l") {
			remaining = append(remaining, "-l"+arg)
		} else if readFlag("static") {
			ctx.Args.Static = true
		} else if readArg("filler") {
			b, err := parseFillerByte(arg)
			if err != nil {
				utils.Fatal(fmt.Sprintf("option -filler: %s", err))
			}
			ctx.Args.Filler = &b
		} else if readArg("thread-count") {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				utils.Fatal(fmt.Sprintf("option -thread-count: expected a positive integer, got %q", arg))
			}
			ctx.Args.ThreadCount = n
		} else if readFlag("trace") {
			ctx.Args.Trace = true
		} else if readArg("trace-symbol") {
			ctx.Args.TraceSymbol = arg
		} else if readFlag("print-map") {
			ctx.Args.PrintMap = true
		} else if readFlag("stat") {
			ctx.Args.Stat = true
		} else if readArg("sysroot") ||
			readArg("plugin") ||
			readArg("plugin-opt") ||
			readFlag("as-needed") ||
			readFlag("start-group") ||
			readFlag("end-group") ||
			readArg("hash-style") ||
			readArg("build-id") ||
			readFlag("s") ||
			readFlag("no-relax") {
			// Ignored
		} else {
			if args[0][0] == '-' {
				utils.Fatal(fmt.Sprintf("unknown command line option: %s", args[0]))
			}
			remaining = append(remaining, args[0])
			args = args[1:]
		}
	}

	if ctx.Args.Output == "" {
		utils.Fatal("-o: output path is required")
	}

	if n := os.Getenv("MOLD_JOBS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 {
			ctx.Args.ThreadCount = v
		}
	}

	for i, path := range ctx.Args.LibraryPaths {
		ctx.Args.LibraryPaths[i] = filepath.Clean(path)
	}

	return remaining
}

// parseFillerByte accepts the "0xNN" form §6 documents.
func parseFillerByte(s string) (byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}
