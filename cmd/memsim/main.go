// Command memsim drives the page walker, TLB hierarchy, and cache
// hierarchy over a command file and a simulated physical memory image.
// Built with spf13/cobra.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"memsim/internal/config"
	"memsim/kernel/kerr"
	"memsim/kernel/kfmt"
	"memsim/kernel/mem"
	"memsim/kernel/program"
	"memsim/kernel/session"
	"memsim/kernel/vmm"
)

// cliError wraps a *kerr.Error so main can recover its Kind after cobra's
// generic error propagation and map it to the corresponding exit code.
type cliError struct{ err *kerr.Error }

func (e *cliError) Error() string { return e.err.Error() }

func exitErr(err *kerr.Error) error {
	if err == nil {
		return nil
	}
	return &cliError{err: err}
}

func main() {
	root := &cobra.Command{
		Use:           "memsim",
		Short:         "A byte-addressable memory-system simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(false))
	root.AddCommand(newRunCommand(true))
	root.AddCommand(newDumpCommand())

	if err := root.Execute(); err != nil {
		code := kerr.BadParameter.ExitCode()
		if ce, ok := err.(*cliError); ok {
			code = ce.err.Kind.ExitCode()
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(code)
	}
}

func loadMemory(path string, isDescriptor bool) (*mem.Physical, *kerr.Error) {
	if isDescriptor {
		return mem.LoadDescriptor(path, vmm.WalkUint64)
	}
	return mem.LoadRawDump(path)
}

func newRunCommand(trace bool) *cobra.Command {
	use, short := "run", "Execute a command file against a memory image"
	if trace {
		use, short = "trace", "Execute a command file with structured per-command tracing"
	}

	var memPath, commandsPath, configPath string
	var isDescriptor bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			geo, gerr := config.Load(configPath)
			if gerr != nil {
				return exitErr(gerr)
			}

			pmem, merr := loadMemory(memPath, isDescriptor)
			if merr != nil {
				return exitErr(merr)
			}

			prog, perr := program.Parse(commandsPath)
			if perr != nil {
				return exitErr(perr)
			}

			sess := session.New(pmem, geo)
			if trace {
				sess.EnableTrace(cmd.ErrOrStderr())
			}

			out := cmd.OutOrStdout()
			for _, c := range prog.Commands {
				word, err := sess.Execute(c)
				if err != nil {
					return exitErr(err)
				}
				printResult(out, c, word)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&memPath, "mem", "", "path to the raw memory dump or descriptor file")
	cmd.Flags().BoolVar(&isDescriptor, "descriptor", false, "treat --mem as a descriptor file instead of a raw dump")
	cmd.Flags().StringVar(&commandsPath, "commands", "", "path to the command file")
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML geometry override")
	_ = cmd.MarkFlagRequired("mem")
	_ = cmd.MarkFlagRequired("commands")
	return cmd
}

func newDumpCommand() *cobra.Command {
	var memPath, addrHex string
	var length int
	var isDescriptor bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a hex dump of a loaded memory image",
		RunE: func(cmd *cobra.Command, args []string) error {
			pmem, merr := loadMemory(memPath, isDescriptor)
			if merr != nil {
				return exitErr(merr)
			}
			raw, perr := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(addrHex, "0x"), "0X"), 16, 32)
			if perr != nil {
				return exitErr(kerr.BadParameterf("cli", "invalid --addr %q", addrHex))
			}
			data := pmem.Bytes()
			if raw > uint64(len(data)) {
				return exitErr(kerr.BadParameterf("cli", "--addr %q is beyond memory size %#x", addrHex, len(data)))
			}
			if derr := kfmt.HexDump(cmd.OutOrStdout(), data[raw:], uint32(raw), length); derr != nil {
				return exitErr(kerr.IOf("cli", "writing hex dump: %v", derr))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&memPath, "mem", "", "path to the raw memory dump or descriptor file")
	cmd.Flags().BoolVar(&isDescriptor, "descriptor", false, "treat --mem as a descriptor file instead of a raw dump")
	cmd.Flags().StringVar(&addrHex, "addr", "0", "starting physical address (hex)")
	cmd.Flags().IntVar(&length, "len", 256, "number of bytes to dump")
	_ = cmd.MarkFlagRequired("mem")
	return cmd
}

func kindLabel(c program.Command) string {
	if c.Kind.String() == "INSTRUCTION" {
		return "I"
	}
	if c.DataSize == 1 {
		return "DB"
	}
	return "DW"
}

func printResult(w io.Writer, c program.Command, word uint32) {
	switch {
	case c.Order == program.Write && c.DataSize == 1:
		fmt.Fprintf(w, "line %d: W DB %02X @%s -> OK\n", c.Line, byte(word), c.VAddr)
	case c.Order == program.Write:
		fmt.Fprintf(w, "line %d: W DW %08X @%s -> OK\n", c.Line, word, c.VAddr)
	case c.DataSize == 1:
		fmt.Fprintf(w, "line %d: R DB @%s -> %02X\n", c.Line, c.VAddr, byte(word))
	default:
		fmt.Fprintf(w, "line %d: R %s @%s -> %08X\n", c.Line, kindLabel(c), c.VAddr, word)
	}
}
