package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"staxvm/stax"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

const imageExt = ".sbxc"

var (
	disassemble = flag.Bool("d", false, "print the disassembly instead of running")
	output      = flag.String("o", "", "compile to a bytecode image instead of running")
	verbose     = flag.Int("v", 0, "log verbosity")
)

func main() {
	flag.Parse()
	commonlog.Configure(*verbose, nil)
	log := commonlog.GetLogger("stax")

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: stax [-d] [-o out"+imageExt+"] <file.stax | file"+imageExt+">")
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fail("error reading file: %s", err)
	}

	var bc *stax.Bytecode
	source := ""
	if strings.HasSuffix(path, imageExt) {
		bc, err = stax.DecodeBytecode(data)
		if err != nil {
			fail("error loading image: %s", err)
		}
		log.Infof("loaded image %s: %d instructions, %d constants", path, len(bc.Program), len(bc.Consts))
	} else {
		source = string(data)
		bc, err = stax.CompileSource(path, source)
		if err != nil {
			reportError(err, source)
			os.Exit(1)
		}
		log.Infof("compiled %s: %d instructions, %d constants", path, len(bc.Program), len(bc.Consts))
	}

	if *disassemble {
		fmt.Print(stax.Disassemble(bc))
		return
	}

	if *output != "" {
		image, err := stax.EncodeBytecode(bc)
		if err != nil {
			fail("error encoding image: %s", err)
		}
		if err := os.WriteFile(*output, image, 0o644); err != nil {
			fail("error writing image: %s", err)
		}
		log.Infof("wrote %s (%d bytes)", *output, len(image))
		return
	}

	vm := stax.NewVM(bc)
	if err := vm.Run(); err != nil {
		if trap, ok := err.(stax.Trap); ok {
			fmt.Fprintln(os.Stderr, colorize(fmt.Sprintf("%s (ip=%d)", trap.Error(), vm.IP())))
		} else {
			reportError(err, source)
		}
		os.Exit(1)
	}
}

func reportError(err error, source string) {
	if staxErr, ok := err.(*stax.StaxError); ok && source != "" {
		fmt.Fprintln(os.Stderr, colorize(staxErr.ShowSource(source)))
		return
	}
	fmt.Fprintln(os.Stderr, colorize(err.Error()))
}

// colorize wraps the message in red when stderr is a terminal.
func colorize(msg string) string {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return "\x1b[31m" + msg + "\x1b[0m"
	}
	return msg
}

func fail(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(fmt.Sprintf(format, args...)))
	os.Exit(1)
}
