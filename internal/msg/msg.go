package msg

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Output is where every message goes
var Output io.Writer = color.Output

// exit is replaced in tests
var exit = os.Exit

func log(level, format string, a ...any) {
	fmt.Fprintf(Output, "%s: %s\n", level, fmt.Sprintf(format, a...))
}

func Error(format string, a ...any) { log(color.HiRedString("error"), format, a...) }

func Warn(format string, a ...any) { log(color.YellowString("warn"), format, a...) }

func Info(format string, a ...any) { log(color.HiGreenString("info"), format, a...) }

// Fatal prints the message and exits with status 1
func Fatal(format string, a ...any) {
	log(color.RedString("fatal"), format, a...)
	exit(1)
}

// IndentWriter prefixes every line written through it with Indent
type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
	buf       bytes.Buffer
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	w.buf.Reset()
	for _, c := range p {
		if !w.didIndent {
			w.buf.WriteString(w.Indent)
			w.didIndent = true
		}
		w.buf.WriteByte(c)
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	if _, err := w.W.Write(w.buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}
