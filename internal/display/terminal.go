package display

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// Terminal prints display updates as colored lines.
type Terminal struct {
	out   io.Writer
	text  *color.Color
	lamp  *color.Color
	alert *color.Color
	now   func() time.Time
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out:   out,
		text:  color.New(color.FgCyan, color.Bold),
		lamp:  color.New(color.FgYellow),
		alert: color.New(color.FgRed),
		now:   time.Now,
	}
}

func (t *Terminal) stamp() string {
	return t.now().Format("15:04:05")
}

func (t *Terminal) SetText(text string) {
	t.text.Fprintf(t.out, "[%s] 📬 %s\n", t.stamp(), text)
}

func (t *Terminal) SetLamp(on bool) {
	state := "off"
	if on {
		state = "on"
	}
	t.lamp.Fprintf(t.out, "[%s] 💡 lamp %s\n", t.stamp(), state)
}

func (t *Terminal) Alert(msg string) {
	t.alert.Fprintf(t.out, "[%s] ⚠ %s\n", t.stamp(), msg)
}

// Help prints the keyboard controls.
func (t *Terminal) Help() {
	fmt.Fprintln(t.out, "Controls: t or Enter = toggle lamp, q = quit")
}
