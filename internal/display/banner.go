package display

import (
	"fmt"
	"os"

	"github.com/backmassage/scopemux/internal/term"
)

// PrintBanner prints the ASCII art banner; magenta when colors are enabled.
func PrintBanner() {
	if term.Enabled() {
		fmt.Fprint(os.Stdout, term.Magenta)
	}
	fmt.Fprint(os.Stdout, ` ____                       __  __
/ ___|  ___ ___  _ __   ___|  \/  |_   ___  __
\___ \ / __/ _ \| '_ \ / _ \ |\/| | | | \ \/ /
 ___) | (_| (_) | |_) |  __/ |  | | |_| |>  <
|____/ \___\___/| .__/ \___|_|  |_|\__,_/_/\_\
                |_|
`)
	if term.Enabled() {
		fmt.Fprintln(os.Stdout, term.NC)
	}
}
