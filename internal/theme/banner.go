package theme

import (
	"fmt"
	"io"
)

// Banner returns the CLI banner: a tank with a falling water line.
func Banner() string {
	const cyan = "\033[36m"
	const blue = "\033[34m"
	const yellow = "\033[33m"
	const reset = "\033[0m"

	art := "" +
		"   ┌──────────┐   " + yellow + "TANKAI" + reset + "\n" +
		"   │" + cyan + "~~~~~~~~~~" + reset + "│\n" +
		"   │" + blue + "██████████" + reset + "│   rush models for tank level sensors\n" +
		"   │" + blue + "██████████" + reset + "│\n" +
		"   └────┬┬────┘\n" +
		"        ││ " + cyan + "≈≈≈" + reset + "\n"
	return art
}

// PrintBanner writes the banner to w. Commands pass stderr so stdout stays machine readable.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Banner())
}
