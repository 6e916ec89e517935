package infra

import (
	"fmt"
	"io"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
)

// PrintBanner writes the startup banner listing the active price sources.
// It turns yellow when nothing but the catalog feeds prices.
func PrintBanner(w io.Writer, cfg *Config, sources []string) {
	color := ColorGreen
	list := strings.Join(sources, ", ")
	if len(sources) == 0 {
		color = ColorYellow
		list = "catalog only"
	}

	line := func(format string, args ...any) {
		fmt.Fprintf(w, "%s"+format+"%s\n", append(append([]any{color}, args...), ColorReset)...)
	}

	fmt.Fprintln(w)
	line("###########################################################")
	line("#               🚀 coinfeed quote aggregator              #")
	line("#   VERSION: %-44s #", cfg.App.Version)
	line("#   API:     %-44s #", cfg.API.Addr)
	line("#   SOURCES: %-44s #", list)
	line("###########################################################")
	fmt.Fprintln(w)
}
