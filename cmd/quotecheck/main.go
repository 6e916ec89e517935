// quotecheck asks every configured pull source for the current price of the
// given symbols and prints the quotes side by side.
//
//	quotecheck BTC ETH
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/infra"
	"github.com/serp1412/coinfeed/internal/provider"
	"github.com/serp1412/coinfeed/pkg/quant"
)

func main() {
	symbols := domain.NormalizeSymbols(os.Args[1:])
	if len(symbols) == 0 {
		symbols = []string{"BTC"}
	}

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// Always include the catalog source so the tool is useful without API keys.
	cfg.Providers.CoinGecko.Enabled = true
	cfg.Logging.Level = "error"
	slog.SetDefault(infra.NewLogger(cfg))

	set := provider.NewFromConfig(cfg)

	fmt.Println("=== coinfeed quote check ===")
	for _, sym := range symbols {
		fmt.Printf("\n📊 %s\n", sym)

		coin := domain.Coin{Symbol: sym}
		for _, a := range set.Pulls {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			p, err := a.FetchOne(ctx, sym)
			cancel()

			switch {
			case errors.Is(err, domain.ErrNoData):
				fmt.Printf("   %-8s no data\n", a.Name())
			case err != nil:
				fmt.Printf("   %-8s ERROR %v\n", a.Name(), err)
			default:
				coin = coin.Update(p)
			}
		}

		sort.Slice(coin.Prices, func(i, j int) bool { return coin.Prices[i].Source < coin.Prices[j].Source })
		for _, p := range coin.Prices {
			fmt.Printf("   %-8s $%s\n", p.Source, quant.FormatPrice(p.Price))
		}
		if best, ok := coin.BestPrice(); ok {
			fmt.Printf("   lowest   %s @ $%s\n", best.Source, quant.FormatPrice(best.Price))
		}
	}
}
