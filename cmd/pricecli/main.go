package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pricestream/config"
	"pricestream/internal/feed"
	"pricestream/internal/symbol"
	"pricestream/pkg/crossbar"

	"github.com/gorilla/websocket"
)

// pricecli is a thin client over the server's own fetch and stream paths:
//
//	pricecli btc eth sol        fetch prices
//	pricecli -json btc          fetch as JSON
//	pricecli list -filter sol   list known symbols
//	pricecli stream btc eth     stream live prices (Ctrl+C to stop)
func main() {
	asJSON := flag.Bool("json", false, "output as JSON")
	flag.Parse()

	cfg := config.Load()

	registry, err := feed.LoadFile(cfg.Feeds.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: pricecli [-json] <SYMBOLS>... | list [-filter SUBSTR] | stream <SYMBOLS>...")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		listCmd(registry, args[1:], *asJSON)
	case "stream":
		streamCmd(cfg, args[1:], *asJSON)
	default:
		fetchCmd(cfg, registry, args, *asJSON)
	}
}

func listCmd(registry *feed.Registry, args []string, asJSON bool) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	filter := fs.String("filter", "", "filter symbols by substring")
	fs.Parse(args)

	symbols := registry.List(*filter)
	if asJSON {
		out, _ := json.MarshalIndent(symbols, "", "  ")
		fmt.Println(string(out))
		return
	}
	for _, s := range symbols {
		fmt.Println(s)
	}
	fmt.Fprintf(os.Stderr, "\n%d symbols\n", len(symbols))
}

// streamCmd subscribes to the server's websocket and prints updates until
// interrupted.
func streamCmd(cfg *config.Config, raw []string, asJSON bool) {
	if len(raw) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: pricecli stream <SYMBOLS>...")
		fmt.Fprintln(os.Stderr, "Example: pricecli stream btc eth sol")
		os.Exit(1)
	}

	symbols, invalid := symbol.NormalizeAll(raw)
	for _, bad := range invalid {
		fmt.Fprintf(os.Stderr, "Warning: skipping invalid symbol %q\n", bad)
	}
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no valid symbols to stream")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	url := fmt.Sprintf("ws://%s:%d/v1/stream", host, cfg.Server.Port)

	header := http.Header{}
	if cfg.Server.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.Server.APIKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: connect to %s: %v\n", url, err)
		os.Exit(1)
	}
	defer conn.Close()

	sub := map[string]interface{}{"action": "subscribe", "symbols": symbols}
	if err := conn.WriteJSON(sub); err != nil {
		fmt.Fprintf(os.Stderr, "Error: subscribe failed: %v\n", err)
		os.Exit(1)
	}

	if !asJSON {
		fmt.Fprintf(os.Stderr, "Streaming %s (Ctrl+C to stop)\n\n", strings.Join(symbols, ", "))
	}

	// Unblock the read loop on interrupt.
	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "Error: stream closed: %v\n", err)
			os.Exit(1)
		}

		var msg struct {
			Type    string  `json:"type"`
			Symbol  string  `json:"symbol"`
			Price   float64 `json:"price"`
			Message string  `json:"message"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "price":
			if asJSON {
				fmt.Println(string(payload))
			} else {
				fmt.Printf("%s: $%.2f\n", msg.Symbol, msg.Price)
			}
		case "error":
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg.Message)
		}
	}
}

func fetchCmd(cfg *config.Config, registry *feed.Registry, raw []string, asJSON bool) {
	client := crossbar.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)

	symbolByID := make(map[string]string, len(raw))
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		sym, err := symbol.Normalize(r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			continue
		}
		id, err := registry.Lookup(sym)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			continue
		}
		symbolByID[id] = sym
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	prices, _, err := client.FetchPrices(ctx, ids)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if asJSON {
		type quoteOut struct {
			Symbol string  `json:"symbol"`
			FeedID string  `json:"feed_id"`
			Price  float64 `json:"price"`
		}
		out := make([]quoteOut, 0, len(prices))
		for id, p := range prices {
			out = append(out, quoteOut{Symbol: symbolByID[id], FeedID: id, Price: p.Value})
		}
		b, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(b))
		return
	}

	for _, id := range ids {
		p, ok := prices[id]
		if !ok {
			continue
		}
		fmt.Printf("%s: $%.2f\n", symbolByID[id], p.Value)
	}
}
