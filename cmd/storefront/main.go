// Command storefront is a terminal shopper for the market basket API. The
// basket lives in a local file so it survives between invocations.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/market-basket/market-basket/internal/basket"
	"github.com/market-basket/market-basket/internal/catalog"
	"github.com/market-basket/market-basket/internal/orders"
	"github.com/market-basket/market-basket/internal/products"
	"github.com/market-basket/market-basket/internal/recommend"
)

type config struct {
	API     string        `envconfig:"STOREFRONT_API" default:"http://localhost:8080"`
	Dir     string        `envconfig:"STOREFRONT_DIR"`
	Timeout time.Duration `envconfig:"STOREFRONT_TIMEOUT" default:"10s"`
	Lang    string        `envconfig:"STOREFRONT_LANG" default:"en-US"`
}

const usage = `usage: storefront <command>

  products             list the catalog
  show <id>            show one product
  add <id> [qty]       add a product to the basket
  set <id> <qty>       change a quantity (0 removes)
  remove <id>          remove a product
  clear                empty the basket
  basket               show the basket with totals
  suggest              products that go with the basket
  checkout             place the order
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("load .env", slog.Any("error", err))
	}
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Error("resolve home directory", slog.Any("error", err))
			os.Exit(1)
		}
		cfg.Dir = filepath.Join(home, ".marketbasket")
	}

	sf, err := newStorefront(cfg, &http.Client{Timeout: cfg.Timeout}, logger)
	if err != nil {
		logger.Error("init storefront", slog.Any("error", err))
		os.Exit(1)
	}
	if err := sf.run(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type storefront struct {
	api     *catalog.Client
	storage basket.Storage
	printer *message.Printer
	logger  *slog.Logger
}

func newStorefront(cfg config, hc *http.Client, logger *slog.Logger) (*storefront, error) {
	storage, err := basket.NewFileStorage(cfg.Dir)
	if err != nil {
		return nil, err
	}
	tag, err := language.Parse(cfg.Lang)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return &storefront{
		api:     catalog.NewClient(cfg.API, hc),
		storage: storage,
		printer: message.NewPrinter(tag),
		logger:  logger,
	}, nil
}

func (s *storefront) money(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return s.printer.Sprintf("$%.2f", f)
}

func (s *storefront) run(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		_, err := io.WriteString(out, usage)
		return err
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "products":
		list, err := s.api.ListProducts(ctx)
		if err != nil {
			return err
		}
		return s.printProducts(out, list)
	case "show":
		id, err := argID(rest, 0)
		if err != nil {
			return err
		}
		p, err := s.api.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "#%d %s (%s)\n%s\n%s\n", p.ID, p.Name, p.Category, s.money(p.Price), p.Description)
		return err
	case "help", "-h", "--help":
		_, err := io.WriteString(out, usage)
		return err
	}

	store, err := basket.Open(ctx, s.storage)
	if errors.Is(err, basket.ErrCorrupt) {
		fmt.Fprintln(out, "stored basket was unreadable and has been reset")
		if err := s.storage.Save(ctx, basket.StorageKey, nil); err != nil {
			return err
		}
		store, err = basket.Open(ctx, s.storage)
	}
	if err != nil {
		return err
	}

	switch cmd {
	case "add":
		id, err := argID(rest, 0)
		if err != nil {
			return err
		}
		qty := 1
		if len(rest) > 1 {
			qty = basket.ParseQuantityInput(rest[1], 1)
		}
		p, err := s.api.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := store.Add(ctx, p, qty); err != nil {
			return err
		}
		fmt.Fprintf(out, "added %s\n", p.Name)
		return s.printBasket(out, store)
	case "set":
		id, err := argID(rest, 0)
		if err != nil {
			return err
		}
		if len(rest) < 2 {
			return errors.New("set needs a quantity")
		}
		current := 0
		for _, it := range store.Items() {
			if it.Product.ID == id {
				current = it.Quantity
			}
		}
		if err := store.UpdateQuantity(ctx, id, basket.ParseQuantityInput(rest[1], current)); err != nil {
			return err
		}
		return s.printBasket(out, store)
	case "remove":
		id, err := argID(rest, 0)
		if err != nil {
			return err
		}
		if err := store.Remove(ctx, id); err != nil {
			return err
		}
		return s.printBasket(out, store)
	case "clear":
		if err := store.Clear(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(out, "basket cleared")
		return err
	case "basket":
		return s.printBasket(out, store)
	case "suggest":
		list, err := s.suggest(ctx, store)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			_, err := fmt.Fprintln(out, "no suggestions right now")
			return err
		}
		return s.printProducts(out, list)
	case "checkout":
		key := uuid.NewString()
		order, err := store.Checkout(ctx, func(ctx context.Context, req orders.SubmitRequest) (orders.Order, error) {
			req.IdempotencyKey = key
			return s.api.SubmitOrder(ctx, req)
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "order %d placed with %d line(s)\n", order.ID, len(order.Details))
		return err
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

// suggest mirrors the server-side suggestion flow: top sellers for an empty
// basket, otherwise recommended names resolved against the catalog. An
// unavailable suggestion source yields an empty list rather than an error.
func (s *storefront) suggest(ctx context.Context, store *basket.Store) ([]products.Product, error) {
	lines := store.Lines()
	if len(lines) == 0 {
		top, err := s.api.TopProducts(ctx)
		if err != nil {
			s.logger.Warn("load top products", slog.Any("error", err))
			return nil, nil
		}
		out := make([]products.Product, 0, len(top))
		for _, p := range top {
			out = append(out, p.Product)
		}
		return out, nil
	}
	names, err := s.api.Recommendations(ctx, recommend.DistinctNames(lines))
	if err != nil {
		s.logger.Warn("load recommendations", slog.Any("error", err))
		return nil, nil
	}
	list, err := s.api.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	inBasket := make(map[int64]bool, len(lines))
	for _, l := range lines {
		inBasket[l.ProductID] = true
	}
	return recommend.Resolve(names, list, inBasket, recommend.DefaultLimit), nil
}

func (s *storefront) printProducts(out io.Writer, list []products.Product) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE")
	for _, p := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, s.money(p.Price))
	}
	return tw.Flush()
}

func (s *storefront) printBasket(out io.Writer, store *basket.Store) error {
	items := store.Items()
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "basket is empty")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tLINE")
	for _, it := range items {
		line := it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", it.Product.ID, it.Product.Name, it.Quantity, s.money(it.Product.Price), s.money(line))
	}
	fmt.Fprintf(tw, "\t\t%d\tsubtotal\t%s\n", store.Total(), s.money(store.Subtotal()))
	fmt.Fprintf(tw, "\t\t\ttax\t%s\n", s.money(store.Tax()))
	fmt.Fprintf(tw, "\t\t\ttotal\t%s\n", s.money(store.Grand()))
	return tw.Flush()
}

func argID(args []string, i int) (int64, error) {
	if len(args) <= i {
		return 0, errors.New("missing product id")
	}
	id, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", args[i])
	}
	return id, nil
}
