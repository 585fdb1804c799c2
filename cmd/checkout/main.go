// Command checkout runs one scripted checkout against a running storefront API, using the
// PSP test environment behind it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/arrowtech/storefront/internal/cart"
	"github.com/arrowtech/storefront/internal/checkout"
	contract "github.com/arrowtech/storefront/pkg/checkout"
	"github.com/arrowtech/storefront/pkg/logger"
)

// cartLine is one entry of the -cart file.
type cartLine struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "storefront API base URL")
	cartFile := flag.String("cart", "", "JSON file with [{\"id\":\"1\",\"name\":\"Phone\",\"price\":\"1199\",\"quantity\":2}]")
	methodFile := flag.String("payment-method", "", "JSON file with the paymentMethod object")
	detailsFile := flag.String("details", "", "optional JSON file with details sent after an action")
	currency := flag.String("currency", "GBP", "ISO 4217 currency")
	taxRate := flag.String("tax-rate", "0.20", "tax rate applied to the cart total")
	returnURL := flag.String("return-url", "http://localhost:3000/checkout/result", "shopper return URL")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "checkout-driver", Level: logger.ParseLevel(*logLevel)})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	err := run(ctx, logg, options{
		apiURL:      *apiURL,
		cartFile:    *cartFile,
		methodFile:  *methodFile,
		detailsFile: *detailsFile,
		currency:    *currency,
		taxRate:     *taxRate,
		returnURL:   *returnURL,
	})
	if err != nil {
		logg.Error(ctx, "checkout run failed", err)
		os.Exit(1)
	}
}

type options struct {
	apiURL      string
	cartFile    string
	methodFile  string
	detailsFile string
	currency    string
	taxRate     string
	returnURL   string
}

func run(ctx context.Context, logg *logger.Logger, opts options) error {
	if opts.cartFile == "" || opts.methodFile == "" {
		return errors.New("-cart and -payment-method are required")
	}
	rate, err := decimal.NewFromString(opts.taxRate)
	if err != nil {
		return fmt.Errorf("parse tax rate: %w", err)
	}

	var lines []cartLine
	if err := readJSON(opts.cartFile, &lines); err != nil {
		return err
	}
	var method json.RawMessage
	if err := readJSON(opts.methodFile, &method); err != nil {
		return err
	}
	var details json.RawMessage
	if opts.detailsFile != "" {
		if err := readJSON(opts.detailsFile, &details); err != nil {
			return err
		}
	}

	cartID := "driver-" + uuid.NewString()
	store := cart.NewStore(cartID, cart.NewMemoryPersistence())
	for _, line := range lines {
		added, err := store.AddItem(ctx, cart.Product{
			ID:          line.ID,
			Name:        line.Name,
			Description: line.Description,
			Price:       line.Price,
		}, line.Quantity)
		if err != nil {
			return err
		}
		if !added {
			return fmt.Errorf("cart line %q needs an id and a positive price", line.ID)
		}
	}
	ctx = logg.WithCartID(ctx, cartID)

	widget := &scriptedWidget{}
	orch, err := checkout.New(checkout.Config{
		Currency:  opts.currency,
		TaxRate:   rate,
		ReturnURL: opts.returnURL,
	}, checkout.Dependencies{
		Cart:    store,
		Gateway: checkout.NewHTTPGateway(opts.apiURL, checkout.WithCartID(cartID)),
		Widgets: func(context.Context, contract.Session) (checkout.Widget, error) {
			return widget, nil
		},
		Targets: checkout.TargetLocatorFunc(func(string) bool { return true }),
		Notifier: checkout.NotifierFunc(func(n checkout.Notice) {
			logg.Info(logg.WithField(ctx, "kind", string(n.Kind)), n.Message)
		}),
		Navigator: checkout.NavigatorFunc(func(route string) {
			logg.Info(logg.WithField(ctx, "route", route), "navigate")
		}),
		Logger: logg,
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.Start(ctx); err != nil {
		return err
	}
	if err := widget.submit(ctx, method); err != nil {
		return err
	}
	if orch.Snapshot().State == checkout.StateAwaitingAdditionalDetails {
		if len(details) == 0 {
			return fmt.Errorf("payment requires an action (%s) and no -details file was given", widget.action)
		}
		if err := widget.details(ctx, details); err != nil {
			return err
		}
	}

	snap := orch.Snapshot()
	view := checkout.Display(snap.ResultCode)
	logg.Info(logg.WithFields(ctx, map[string]any{
		"state":         snap.State.String(),
		"result_code":   snap.ResultCode,
		"psp_reference": snap.PSPReference,
		"remaining":     store.ItemsCount(),
	}), view.Title)
	if snap.State != checkout.StateSuccess && snap.State != checkout.StatePending {
		return fmt.Errorf("checkout ended in %s: %s", snap.State, snap.Message)
	}
	return nil
}

func readJSON(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
