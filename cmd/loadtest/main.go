// Command loadtest гоняет сценарии оформления заказов против REST API сервиса.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

const (
	scenarioMethod = "scenario"
	envJWTSecret   = "ENC_JWT_SECRET"
)

type loadMode string

const (
	modeCreate              loadMode = "create"
	modeCreateConfirm       loadMode = "create-confirm"
	modeCreateConfirmCancel loadMode = "create-confirm-cancel"
)

type config struct {
	baseURL          string
	total            int
	totalSet         bool
	duration         time.Duration
	concurrency      int
	timeout          time.Duration
	mode             loadMode
	cancelRate       int
	productID        int64
	quantity         int
	deliveryMethodID int64
	paymentMethodID  int64
	emailDomain      string
	jwtSecret        string
	adminID          int64
	outputPath       string
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	var (
		cfg       config
		modeValue string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "REST API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-confirm | create-confirm-cancel")
	fs.IntVar(&cfg.cancelRate, "cancel-rate", 0, "cancel probability in percent for create-confirm mode (0..100)")
	fs.Int64Var(&cfg.productID, "product-id", 1, "product to order")
	fs.IntVar(&cfg.quantity, "quantity", 1, "units per order")
	fs.Int64Var(&cfg.deliveryMethodID, "delivery-method", 1, "delivery method id")
	fs.Int64Var(&cfg.paymentMethodID, "payment-method", 1, "payment method id")
	fs.StringVar(&cfg.emailDomain, "email-domain", "loadtest.encontrar.ao", "domain for generated customer emails")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "secret for the admin token (default $"+envJWTSecret+")")
	fs.Int64Var(&cfg.adminID, "admin-id", 1, "user id of the admin that confirms and cancels orders")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})
	if strings.TrimSpace(cfg.jwtSecret) == "" {
		cfg.jwtSecret = strings.TrimSpace(getenv(envJWTSecret))
	}
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	switch {
	case cfg.baseURL == "":
		return cfg, errors.New("base-url is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.cancelRate < 0 || cfg.cancelRate > 100:
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	case cfg.productID <= 0 || cfg.deliveryMethodID <= 0 || cfg.paymentMethodID <= 0:
		return cfg, errors.New("product-id, delivery-method and payment-method must be > 0")
	case cfg.quantity <= 0 || cfg.quantity > 1<<31-1:
		return cfg, errors.New("quantity must be > 0")
	case strings.TrimSpace(cfg.emailDomain) == "":
		return cfg, errors.New("email-domain is required")
	case cfg.mode != modeCreate && cfg.jwtSecret == "":
		return cfg, fmt.Errorf("jwt-secret (or %s) is required for mode %s", envJWTSecret, cfg.mode)
	case cfg.mode != modeCreate && cfg.adminID <= 0:
		return cfg, errors.New("admin-id must be > 0")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeCreate, modeCreateConfirm, modeCreateConfirmCancel:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := run(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// run выполняет сценарии пулом воркеров и собирает отчёт.
func run(ctx context.Context, cfg config) (report, error) {
	col := newCollector()
	client, err := newOrderClient(cfg, col)
	if err != nil {
		return report{}, err
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	jobs := make(chan int, cfg.concurrency*2)

	var wg sync.WaitGroup
	for worker := range cfg.concurrency {
		wg.Add(1)
		faker := gofakeit.New(uint64(startedAt.UnixNano()) + uint64(worker)) // #nosec G115
		go func() {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(ctx, client, cfg, newCreateOrderBody(faker, cfg, id, runID), id, runID)
			}
		}()
	}

	dispatchJobs(ctx, jobs, cfg)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt)), nil
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := range cfg.total {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario оформляет заказ и, в зависимости от режима, подтверждает и отменяет его.
func runScenario(ctx context.Context, client *orderClient, cfg config, body createOrderBody, index int, runID string) (err error) {
	start := time.Now()
	defer func() {
		client.col.record(scenarioMethod, time.Since(start), scenarioCode(err))
	}()

	order, err := client.create(ctx, body, fmt.Sprintf("lt-create-%s-%d", runID, index))
	if err != nil {
		return err
	}
	if order.ID <= 0 {
		return &statusError{method: "CreateOrder", code: http.StatusInternalServerError, body: "empty order id"}
	}
	if cfg.mode == modeCreate {
		return nil
	}

	order, err = client.setStatus(ctx, "ConfirmOrder", order, domain.OrderStatusConfirmed)
	if err != nil {
		return err
	}

	if cfg.mode == modeCreateConfirmCancel || shouldCancelScenario(index, cfg.cancelRate) {
		if _, err = client.setStatus(ctx, "CancelOrder", order, domain.OrderStatusCancelled); err != nil {
			return err
		}
	}
	return nil
}

// newCreateOrderBody собирает заказ со случайным покупателем. Faker не делится между воркерами.
func newCreateOrderBody(faker *gofakeit.Faker, cfg config, index int, runID string) createOrderBody {
	return createOrderBody{
		Name:     faker.Name(),
		Email:    fmt.Sprintf("lt-%s-%d@%s", runID, index, cfg.emailDomain),
		Phone:    faker.Phone(),
		Items:    []itemBody{{ProductID: cfg.productID, Quantity: int32(cfg.quantity)}}, // #nosec G115 -- ограничено в parseConfig
		Delivery: methodBody{MethodID: cfg.deliveryMethodID, Address: faker.Street(), City: "Luanda"},
		Payment:  methodBody{MethodID: cfg.paymentMethodID},
	}
}

func shouldCancelScenario(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}
