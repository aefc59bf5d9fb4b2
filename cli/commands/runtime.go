package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/adapters"
	"github.com/eventdriven/cartflow/adapters/memory"
	"github.com/eventdriven/cartflow/adapters/postgres"
	"github.com/eventdriven/cartflow/cli/config"
	"github.com/eventdriven/cartflow/middleware/metrics"
	"github.com/eventdriven/cartflow/middleware/tracing"
	"github.com/eventdriven/cartflow/publish/kafka"
	"github.com/eventdriven/cartflow/publish/sns"
	"github.com/eventdriven/cartflow/serializer/msgpack"
	"github.com/eventdriven/cartflow/shoppingcart"
)

// commandTimeout bounds a single dispatched command.
const commandTimeout = 30 * time.Second

// Runtime is a fully wired cart service built from a Config.
type Runtime struct {
	Config   *config.Config
	Store    *cartflow.EventStore
	Carts    *shoppingcart.Store
	Service  *shoppingcart.Service
	Bus      *cartflow.CommandBus
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	// Idempotency remembers processed command IDs for the life of the runtime.
	Idempotency *cartflow.MemoryIdempotencyStore

	closers []func(context.Context) error
}

// RuntimeOptions controls process-level concerns of a Runtime.
type RuntimeOptions struct {
	// LogOutput receives structured logs; nil discards them.
	LogOutput io.Writer
	Verbose   bool

	// TraceOutput receives spans as JSON; nil disables tracing.
	TraceOutput io.Writer
}

// NewRuntime opens the configured backend and wires the event store,
// the cart service and the command bus together.
func NewRuntime(ctx context.Context, cfg *config.Config, opts RuntimeOptions) (*Runtime, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", problems)
	}

	rt := &Runtime{
		Config:   cfg,
		Metrics:  metrics.New(metrics.WithMetricsServiceName(cfg.Project.Name)),
		Registry: prometheus.NewRegistry(),

		Idempotency: cartflow.NewMemoryIdempotencyStore(),
	}
	if err := rt.Metrics.Register(rt.Registry); err != nil {
		return nil, err
	}

	logger := newLogger(opts)

	base, err := newAdapter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var adapter adapters.EventStoreAdapter = rt.Metrics.WrapEventStore(base)
	var tracer *tracing.Tracer
	if opts.TraceOutput != nil {
		tp, err := tracing.NewStdoutProvider(opts.TraceOutput)
		if err != nil {
			_ = base.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, tp.Shutdown)
		tracer = newTracer(tp, cfg.Project.Name)
		adapter = tracing.NewEventStoreMiddleware(adapter, tracer)
	}

	storeOpts := []cartflow.Option{
		cartflow.WithSerializer(newSerializer(cfg)),
		cartflow.WithLogger(logger),
	}

	publisher, err := rt.newPublisher(cfg, tracer)
	if err != nil {
		_ = base.Close()
		return nil, err
	}
	if publisher != nil {
		storeOpts = append(storeOpts, cartflow.WithPublisher(publisher))
	}

	rt.Store = cartflow.New(adapter, storeOpts...)

	pricing, err := newPriceCalculator(cfg.Pricing)
	if err != nil {
		_ = rt.Store.Close()
		return nil, err
	}

	rt.Carts = shoppingcart.NewStore(rt.Store, cartflow.WithRepositoryLogger(logger))
	rt.Service = shoppingcart.NewService(rt.Carts, pricing)

	middleware := []cartflow.Middleware{
		cartflow.RecoveryMiddleware(logger),
		cartflow.CorrelationIDMiddleware(),
	}
	if tracer != nil {
		middleware = append(middleware, tracing.CommandMiddleware(tracer))
	}
	middleware = append(middleware,
		rt.Metrics.CommandMiddleware(),
		cartflow.LoggingMiddleware(logger),
		cartflow.ValidationMiddleware(),
		cartflow.IdempotencyMiddleware(rt.Idempotency, cartflow.DefaultIdempotencyTTL, logger),
		cartflow.TimeoutMiddleware(commandTimeout),
	)

	rt.Bus = cartflow.NewCommandBus(cartflow.WithMiddleware(middleware...))
	rt.Bus.Register(rt.Service.Handlers()...)

	return rt, nil
}

// Close releases the backend, the publisher and the trace exporter.
func (r *Runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := r.Store.Close()
	for i := len(r.closers) - 1; i >= 0; i-- {
		if cerr := r.closers[i](ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Dispatch sends cmd through the command bus.
func (r *Runtime) Dispatch(ctx context.Context, cmd cartflow.Command) (cartflow.CommandResult, error) {
	return r.Bus.Dispatch(ctx, cmd)
}

func newLogger(opts RuntimeOptions) cartflow.Logger {
	if opts.LogOutput == nil {
		return cartflow.NopLogger()
	}
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(opts.LogOutput, &slog.HandlerOptions{Level: level})
	return cartflow.NewSlogLogger(slog.New(handler)).With("component", "cartflow")
}

func newTracer(tp *sdktrace.TracerProvider, service string) *tracing.Tracer {
	return tracing.NewTracer(tracing.WithTracerProvider(tp), tracing.WithServiceName(service))
}

// newAdapter creates the configured backend. PostgreSQL connections are
// pinged with a short timeout so bad URLs fail fast.
func newAdapter(ctx context.Context, cfg *config.Config) (adapters.EventStoreAdapter, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		return memory.NewAdapter(), nil

	case config.DriverPostgres:
		var opts []postgres.Option
		if cfg.Database.DriverName != "" {
			opts = append(opts, postgres.WithDriver(cfg.Database.DriverName))
		}
		if cfg.Database.Schema != "" {
			opts = append(opts, postgres.WithSchema(cfg.Database.Schema))
		}

		adapter, err := postgres.NewAdapter(cfg.Database.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres adapter: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := adapter.Ping(pingCtx); err != nil {
			_ = adapter.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return adapter, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func newSerializer(cfg *config.Config) cartflow.Serializer {
	if cfg.Serializer == config.SerializerMsgpack {
		return msgpack.NewSerializer()
	}
	return cartflow.NewJSONSerializer()
}

func (r *Runtime) newPublisher(cfg *config.Config, tracer *tracing.Tracer) (cartflow.Publisher, error) {
	var publisher cartflow.Publisher

	switch cfg.Publisher.Type {
	case "", config.PublisherNone:
		return nil, nil

	case config.PublisherKafka:
		opts := []kafka.Option{kafka.WithBrokers(cfg.Publisher.Brokers...)}
		if cfg.Publisher.Topic != "" {
			opts = append(opts, kafka.WithTopic(cfg.Publisher.Topic))
		}
		p := kafka.New(opts...)
		r.closers = append(r.closers, func(context.Context) error { return p.Close() })
		publisher = p

	case config.PublisherSNS:
		opts := []sns.Option{
			sns.WithClient(newSNSClient(cfg.Publisher)),
			sns.WithTopicARN(cfg.Publisher.TopicARN),
		}
		if cfg.Publisher.FIFO {
			opts = append(opts, sns.WithFIFO())
		}
		publisher = sns.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported publisher: %s", cfg.Publisher.Type)
	}

	publisher = r.Metrics.WrapPublisher(publisher)
	if tracer != nil {
		publisher = tracing.NewPublisherMiddleware(publisher, tracer)
	}
	return publisher, nil
}

// newSNSClient builds an SNS client from the standard AWS_* credential
// variables.
func newSNSClient(cfg config.PublisherConfig) *awssns.Client {
	opts := awssns.Options{
		Region: cfg.Region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				Source:          "environment",
			}, nil
		}),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return awssns.New(opts)
}

func newPriceCalculator(cfg config.PricingConfig) (shoppingcart.PriceCalculator, error) {
	switch cfg.Mode {
	case config.PricingRandom:
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return shoppingcart.NewRandomPriceCalculator(seed), nil

	case config.PricingCatalog:
		return shoppingcart.ParseCatalog(cfg.Catalog)

	default:
		price, err := decimal.NewFromString(cfg.DefaultPrice)
		if err != nil {
			return nil, fmt.Errorf("pricing.default_price: %w", err)
		}
		return shoppingcart.NewFixedPriceCalculator(price), nil
	}
}
