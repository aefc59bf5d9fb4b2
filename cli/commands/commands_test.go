package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/cli/config"
	"github.com/eventdriven/cartflow/publish/kafka"
	"github.com/eventdriven/cartflow/serializer/msgpack"
	"github.com/eventdriven/cartflow/shoppingcart"
)

var uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// ============================================================================
// Test Helpers
// ============================================================================

func memoryConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Project.Name = "test"
	cfg.Database.Driver = config.DriverMemory
	return cfg
}

// cli runs commands against one in-memory runtime so state survives
// between invocations.
type cli struct {
	t  *testing.T
	rt *Runtime
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	rt, err := NewRuntime(context.Background(), memoryConfig(), RuntimeOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return &cli{t: t, rt: rt}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	root := newRootCommand(&app{shared: c.rt})
	root.SetArgs(args)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)

	err := root.Execute()
	return buf.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func (c *cli) openCart() string {
	c.t.Helper()
	out := c.mustRun("cart", "open")
	id := uuidPattern.FindString(out)
	require.NotEmpty(c.t, id, out)
	return id
}

func getSubcommandNames(cmd *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	return names
}

// ============================================================================
// Command structure
// ============================================================================

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "cartflow", cmd.Use)
	names := getSubcommandNames(cmd)
	for _, want := range []string{"init", "migrate", "cart", "stream", "demo", "serve-metrics", "version"} {
		assert.True(t, names[want], want)
	}

	for _, flag := range []string{"config", "no-color", "verbose", "trace"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestCartCommand_Subcommands(t *testing.T) {
	cart := newCartCommand(&app{})
	names := getSubcommandNames(cart)

	for _, want := range []string{"open", "add", "remove", "confirm", "cancel", "show"} {
		assert.True(t, names[want], want)
	}

	for _, sub := range cart.Commands() {
		if sub.Name() == "show" {
			continue
		}
		assert.NotNil(t, sub.Flags().Lookup("command-id"), sub.Name())
		if sub.Name() == "open" {
			continue
		}
		assert.NotNil(t, sub.Flags().Lookup("if-match"), sub.Name())
	}
}

func TestCartCommands_RetryWithCommandID(t *testing.T) {
	c := newCLI(t)
	cartID := c.openCart()
	product := demoShoes.String()

	first := c.mustRun("cart", "add", cartID, "-p", product, "--command-id", "retry-1")
	assert.Contains(t, first, `W/"1"`)

	second := c.mustRun("cart", "add", cartID, "-p", product, "--command-id", "retry-1")
	assert.Contains(t, second, `W/"1"`)
	assert.Equal(t, 1, c.rt.Idempotency.Len())

	out := c.mustRun("cart", "show", cartID)
	assert.Contains(t, out, "10.00")
	assert.NotContains(t, out, "20.00")
	assert.Contains(t, out, `W/"1"`)

	out = c.mustRun("cart", "add", cartID, "-p", product, "--command-id", "retry-2")
	assert.Contains(t, out, `W/"2"`)
	assert.Equal(t, 2, c.rt.Idempotency.Len())
}

func TestVersionCommand_Execute(t *testing.T) {
	cmd := NewVersionCommand("1.0.0", "abc123", "2026-01-01")
	cmd.SetArgs([]string{})

	var buf bytes.Buffer
	cmd.SetOut(&buf)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "1.0.0")
	assert.Contains(t, buf.String(), "abc123")
}

// ============================================================================
// init
// ============================================================================

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	cmd := NewInitCommand()
	cmd.SetArgs([]string{dir, "--name", "shop", "--driver", "memory", "--serializer", "msgpack"})
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Created cartflow.yaml")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "shop", cfg.Project.Name)
	assert.Equal(t, config.DriverMemory, cfg.Database.Driver)
	assert.Equal(t, config.SerializerMsgpack, cfg.Serializer)
}

func TestInitCommand_AlreadyExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, config.DefaultConfig().Save(dir))

	cmd := NewInitCommand()
	cmd.SetArgs([]string{dir})
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "already exists")
}

func TestNextSteps(t *testing.T) {
	postgres := config.DefaultConfig()
	assert.Contains(t, nextSteps(postgres), "cartflow migrate")

	memory := memoryConfig()
	assert.NotContains(t, nextSteps(memory), "cartflow migrate")
	assert.Contains(t, nextSteps(memory), "cartflow cart open")
}

// ============================================================================
// cart
// ============================================================================

func TestCartCommands_Checkout(t *testing.T) {
	c := newCLI(t)
	cartID := c.openCart()
	product := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

	out := c.mustRun("cart", "add", cartID, "--product", product, "--quantity", "3", "--if-match", `W/"0"`)
	assert.Contains(t, out, `W/"1"`)

	out = c.mustRun("cart", "remove", cartID, "-p", product, "-q", "1")
	assert.Contains(t, out, `W/"2"`)

	out = c.mustRun("cart", "show", cartID)
	assert.Contains(t, out, "Pending")
	assert.Contains(t, out, product)
	assert.Contains(t, out, "20.00")
	assert.Contains(t, out, `W/"2"`)

	out = c.mustRun("cart", "confirm", cartID, "--if-match", `W/"2"`)
	assert.Contains(t, out, `W/"3"`)

	out = c.mustRun("cart", "show", cartID)
	assert.Contains(t, out, "Confirmed")
}

func TestCartCommands_Errors(t *testing.T) {
	c := newCLI(t)
	cartID := c.openCart()
	product := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

	t.Run("stale ETag", func(t *testing.T) {
		c.mustRun("cart", "add", cartID, "-p", product)

		_, err := c.run("cart", "add", cartID, "-p", product, "--if-match", `W/"0"`)
		assert.ErrorIs(t, err, cartflow.ErrPreconditionFailed)
		assert.Contains(t, describe(err), "HTTP 412")
	})

	t.Run("malformed ETag", func(t *testing.T) {
		_, err := c.run("cart", "confirm", cartID, "--if-match", "garbage")
		assert.Equal(t, 400, cartflow.StatusCode(err))
	})

	t.Run("unknown cart", func(t *testing.T) {
		_, err := c.run("cart", "show", "00000000-0000-0000-0000-000000000001")
		assert.ErrorIs(t, err, cartflow.ErrNotFound)
	})

	t.Run("bad cart ID", func(t *testing.T) {
		_, err := c.run("cart", "cancel", "not-a-uuid")
		assert.ErrorIs(t, err, cartflow.ErrValidationFailed)
	})

	t.Run("closed cart", func(t *testing.T) {
		c.mustRun("cart", "cancel", cartID)

		_, err := c.run("cart", "add", cartID, "-p", product)
		assert.ErrorIs(t, err, cartflow.ErrInvalidOperation)
		assert.Contains(t, describe(err), "HTTP 409")
	})

	t.Run("missing product flag", func(t *testing.T) {
		_, err := c.run("cart", "add", cartID)
		assert.Error(t, err)
	})
}

// ============================================================================
// stream
// ============================================================================

func TestStreamCommands(t *testing.T) {
	c := newCLI(t)
	cartID := c.openCart()
	c.mustRun("cart", "add", cartID, "-p", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "-q", "2")

	out := c.mustRun("stream", "show", cartID)
	assert.Contains(t, out, "shopping_cart-"+cartID)
	assert.Contains(t, out, "#0 ShoppingCartOpened")
	assert.Contains(t, out, "#1 ProductItemAddedToShoppingCart")

	out = c.mustRun("stream", "show", "shopping_cart-"+cartID, "--from", "1")
	assert.NotContains(t, out, "ShoppingCartOpened")

	out = c.mustRun("stream", "info", cartID)
	assert.Contains(t, out, "shopping_cart")
	assert.Contains(t, out, `W/"1"`)

	_, err := c.run("stream", "info", "shopping_cart-missing")
	assert.ErrorIs(t, err, cartflow.ErrNotFound)

	path := filepath.Join(t.TempDir(), "cart.json")
	c.mustRun("stream", "export", cartID, "-o", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var exported []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &exported))
	require.Len(t, exported, 2)
	assert.Equal(t, "ProductItemAddedToShoppingCart", exported[1]["type"])
}

// ============================================================================
// migrate, demo, serve-metrics
// ============================================================================

func TestMigrateCommand_Memory(t *testing.T) {
	out := newCLI(t).mustRun("migrate")
	assert.Contains(t, out, "doesn't require migrations")
}

func TestDemoCommand(t *testing.T) {
	out := newCLI(t).mustRun("demo")

	assert.Contains(t, out, "[1/7]")
	assert.Contains(t, out, "HTTP 412")
	assert.Contains(t, out, "HTTP 409")
	assert.Contains(t, out, "Confirmed")
}

func TestDemoProducts(t *testing.T) {
	shoes, tshirt := demoProducts(memoryConfig())
	assert.Equal(t, demoShoes, shoes)
	assert.Equal(t, demoTShirt, tshirt)

	cfg := memoryConfig()
	cfg.Pricing = config.PricingConfig{Mode: config.PricingCatalog, Catalog: map[string]string{
		"6ba7b812-9dad-11d1-80b4-00c04fd430c8": "1.00",
	}}
	shoes, tshirt = demoProducts(cfg)
	assert.Equal(t, shoes, tshirt)
	assert.Equal(t, "6ba7b812-9dad-11d1-80b4-00c04fd430c8", shoes.String())
}

func TestMetricsMux(t *testing.T) {
	c := newCLI(t)
	c.openCart()

	srv := httptest.NewServer(newMetricsMux(c.rt))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body.String(), "cartflow_commands_total")
	assert.Contains(t, body.String(), `command_type="OpenShoppingCart"`)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

// ============================================================================
// Runtime wiring
// ============================================================================

func TestNewRuntime_InvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Serializer = "xml"

	_, err := NewRuntime(context.Background(), cfg, RuntimeOptions{})
	assert.ErrorContains(t, err, "serializer")
}

func TestNewRuntime_Tracing(t *testing.T) {
	var spans, logs bytes.Buffer
	rt, err := NewRuntime(context.Background(), memoryConfig(), RuntimeOptions{
		TraceOutput: &spans,
		LogOutput:   &logs,
		Verbose:     true,
	})
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Dispatch(context.Background(), shoppingcart.OpenShoppingCart{ClientID: uuid.MustParse("6ba7b814-9dad-11d1-80b4-00c04fd430c8")})
	require.NoError(t, err)

	assert.Contains(t, spans.String(), "command.OpenShoppingCart")
	assert.Contains(t, spans.String(), "eventstore.append")
	assert.Contains(t, logs.String(), "command completed")
}

func TestRuntime_ReplaysRetriedCommand(t *testing.T) {
	ctx := context.Background()
	rt, err := NewRuntime(ctx, memoryConfig(), RuntimeOptions{})
	require.NoError(t, err)
	defer rt.Close()

	opened, err := rt.Dispatch(ctx, shoppingcart.OpenShoppingCart{ClientID: uuid.New()})
	require.NoError(t, err)

	add := shoppingcart.AddProductItemToShoppingCart{
		ShoppingCartID: uuid.MustParse(opened.AggregateID),
		ProductItem:    shoppingcart.ProductItem{ProductID: demoShoes, Quantity: 1},
	}
	add.CommandID = "retry-1"

	first, err := rt.Dispatch(ctx, add)
	require.NoError(t, err)
	second, err := rt.Dispatch(ctx, add)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	cart, rev, err := rt.Carts.Get(ctx, opened.AggregateID)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.Quantity(demoShoes))
	assert.Equal(t, int64(1), rev)
	assert.Equal(t, 1, rt.Idempotency.Len())
}

func TestNewSerializer(t *testing.T) {
	cfg := memoryConfig()
	assert.IsType(t, &cartflow.JSONSerializer{}, newSerializer(cfg))

	cfg.Serializer = config.SerializerMsgpack
	assert.IsType(t, &msgpack.Serializer{}, newSerializer(cfg))
}

func TestNewPublisher(t *testing.T) {
	rt := newCLI(t).rt

	p, err := rt.newPublisher(memoryConfig(), nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	cfg := memoryConfig()
	cfg.Publisher = config.PublisherConfig{Type: config.PublisherKafka, Brokers: []string{"localhost:9092"}, Topic: "carts"}
	p, err = rt.newPublisher(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, p)

	cfg.Publisher = config.PublisherConfig{Type: config.PublisherSNS, TopicARN: "arn:aws:sns:us-east-1:000000000000:carts", Region: "us-east-1"}
	p, err = rt.newPublisher(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, p)

	cfg.Publisher = config.PublisherConfig{Type: "nats"}
	_, err = rt.newPublisher(cfg, nil)
	assert.Error(t, err)

	assert.Equal(t, "carts", kafka.New(kafka.WithTopic("carts")).Topic())
}

func TestNewPriceCalculator(t *testing.T) {
	_, err := newPriceCalculator(config.PricingConfig{Mode: config.PricingFixed, DefaultPrice: "x"})
	assert.Error(t, err)

	_, err = newPriceCalculator(config.PricingConfig{Mode: config.PricingCatalog, Catalog: map[string]string{"bad": "1"}})
	assert.Error(t, err)

	calc, err := newPriceCalculator(config.PricingConfig{Mode: config.PricingRandom, Seed: 7})
	require.NoError(t, err)
	assert.IsType(t, &shoppingcart.RandomPriceCalculator{}, calc)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(config.EnvDatabaseURL, "")

	dir := t.TempDir()
	cfg := memoryConfig()
	cfg.Project.Name = "from-file"
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, cfg.SaveFile(path))

	loaded, err := (&app{configPath: path}).loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-file", loaded.Project.Name)

	t.Chdir(t.TempDir())
	loaded, err = (&app{}).loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DriverMemory, loaded.Database.Driver)

	t.Setenv(config.EnvDatabaseURL, "postgres://env/db")
	loaded, err = (&app{}).loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DriverPostgres, loaded.Database.Driver)
	assert.Equal(t, "postgres://env/db", loaded.Database.URL)
}
