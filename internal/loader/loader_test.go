package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/manager"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
)

const sampleConfig = `
listen: 127.0.0.1:9999
http_listen: ""
max_message_size: 4MB
database:
  path: ${LAGER_TEST_DB}
  query_timeout: 5s
logging:
  level: debug
  json: true
tree:
  default_depth: 5
  cycle_policy: reject
auth:
  tokens:
    - id: admin
      token: ${LAGER_TEST_TOKEN}
seed:
  - name: Hall A
    storages:
      - name: Rack 1
        spaces:
          - name: Shelf 1
            size: 12
            products:
              - name: Glue
                price: 3.5
                attributes:
                  brand: Acme
                  volume: 250
                  toxic: false
    spaces:
      - name: Floor
`

func TestParse(t *testing.T) {
	t.Setenv("LAGER_TEST_DB", "/tmp/lager-test.db")
	t.Setenv("LAGER_TEST_TOKEN", "s3cret")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "127.0.0.1:9999", cfg.Listen)
	assert.Empty(t, cfg.HTTPListen)
	assert.Equal(t, int64(4<<20), cfg.MaxMessageSize.Bytes())
	assert.Equal(t, "/tmp/lager-test.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout.Duration())
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, "s3cret", cfg.Auth.Tokens[0].Token)

	// untouched sections keep their defaults
	assert.Equal(t, config.DefaultAuthTimeoutSec, cfg.Session.AuthTimeoutSec)
	assert.Equal(t, config.DefaultDrainTimeout, cfg.Shutdown.DrainTimeout.Duration())
	assert.Equal(t, config.DefaultMaxOpenConns, cfg.Database.MaxOpenConns)

	require.Len(t, cfg.Seed, 1)
	shelf := cfg.Seed[0].Storages[0].Spaces[0]
	require.NotNil(t, shelf.Size)
	assert.Equal(t, 12.0, *shelf.Size)
	assert.Equal(t, "Acme", shelf.Products[0].Attributes["brand"])
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("listen: [unterminated"))
	assert.Error(t, err)

	_, err = Parse([]byte("database: {query_timeout: soon}"))
	assert.Error(t, err)
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"d: 30s", 30 * time.Second},
		{"d: 1m30s", 90 * time.Second},
		{"d: 45", 45 * time.Second},
		{`d: "10"`, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v struct {
				D Duration `yaml:"d"`
			}
			require.NoError(t, yaml.Unmarshal([]byte(tt.in), &v))
			assert.Equal(t, tt.want, v.D.Duration())
		})
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"512", 512, false},
		{"512B", 512, false},
		{"16MB", 16 << 20, false},
		{"1 gb", 1 << 30, false},
		{"2KB", 2048, false},
		{"lots", 0, true},
		{"1.5MB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseByteSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))

	cfg := DefaultConfig()
	cfg.Listen = ""
	cfg.Database.Path = ""
	cfg.TLS.CertFile = "cert.pem"
	cfg.Logging.Level = "loud"
	cfg.Tree.DefaultDepth = config.MaxTreeDepth + 1
	cfg.Tree.CyclePolicy = "ignore"
	cfg.Auth.Tokens = []TokenConfig{{ID: "a", Token: "x"}, {ID: "a"}}
	cfg.Seed = []*SeedStorage{{Name: "ok", Spaces: []*SeedSpace{{Products: []*SeedProduct{{}}}}}, {}}

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	var verrs *errors.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	msg := err.Error()
	for _, field := range []string{
		"listen", "database.path", "tls", "logging.level", "tree.default_depth",
		"tree.cycle_policy", "auth.tokens[1].id", "auth.tokens[1].token",
		"seed[0].spaces[0].name", "seed[1].name",
	} {
		assert.Contains(t, msg, field)
	}
}

func TestLoad_Includes(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "lager.yaml")
	require.NoError(t, os.WriteFile(main, []byte(`
include: ["seed.d/*.yaml"]
seed:
  - name: Main
`), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "seed.d"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.d", "b.yaml"), []byte("seed: [{name: B}]\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.d", "a.yaml"), []byte("seed: [{name: A}]\nlisten: ignored:1\n"), 0o600))

	cfg, err := Load(main)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultListenAddress, cfg.Listen)

	var names []string
	for _, s := range cfg.Seed {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Main", "A", "B"}, names)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Path = ":memory:"
	cfg.Database.QueryTimeout = Duration(2 * time.Second)
	cfg.Tree.CyclePolicy = config.CyclePolicyReject
	cfg.Auth.Tokens = []TokenConfig{{ID: "admin", Token: "s3cret"}}
	cfg.Session.AuthTimeoutSec = 7

	sc := cfg.StoreConfig()
	assert.Empty(t, sc.Path)
	assert.Equal(t, 2*time.Second, sc.QueryTimeout)

	mc, err := cfg.ManagerConfig()
	require.NoError(t, err)
	assert.Equal(t, config.CyclePolicyReject, mc.CyclePolicy.Name())
	assert.Equal(t, config.DefaultTreeDepth, mc.DefaultDepth)

	smc := cfg.SessionConfig()
	assert.Equal(t, 7*time.Second, smc.AuthTimeout)
	require.Len(t, smc.Tokens, 1)
	assert.Equal(t, "admin", smc.Tokens[0].ID)

	cfg.Tree.CyclePolicy = "ignore"
	_, err = cfg.ManagerConfig()
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestApply(t *testing.T) {
	t.Setenv("LAGER_TEST_DB", "x")
	t.Setenv("LAGER_TEST_TOKEN", "x")
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	ctx := context.Background()
	gw := store.NewMemStore()
	mgr := manager.New(gw, manager.DefaultConfig())

	result, err := Apply(ctx, cfg, mgr, gw)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 2, result.StoragesCreated)
	assert.Equal(t, 2, result.SpacesCreated)
	assert.Equal(t, 1, result.ProductsCreated)
	assert.Equal(t, 3, result.AttributesCreated)

	roots, err := mgr.Storages.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	hall := roots[0]
	assert.Equal(t, "Hall A", hall.Storage.Name)
	require.Len(t, hall.Children, 1)
	require.Len(t, hall.Children[0].Spaces, 1)
	require.Len(t, hall.Children[0].Spaces[0].Products, 1)

	products, err := mgr.Products.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	attrs, err := mgr.Attributes.List(ctx, products[0].Product.ID)
	require.NoError(t, err)
	require.Len(t, attrs, 3)
	assert.True(t, attrs[0].Value.Equal(store.Text("Acme")))
	assert.True(t, attrs[1].Value.Equal(store.Bool(false)))
	assert.True(t, attrs[2].Value.Equal(store.Number(250)))

	// a populated inventory is never seeded twice
	result, err = Apply(ctx, cfg, mgr, gw)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	roots, err = mgr.Storages.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, roots, 1)
}

func TestApply_RecordsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = []*SeedStorage{{
		Name: "S",
		Spaces: []*SeedSpace{{
			Name: "Sp",
			Products: []*SeedProduct{
				{Name: "bad", Attributes: map[string]any{"list": []any{1, 2}}},
				{Name: "good"},
			},
		}},
	}}

	gw := store.NewMemStore()
	mgr := manager.New(gw, manager.DefaultConfig())
	result, err := Apply(context.Background(), cfg, mgr, gw)
	require.Error(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "S/Sp/bad")
	assert.Equal(t, 1, result.ProductsCreated)
}
