package prometheus

import (
	"context"
	"testing"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/store"
)

func newExporterTestEngine(t *testing.T) *goReset.Engine {
	t.Helper()

	cfg := goReset.DefaultConfig()
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Sweep.Enabled = false

	engine, err := goReset.New().
		WithConfig(cfg).
		WithStore(store.NewMemory()).
		WithIdentityResolver(goReset.IdentityResolverFunc(func(context.Context, string) (bool, error) {
			return true, nil
		})).
		WithNotifier(goReset.NotifierFunc(func(context.Context, goReset.CodeMessage) error {
			return nil
		})).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if err := engine.RequestCode(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	return engine
}
