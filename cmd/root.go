package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/partner-finder/internal/config"
	"github.com/sells-group/partner-finder/internal/describe"
	"github.com/sells-group/partner-finder/internal/discovery"
	"github.com/sells-group/partner-finder/internal/naming"
	"github.com/sells-group/partner-finder/internal/places"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "partner-finder",
	Short: "Find nearby partner businesses",
	Long:  "Searches Google Places around a starting point, widening the radius until enough distinct, relevant businesses are found, and optionally writes directory descriptions for them.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// newSearcher wires the configured provider and name normalizer.
func newSearcher(c *config.Config) *discovery.Searcher {
	provider := places.NewGoogleProviderFromConfig(c)

	normalizer := &naming.Normalizer{}
	if c.Search.RecoverNames {
		normalizer.Recoverer = naming.NewRecoverer(
			naming.WithUserAgent(c.Naming.UserAgent),
			naming.WithTimeout(time.Duration(c.Naming.TimeoutSecs)*time.Second),
			naming.WithCacheTTL(time.Duration(c.Naming.CacheTTLMinutes)*time.Minute),
		)
	}

	return discovery.NewSearcher(provider, discovery.ConfigFrom(c.Search),
		discovery.WithNameNormalizer(normalizer),
	)
}

// newGenerator fails when the selected description backend has no key.
func newGenerator(c *config.Config) (*describe.Generator, error) {
	if err := c.Validate("describe"); err != nil {
		return nil, err
	}
	return describe.NewGeneratorFromConfig(c)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
