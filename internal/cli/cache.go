package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dshills/codescan/internal/cache"
	"github.com/dshills/codescan/internal/config"
)

var (
	flagCacheJSON    bool
	flagCacheExpired bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or empty the on-disk completion cache",
	Long: `Completions are cached per provider, model, prompt and sampling settings,
so re-analyzing an unchanged corpus costs no provider calls. Entries older
than cache.ttl are ignored and removed on read.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached completions",
	Long:  "Delete every cached completion, or with --expired only those past cache.ttl.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig, nil)
		if err != nil {
			return err
		}
		c, err := cache.New(true, cfg.Cache.Dir, cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		remove, what := c.Clear, "cached completions"
		if flagCacheExpired {
			remove, what = c.Prune, "expired completions"
		}
		n, err := remove()
		if err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Removed %d %s from %s\n", n, what, c.Dir())
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"stats"},
	Short:   "Report cache location, size and expired entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig, nil)
		if err != nil {
			return err
		}
		c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		if !c.Enabled() {
			fmt.Fprintln(os.Stdout, "Caching is off (cache.enabled = false).")
			return nil
		}
		stats, err := c.GetStats()
		if err != nil {
			return fmt.Errorf("reading cache stats: %w", err)
		}
		if flagCacheJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		return pterm.DefaultTable.WithData(cacheTable(stats, cfg.Cache.TTL.String())).Render()
	},
}

func cacheTable(stats cache.Stats, ttl string) pterm.TableData {
	if ttl == "0s" {
		ttl = "never expires"
	}
	return pterm.TableData{
		{"Directory", stats.Dir},
		{"Entries", strconv.Itoa(stats.Entries)},
		{"Size", humanize.Bytes(uint64(stats.TotalBytes))},
		{"Expired", strconv.Itoa(stats.Expired)},
		{"TTL", ttl},
	}
}

func init() {
	cacheClearCmd.Flags().BoolVar(&flagCacheExpired, "expired", false, "Only remove entries past cache.ttl")
	cacheShowCmd.Flags().BoolVar(&flagCacheJSON, "json", false, "Print statistics as JSON")
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheShowCmd)
}
