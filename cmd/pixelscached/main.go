// Command pixelscached runs the shared columnar-chunk cache daemon: start
// opens (or creates) the cache and index files and holds them until
// interrupted, and inspect opens a REPL for poking at a running cache
// from the same host. The daemon does not run a Writer and does not
// contact the coordination store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pixelsdb/pixels-cache-go/cache"
	"github.com/pixelsdb/pixels-cache-go/cachekey"
	"github.com/pixelsdb/pixels-cache-go/pixelscacheconfig"
	"github.com/pixelsdb/pixels-cache-go/pixelslog"
)

var configPath string

func main() {
	app := &cli.App{
		Name:        "pixelscached",
		Usage:       "shared columnar-chunk cache daemon",
		Description: "Manages the memory mapped cache and index files backing Pixels' per-host columnlet cache.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to the JWCC configuration file",
				Value:       "/etc/pixels/pixels-cache.jsonc",
				Destination: &configPath,
			},
		},
		Commands: []*cli.Command{
			startCmd(),
			stopCmd(),
			inspectCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (pixelscacheconfig.Config, error) {
	cfg := pixelscacheconfig.Default()
	if configPath != "" {
		if loaded, err := pixelscacheconfig.Load(configPath); err == nil {
			cfg = loaded
		}
	}

	fs := pflag.NewFlagSet("pixelscached", pflag.ContinueOnError)
	pixelscacheconfig.BindFlags(fs, &cfg)
	_ = fs.Parse(c.Args().Slice())

	return cfg, nil
}

func startCmd() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "open the cache and index files and block serving lookups until interrupted",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			log, err := pixelslog.New(false)
			if err != nil {
				return err
			}
			defer log.Sync()

			if !cfg.CacheEnabled {
				log.Info("cache disabled by configuration, exiting")
				return nil
			}

			store, err := cache.Open(cfg.IndexLocation, cfg.IndexSize, cfg.CacheLocation, cfg.CacheSize, log)
			if err != nil {
				return err
			}
			defer store.Close()

			log.Info("cache opened",
				zap.String("index", cfg.IndexLocation),
				zap.String("data", cfg.CacheLocation))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sig:
				log.Info("received interrupt, shutting down")
			case <-ctx.Done():
			}

			return nil
		},
	}
}

func stopCmd() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "print how to shut down a running daemon (does not signal it)",
		Action: func(c *cli.Context) error {
			fmt.Println("pixelscached stop: send SIGTERM to the running process")
			return nil
		},
	}
}

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "open a REPL against an existing cache for ad-hoc lookups",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			store, err := cache.Open(cfg.IndexLocation, cfg.IndexSize, cfg.CacheLocation, cfg.CacheSize, pixelslog.Nop())
			if err != nil {
				return err
			}
			defer store.Close()

			reader := cache.NewReader(store, pixelslog.Nop())
			reader.Direct = cfg.CacheReadDirect

			return runRepl(reader)
		},
	}
}

func runRepl(reader *cache.Reader) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("pixelscached inspect REPL. Commands: lookup <blockId> <rowGroupId> <columnId>, quit")

	for {
		input, err := line.Prompt("pixels> ")
		if err != nil {
			return nil
		}
		line.AppendHistory(input)

		var blockID uint64
		var rowGroupID, columnID uint16
		n, scanErr := fmt.Sscanf(input, "lookup %d %d %d", &blockID, &rowGroupID, &columnID)
		if scanErr == nil && n == 3 {
			key := cachekey.Key{BlockID: blockID, RowGroupID: rowGroupID, ColumnID: columnID}
			b, lookupErr := reader.Lookup(context.Background(), key)
			if lookupErr != nil {
				fmt.Println(lookupErr)
				continue
			}
			fmt.Printf("hit: %d bytes\n", len(b))
			continue
		}

		if input == "quit" || input == "exit" {
			return nil
		}

		fmt.Println("unrecognized command")
	}
}
