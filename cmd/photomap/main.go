// Command photomap is a thin command-line collaborator for the photomap
// library: it scans folders, maintains the combined cache and prints
// groups and clusters. It stands in for the graphical presentation layer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hupe1980/photomap"
	"github.com/hupe1980/photomap/model"
)

const usage = `usage: photomap [flags] <command> [args]

commands:
  scan <dir>        scan one folder inside the root
  unscanned         list folders with images but no cache yet
  rebuild           rebuild the combined dataset
  invalidate        delete the combined dataset and manifest
  groups            print groups for the selected mode
  clusters <label>  print clusters for one group label
`

func main() {
	// .env keys: PHOTOMAP_ROOT, PHOTOMAP_USER_AGENT, PHOTOMAP_CLUSTER_DISTANCE
	_ = godotenv.Load()

	root := flag.String("root", os.Getenv("PHOTOMAP_ROOT"), "photo root directory")
	userAgent := flag.String("user-agent", os.Getenv("PHOTOMAP_USER_AGENT"), "geocoding caller identity")
	distance := flag.Float64("distance", envFloat("PHOTOMAP_CLUSTER_DISTANCE", photomap.DefaultClusterDistance), "cluster distance in meters")
	mode := flag.String("mode", "folder", "grouping mode: folder, year, month")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := photomap.NewTextLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *root, *userAgent, *distance, *mode, flag.Args()); err != nil {
		logger.Error("photomap failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *photomap.Logger, root, userAgent string, distance float64, modeName string, args []string) error {
	mode, err := parseMode(modeName)
	if err != nil {
		return err
	}

	opts := []photomap.Option{
		photomap.WithLogger(logger),
		photomap.WithClusterDistance(distance),
	}
	if userAgent != "" {
		opts = append(opts, photomap.WithUserAgent(userAgent))
	}

	session, err := photomap.Open(root, opts...)
	if err != nil {
		return err
	}

	switch cmd := args[0]; cmd {
	case "scan":
		if len(args) < 2 {
			return fmt.Errorf("scan requires a folder argument")
		}
		count, err := session.ScanFolder(ctx, args[1], func(done, total int, path string) {
			if total > 0 && (done%25 == 0 || done == total) {
				fmt.Fprintf(os.Stderr, "scanned %d/%d\n", done, total)
			}
		})
		if err != nil {
			return err
		}
		fmt.Printf("%d record(s) in folder cache\n", count)
		return nil

	case "unscanned":
		folders, err := session.UnscannedFolders()
		if err != nil {
			return err
		}
		for _, dir := range folders {
			fmt.Println(dir)
		}
		return nil

	case "rebuild":
		rows, err := session.RebuildDataset(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d row(s) in combined dataset\n", len(rows))
		return nil

	case "invalidate":
		return session.ForceInvalidate()

	case "groups":
		groups, warnings, err := session.Groups(ctx, mode)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, "warning:", w)
		}
		for _, g := range groups {
			fmt.Printf("%s\t%d\n", g.Label, g.Count)
		}
		return nil

	case "clusters":
		if len(args) < 2 {
			return fmt.Errorf("clusters requires a group label argument")
		}
		clusters, err := session.Clusters(ctx, mode, args[1])
		if err != nil {
			return err
		}
		for _, c := range clusters {
			fmt.Printf("#%d\t%d photo(s)\t(%.5f, %.5f)\n", c.ID, c.Count, c.Centroid.Lat, c.Centroid.Lon)
		}
		return nil

	default:
		return fmt.Errorf("unknown command: %q", cmd)
	}
}

func parseMode(name string) (model.GroupMode, error) {
	switch name {
	case "folder":
		return model.GroupByFolder, nil
	case "year":
		return model.GroupByFolderYear, nil
	case "month":
		return model.GroupByFolderYearMonth, nil
	default:
		return 0, fmt.Errorf("unknown grouping mode: %q", name)
	}
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
