package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/getsentry/opstractor/internal/envutil"
	"github.com/getsentry/opstractor/internal/errorutil"
	"github.com/getsentry/opstractor/internal/logutil"
	"github.com/getsentry/opstractor/internal/optree"
	"github.com/getsentry/opstractor/internal/opwriter"
)

const (
	formatRows = "rows"

	maxConcurrentReads = 8
)

func usage() {
	fmt.Println("./opsdump <flamegraph|text|rows> <dump>...")
	fmt.Println("a dump is - for stdin, a file path or an object url (gs://bucket/key, file:///dir/key)")
}

// readDumps reads every dump concurrently. Empty dumps are left nil.
func readDumps(ctx context.Context, locations []string) ([]*optree.Op, error) {
	roots := make([]*optree.Op, len(locations))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, location := range locations {
		i, location := i, location
		g.Go(func() error {
			root, err := readDump(ctx, location)
			if errors.Is(err, errorutil.ErrNoResults) {
				log.Warn().Str("dump", location).Msg("skipping empty dump")
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s: %w", location, err)
			}
			roots[i] = root
			return nil
		})
	}
	return roots, g.Wait()
}

func writeDumps(w io.Writer, format string, roots []*optree.Op) error {
	bw := bufio.NewWriter(w)
	for _, root := range roots {
		if root == nil {
			continue
		}
		if format == formatRows {
			if err := writeRows(bw, root); err != nil {
				return err
			}
			continue
		}
		f, err := opwriter.ParseFormat(format)
		if err != nil {
			return err
		}
		ow, err := opwriter.New(f, bw)
		if err != nil {
			return err
		}
		if err := ow.Write(root); err != nil {
			return err
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func main() {
	if err := logutil.ConfigureLogger(envutil.GetEnvOrFallback("LOG_LEVEL", "info"), os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("can't configure logger")
	}

	args := os.Args[1:]
	if len(args) < 2 {
		usage()
		return
	}
	format := args[0]
	if format != formatRows && format != string(opwriter.FormatFlamegraph) && format != string(opwriter.FormatText) {
		usage()
		os.Exit(1)
	}

	roots, err := readDumps(context.Background(), args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("can't read dumps")
	}
	if err := writeDumps(os.Stdout, format, roots); err != nil {
		log.Fatal().Err(err).Msg("can't write dumps")
	}
}
