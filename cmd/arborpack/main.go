// Command arborpack writes an asset directory into a single-file SQLite
// asset pack that arbor can load with -pack.
//
//	arborpack -src assets -out assets.db
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/phanxgames/arbor/resource"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) (err error) {
	fs := flag.NewFlagSet("arborpack", flag.ContinueOnError)
	src := fs.String("src", "assets", "asset directory to pack")
	dst := fs.String("out", "assets.db", "pack file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	info, err := os.Stat(*src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", *src)
	}

	db, err := sql.Open("sqlite", *dst)
	if err != nil {
		return fmt.Errorf("open pack: %w", err)
	}
	defer func() { err = errors.Join(err, db.Close()) }()

	n, err := resource.WritePack(ctx, db, os.DirFS(*src))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "packed %d assets from %s into %s\n", n, *src, *dst)
	return nil
}
