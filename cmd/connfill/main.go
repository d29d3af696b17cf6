// Command connfill generates the two-armed form of data-access functions
// that accept an optional connection. It is meant to run from go:generate:
//
//	//go:generate go run github.com/fastygo/svckit/cmd/connfill task_repo.conn.go
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fastygo/svckit/internal/connfill"
	"github.com/fastygo/svckit/pkg/logger"
)

var errStale = errors.New("generated file is stale")

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("connfill", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("o", "", "output file (default: template name with .conn.go replaced by _conn.gen.go)")
	check := fs.Bool("check", false, "fail if the output file is missing or out of date instead of writing it")
	verbose := fs.Bool("v", false, "log progress")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: connfill [-o out.go] [-check] template.go")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	level := "warn"
	if *verbose {
		level = "info"
	}
	log, err := logger.New(logger.Config{Level: level, Encoding: "console", Output: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "connfill: %v\n", err)
		return 1
	}
	defer log.Sync()

	template := fs.Arg(0)
	out := *output
	if out == "" {
		out = filepath.Join(filepath.Dir(template), connfill.OutputName(filepath.Base(template)))
	}

	if err := generate(template, out, *check, log); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func generate(template, out string, check bool, log *zap.Logger) error {
	src, err := os.ReadFile(template)
	if err != nil {
		return fmt.Errorf("connfill: %w", err)
	}

	generated, err := connfill.Generate(template, src)
	if err != nil {
		return err
	}

	if check {
		current, err := os.ReadFile(out)
		if err != nil {
			return fmt.Errorf("connfill: %s: %w", out, err)
		}
		if !bytes.Equal(current, generated) {
			return fmt.Errorf("connfill: %s: %w, run go generate", out, errStale)
		}
		log.Info("generated file is up to date", zap.String("file", out))
		return nil
	}

	if err := os.WriteFile(out, generated, 0o644); err != nil {
		return fmt.Errorf("connfill: %w", err)
	}
	log.Info("generated", zap.String("template", template), zap.String("file", out))
	return nil
}
