package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"bitcoindrpc/internal/config"
	"bitcoindrpc/internal/gen"
	"bitcoindrpc/internal/logging"
	"bitcoindrpc/internal/procedure"
)

func main() {
	tablePath := flag.String("table", "", "YAML procedure table (default: built-in bitcoind table)")
	pkg := flag.String("pkg", gen.DefaultPackage, "package name of the generated file")
	out := flag.String("out", "", "output file (default: stdout)")
	flag.Parse()

	logger := logging.New(config.LogLevelNormal, os.Stderr)

	if err := run(*tablePath, *pkg, *out, logger); err != nil {
		logger.Fatal().Err(err).Msg("generation failed")
	}
}

func run(tablePath, pkg, out string, logger zerolog.Logger) error {
	table := procedure.Default()
	if tablePath != "" {
		t, err := procedure.LoadFile(tablePath)
		if err != nil {
			return err
		}
		table = t
	}

	src, err := gen.Generate(table, gen.Options{Package: pkg})
	if err != nil {
		return err
	}

	if out == "" {
		_, err = os.Stdout.Write(src)
		return err
	}
	if err := os.WriteFile(out, src, 0o644); err != nil {
		return err
	}

	logger.Info().
		Str("file", out).
		Int("procedures", table.Len()).
		Msg("wrote procedure wrappers")
	return nil
}
