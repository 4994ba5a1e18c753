package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/db"
	"github.com/jonathan/job-extractor/internal/extractor"
)

// readURLText returns the raw URL list: the file when given ("-" is stdin),
// else the arguments one per line, else stdin.
func readURLText(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file == "-":
		return readAll(stdin)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read URL file: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, "\n"), nil
	default:
		return readAll(stdin)
	}
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

// readExcludeFile returns the lines of path, or nothing when path is empty.
func readExcludeFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read exclude file: %w", err)
	}
	return strings.Split(string(data), "\n"), nil
}

// collectURLs reads the URL list and removes excluded entries, including the
// stored ignore list when a database is connected.
func collectURLs(ctx context.Context, database *db.DB, args []string, file, excludeFile string, stdin io.Reader) ([]string, error) {
	text, err := readURLText(args, file, stdin)
	if err != nil {
		return nil, err
	}
	exclude, err := readExcludeFile(excludeFile)
	if err != nil {
		return nil, err
	}
	if database != nil {
		ignored, err := database.IgnoredURLStrings(ctx)
		if err != nil {
			return nil, err
		}
		log.Debug().Int("count", len(ignored)).Msg("loaded ignored URLs")
		exclude = append(exclude, ignored...)
	}

	urls := extractor.ParseURLList(text, exclude)
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs to process")
	}
	return urls, nil
}
