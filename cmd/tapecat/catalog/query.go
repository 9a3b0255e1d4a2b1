// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/bureau-foundation/tapecat/cmd/tapecat/cli"
	"github.com/bureau-foundation/tapecat/lib/hashlist"
	"github.com/bureau-foundation/tapecat/lib/search"
)

// --- search ---

type searchParams struct {
	cli.Archive
	cli.JSONOutput
	Tape  string `json:"tape"  flag:"tape,t"  desc:"limit the search to one tape"`
	Limit int    `json:"limit" flag:"limit,n" desc:"maximum results (0 uses catalog.search_limit)"`
}

func (p *searchParams) options(limit int) search.SearchOptions {
	return search.SearchOptions{Tape: p.Tape, Limit: limit}
}

func searchCommand(out io.Writer) *cli.Command {
	var params searchParams

	return &cli.Command{
		Name:    "search",
		Summary: "Find files by shell glob",
		Description: `Match a shell glob against cataloged paths, ignoring case.

The pattern supports *, ?, [...] and backslash escapes. It is matched
against the whole path within the tape; a pattern without a slash also
matches the file name alone, so '*.mov' finds QuickTime files in any
directory.`,
		Usage: "tapecat catalog search <pattern> [flags]",
		Examples: []cli.Example{
			{
				Description: "Find QuickTime files on every tape",
				Command:     "tapecat catalog search '*.mov'",
			},
			{
				Description: "Find a project directory's files on one tape",
				Command:     "tapecat catalog search 'projects/2024-*/*' --tape LTO004",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			if len(args) != 1 {
				return cli.Validation("expected one pattern, got %d arguments", len(args))
			}
			if _, err := search.CompileGlob(args[0]); err != nil {
				return cli.Validation("invalid pattern: %w", err)
			}
			environment, store, closer, err := openCatalog(&params.Archive, "catalog search")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)

			entries, err := store.Search(ctx, args[0], params.options(environment.SearchLimit(params.Limit)))
			if err != nil {
				return queryError(err)
			}
			return writeEntries(out, &params.JSONOutput, entries, fmt.Sprintf("No files matching %q", args[0]))
		},
	}
}

// writeEntries emits entries as JSON or as a table. empty is printed
// instead of the table when there are none.
func writeEntries(out io.Writer, output *cli.JSONOutput, entries []search.Entry, empty string) error {
	if done, err := output.EmitJSON(out, toEntryOutputs(entries)); done {
		return err
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, empty)
		return err
	}
	return writeEntryTable(out, entries)
}

// --- fts ---

func fullTextCommand(out io.Writer) *cli.Command {
	var params searchParams

	return &cli.Command{
		Name:    "fts",
		Summary: "Find files by path words",
		Description: `Search path words with the full-text index, best matches first.

Paths are split into words at every character that is not a letter or
digit, so "Final_Cut/reel-02.mov" holds the words final, cut, reel, 02
and mov. Words separated by spaces (or AND) must all appear; OR
separates alternatives and binds more loosely than AND.`,
		Usage: "tapecat catalog fts <words>... [flags]",
		Examples: []cli.Example{
			{
				Description: "Find the final reels of any project",
				Command:     "tapecat catalog fts final reel",
			},
			{
				Description: "Find raw camera files of either format",
				Command:     "tapecat catalog fts raw braw OR raw r3d",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			query := strings.Join(args, " ")
			if _, err := search.ParseFullText(query); err != nil {
				return cli.Validation("invalid query: %w", err)
			}
			environment, store, closer, err := openCatalog(&params.Archive, "catalog fts")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)

			entries, err := store.SearchFullText(ctx, query, params.options(environment.SearchLimit(params.Limit)))
			if err != nil {
				return queryError(err)
			}
			return writeEntries(out, &params.JSONOutput, entries, fmt.Sprintf("No files matching %q", query))
		},
	}
}

// --- fuzzy ---

type fuzzyParams struct {
	cli.Archive
	cli.JSONOutput
	Tape  string `json:"tape"  flag:"tape,t"  desc:"limit the search to one tape"`
	Limit int    `json:"limit" flag:"limit,n" desc:"maximum results" default:"20"`
}

func fuzzyCommand(out io.Writer) *cli.Command {
	var params fuzzyParams

	return &cli.Command{
		Name:    "fuzzy",
		Summary: "Find files by approximate name",
		Description: `Rank every cataloged path against an approximate query, the way fzf
does. Each path is scored with its tape name in front, so a query can
name the tape and the file together.

Matching ignores case unless the query contains an upper-case letter.`,
		Usage: "tapecat catalog fuzzy <query> [flags]",
		Examples: []cli.Example{
			{
				Description: "Find the final edit of the harbour project on LTO003",
				Command:     "tapecat catalog fuzzy 'lto3 harbour final'",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			query := strings.Join(args, " ")
			if strings.TrimSpace(query) == "" {
				return cli.Validation("a query is required")
			}
			_, store, closer, err := openCatalog(&params.Archive, "catalog fuzzy")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)

			results, err := search.NewEngine(store).Execute(ctx,
				search.Query{Kind: search.KindFuzzy, Text: query},
				search.SearchOptions{Tape: params.Tape, Limit: params.Limit})
			if err != nil {
				return queryError(err)
			}
			return writeFuzzy(out, &params.JSONOutput, results, query)
		},
	}
}

func writeFuzzy(out io.Writer, output *cli.JSONOutput, results *search.Results, query string) error {
	outputs := toEntryOutputs(results.Entries)
	for i := range outputs {
		outputs[i].Score = results.Fuzzy[i].Score
	}
	if done, err := output.EmitJSON(out, outputs); done {
		return err
	}
	if len(outputs) == 0 {
		_, err := fmt.Fprintf(out, "No files matching %q\n", query)
		return err
	}
	for i, entry := range results.Entries {
		fmt.Fprintf(out, "%5d  %s:%s\n", results.Fuzzy[i].Score, entry.Tape, entry.Path)
	}
	return nil
}

// --- hash ---

type hashParams struct {
	cli.Archive
	cli.JSONOutput
}

func hashCommand(out io.Writer) *cli.Command {
	var params hashParams

	return &cli.Command{
		Name:    "hash",
		Summary: "Find archived copies of a file's content",
		Description: `Look up content by XXH64 hash, as recorded in imported hash lists.

The argument is either a 16-digit hexadecimal digest or a local file,
which is hashed first. This answers "is this file already on tape?".
Exits with status 1 when no cataloged file has the hash.`,
		Usage: "tapecat catalog hash <digest|file> [flags]",
		Examples: []cli.Example{
			{
				Description: "Check whether a local file was archived",
				Command:     "tapecat catalog hash ~/Downloads/interview.wav",
			},
			{
				Description: "Look up a digest from a hash list",
				Command:     "tapecat catalog hash 8c3f3c0a1e9f7b21",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			if len(args) != 1 {
				return cli.Validation("expected a digest or a file, got %d arguments", len(args))
			}
			digest, err := digestOf(args[0])
			if err != nil {
				return err
			}
			_, store, closer, err := openCatalog(&params.Archive, "catalog hash")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)

			entries, err := store.FindByHash(ctx, digest)
			if err != nil {
				return queryError(err)
			}
			if err := writeEntries(out, &params.JSONOutput, entries, fmt.Sprintf("No cataloged file has hash %s", digest)); err != nil {
				return err
			}
			if len(entries) == 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// digestOf returns argument when it is a hex digest, or the digest of
// the regular file it names.
func digestOf(argument string) (string, error) {
	if info, err := os.Stat(argument); err == nil && info.Mode().IsRegular() {
		digest, err := hashlist.HashFile(argument)
		if err != nil {
			return "", cli.Internal("%w", err)
		}
		return digest, nil
	}
	if isDigest(argument) {
		return strings.ToLower(argument), nil
	}
	return "", cli.Validation("%q is neither a 16-digit hex digest nor a readable file", argument)
}

func isDigest(text string) bool {
	if len(text) != 16 {
		return false
	}
	_, err := strconv.ParseUint(text, 16, 64)
	return err == nil
}

// --- dupes ---

type dupesParams struct {
	cli.Archive
	cli.JSONOutput
	MinSize cli.ByteSize `json:"min_size" flag:"min-size" desc:"ignore files smaller than this (e.g. 100MB)"`
}

func dupesCommand(out io.Writer) *cli.Command {
	var params dupesParams

	return &cli.Command{
		Name:    "dupes",
		Summary: "List files archived more than once",
		Description: `Group cataloged files by content hash and list every hash with two
or more copies. Only files with a hash (from an imported hash list)
take part. The size threshold applies to each file before grouping.`,
		Usage: "tapecat catalog dupes [flags]",
		Examples: []cli.Example{
			{
				Description: "Duplicates of at least 100 MB",
				Command:     "tapecat catalog dupes --min-size 100MB",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			if len(args) != 0 {
				return cli.Validation("unexpected arguments: %s", strings.Join(args, " "))
			}
			_, store, closer, err := openCatalog(&params.Archive, "catalog dupes")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)

			groups, err := store.FindDuplicates(ctx, int64(params.MinSize))
			if err != nil {
				return queryError(err)
			}
			if done, err := params.EmitJSON(out, toGroupOutputs(groups)); done {
				return err
			}
			if len(groups) == 0 {
				_, err := fmt.Fprintln(out, "No duplicates found")
				return err
			}
			return writeGroups(out, groups)
		},
	}
}

// --- query ---

type queryParams struct {
	cli.Archive
	cli.JSONOutput
	Tape  string `json:"tape"  flag:"tape,t"  desc:"limit the query to one tape"`
	Limit int    `json:"limit" flag:"limit,n" desc:"maximum results (0 uses catalog.search_limit)"`
}

// queryOutput is the JSON form of a query result. Exactly one of
// Entries and Groups is set.
type queryOutput struct {
	Kind    search.Kind   `json:"kind"`
	Entries []entryOutput `json:"entries,omitempty"`
	Groups  []groupOutput `json:"groups,omitempty"`
}

func queryCommand(out io.Writer) *cli.Command {
	var params queryParams

	return &cli.Command{
		Name:    "query",
		Summary: "Run a prefixed one-line query",
		Description: `Evaluate one query line. A prefix selects the kind of query:

  glob:<pattern>   shell glob (the default without a prefix)
  fts:<words>      full-text path words
  hash:<digest>    XXH64 content hash
  dupes:<size>     duplicate groups, optional size threshold
  fuzzy:<text>     approximate match

This is the form saved searches and scripts use.`,
		Usage: "tapecat catalog query <query> [flags]",
		Examples: []cli.Example{
			{
				Description: "Duplicates of at least 1 GiB",
				Command:     "tapecat catalog query dupes:1GiB",
			},
			{
				Description: "Full-text query restricted to one tape",
				Command:     "tapecat catalog query 'fts:interview OR b-roll' --tape LTO002",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) (err error) {
			query, err := search.ParseQuery(strings.Join(args, " "))
			if err != nil {
				return cli.Validation("invalid query: %w", err)
			}
			environment, store, closer, err := openCatalog(&params.Archive, "catalog query")
			if err != nil {
				return err
			}
			defer closeWith(&err, closer)

			options := search.SearchOptions{Tape: params.Tape, Limit: environment.SearchLimit(params.Limit)}
			results, err := search.NewEngine(store).Execute(ctx, query, options)
			if err != nil {
				return queryError(err)
			}

			switch query.Kind {
			case search.KindDuplicates:
				if done, err := params.EmitJSON(out, queryOutput{Kind: query.Kind, Groups: toGroupOutputs(results.Groups)}); done {
					return err
				}
				if len(results.Groups) == 0 {
					_, err := fmt.Fprintln(out, "No duplicates found")
					return err
				}
				return writeGroups(out, results.Groups)
			case search.KindFuzzy:
				return writeFuzzy(out, &params.JSONOutput, results, query.Text)
			}
			if done, err := params.EmitJSON(out, queryOutput{Kind: query.Kind, Entries: toEntryOutputs(results.Entries)}); done {
				return err
			}
			if len(results.Entries) == 0 {
				_, err := fmt.Fprintf(out, "No files matching %q\n", query.Text)
				return err
			}
			return writeEntryTable(out, results.Entries)
		},
	}
}
