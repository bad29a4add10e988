package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"voxelsculpt.ai/internal/persistence/journal"
)

var errLimit = errors.New("limit reached")

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dir := fs.String("dir", "./data/journal", "history journal directory")
	op := fs.String("op", "", "only entries with this op (commit, undo, save, ...)")
	sinceTick := fs.Uint64("since", 0, "only entries at or after this tick")
	limit := fs.Int("limit", 0, "result limit (0 for all)")
	_ = fs.Parse(args)

	want := strings.ToLower(strings.TrimSpace(*op))
	enc := json.NewEncoder(os.Stdout)
	n := 0
	err := journal.ReadHistory(*dir, func(e journal.Entry) error {
		if want != "" && e.Op != want {
			return nil
		}
		if e.Tick < *sinceTick {
			return nil
		}
		if err := enc.Encode(e); err != nil {
			return err
		}
		n++
		if *limit > 0 && n >= *limit {
			return errLimit
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		fmt.Fprintln(os.Stderr, "read journal:", err)
		os.Exit(1)
	}
}
