package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// saveReply is the body of POST /admin/v1/save.
type saveReply struct {
	OK      bool   `json:"ok"`
	Version uint64 `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// saveCmd asks a running editor to persist its unsaved edits.
func saveCmd(args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "editor base url")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	rep, err := requestSave(ctx, http.DefaultClient, *baseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "save:", err)
		os.Exit(1)
	}
	fmt.Printf("saved version %d\n", rep.Version)
}

func requestSave(ctx context.Context, cl *http.Client, baseURL string) (saveReply, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/v1/save"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return saveReply{}, err
	}
	resp, err := cl.Do(req)
	if err != nil {
		return saveReply{}, err
	}
	defer resp.Body.Close()

	var rep saveReply
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return saveReply{}, fmt.Errorf("%s: %w", resp.Status, err)
	}
	if !rep.OK {
		if rep.Error == "" {
			return rep, errors.New(resp.Status)
		}
		return rep, errors.New(rep.Error)
	}
	return rep, nil
}
