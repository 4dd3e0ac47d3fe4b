package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var targetTypePattern = regexp.MustCompile(`^[A-Za-z]+$`)

type target struct {
	IssueID int64
	Type    string
	ID      int64
}

func (t target) path(suffix string) string {
	return fmt.Sprintf("/issues/api/%d/unmap/%s/%d%s", t.IssueID, t.Type, t.ID, suffix)
}

func parseTarget(args []string) (target, error) {
	issueID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || issueID <= 0 {
		return target{}, withCode(exitUsage, fmt.Errorf("invalid issue id %q", args[0]))
	}
	if !targetTypePattern.MatchString(args[1]) {
		return target{}, withCode(exitUsage, fmt.Errorf("invalid target type %q", args[1]))
	}
	id, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || id <= 0 {
		return target{}, withCode(exitUsage, fmt.Errorf("invalid target id %q", args[2]))
	}
	return target{IssueID: issueID, Type: args[1], ID: id}, nil
}

type stubView struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type unmapResult struct {
	State struct {
		Modal struct {
			Open  bool   `json:"open"`
			Title string `json:"title"`
		} `json:"modalState"`
		RelatedAudit     *stubView  `json:"relatedAudit"`
		RelatedSnapshots []stubView `json:"relatedSnapshots"`
		Paging           struct {
			Current int `json:"current"`
			Count   int `json:"count"`
			Total   int `json:"total"`
		} `json:"paging"`
	} `json:"state"`
	Events   []string `json:"events"`
	Navigate string   `json:"navigate,omitempty"`
	Flash    []struct {
		Error   string `json:"error,omitempty"`
		Success string `json:"success,omitempty"`
		Notice  string `json:"notice,omitempty"`
	} `json:"flash"`
}

type outputOptions struct {
	Format string
}

func (o *outputOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Format, "output", "o", "json", "output format: json or text")
}

func (o *outputOptions) validate() error {
	switch o.Format {
	case "json", "text":
		return nil
	default:
		return withCode(exitUsage, fmt.Errorf("unsupported --output %q", o.Format))
	}
}

func (o *outputOptions) write(w io.Writer, res *unmapResult, raw map[string]any) error {
	if o.Format == "json" {
		return writeJSONLine(w, raw)
	}
	return writeText(w, res)
}

func writeText(w io.Writer, res *unmapResult) error {
	var b strings.Builder
	state := res.State
	if state.Modal.Title != "" {
		fmt.Fprintf(&b, "%s (open=%t)\n", state.Modal.Title, state.Modal.Open)
	}
	if state.RelatedAudit != nil {
		fmt.Fprintf(&b, "audit: %s #%d %s\n", state.RelatedAudit.Type, state.RelatedAudit.ID, state.RelatedAudit.Title)
	}
	for _, s := range state.RelatedSnapshots {
		fmt.Fprintf(&b, "  %s #%d %s\n", s.Type, s.ID, s.Title)
	}
	if state.Paging.Count > 0 {
		fmt.Fprintf(&b, "page %d/%d, %d related\n", state.Paging.Current, state.Paging.Count, state.Paging.Total)
	}
	for _, e := range res.Events {
		fmt.Fprintf(&b, "event: %s\n", e)
	}
	if res.Navigate != "" {
		fmt.Fprintf(&b, "navigate: %s\n", res.Navigate)
	}
	for _, f := range res.Flash {
		switch {
		case f.Error != "":
			fmt.Fprintf(&b, "error: %s\n", f.Error)
		case f.Success != "":
			fmt.Fprintf(&b, "success: %s\n", f.Success)
		case f.Notice != "":
			fmt.Fprintf(&b, "notice: %s\n", f.Notice)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// call runs one unmap endpoint and decodes the answer twice: loosely for
// json output and typed for text output.
func call(ctx context.Context, opts *globalOptions, method, path string, query url.Values) (*unmapResult, map[string]any, error) {
	client, err := newConsoleClient(opts)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var raw map[string]any
	if _, err := client.do(ctx, method, path, query, &raw); err != nil {
		return nil, nil, err
	}
	var res unmapResult
	if err := remarshal(raw, &res); err != nil {
		return nil, nil, withCode(exitAPI, err)
	}
	return &res, raw, nil
}

func newRelatedCmd(opts *globalOptions) *cobra.Command {
	var out outputOptions
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "related <issue-id> <target-type> <target-id>",
		Short: "List the snapshots that are unmapped together with the issue",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.validate(); err != nil {
				return err
			}
			t, err := parseTarget(args)
			if err != nil {
				return err
			}
			q := url.Values{}
			if page > 0 {
				q.Set("page", strconv.Itoa(page))
			}
			if pageSize > 0 {
				q.Set("pageSize", strconv.Itoa(pageSize))
			}
			res, raw, err := call(cmd.Context(), opts, http.MethodGet, t.path("/related"), q)
			if err != nil {
				return err
			}
			return out.write(cmd.OutOrStdout(), res, raw)
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "1-based page of related snapshots")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "page size, one of the console's configured choices")
	out.bind(cmd)
	return cmd
}

func newClickCmd(opts *globalOptions) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "click <issue-id> <target-type> <target-id>",
		Short: "Press the unmap button: opens the modal or unmaps right away",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.validate(); err != nil {
				return err
			}
			t, err := parseTarget(args)
			if err != nil {
				return err
			}
			res, raw, err := call(cmd.Context(), opts, http.MethodPost, t.path("/click"), nil)
			if err != nil {
				return err
			}
			return out.write(cmd.OutOrStdout(), res, raw)
		},
	}
	out.bind(cmd)
	return cmd
}

func newUnmapCmd(opts *globalOptions) *cobra.Command {
	var out outputOptions
	var pageType string
	var pageID int64

	cmd := &cobra.Command{
		Use:   "unmap <issue-id> <target-type> <target-id>",
		Short: "Delete the relationship between the issue and the target",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.validate(); err != nil {
				return err
			}
			t, err := parseTarget(args)
			if err != nil {
				return err
			}
			if (pageType == "") != (pageID == 0) {
				return withCode(exitUsage, fmt.Errorf("--page-type and --page-id must be set together"))
			}
			q := url.Values{}
			if pageType != "" {
				q.Set("page_type", pageType)
				q.Set("page_id", strconv.FormatInt(pageID, 10))
			}
			res, raw, err := call(cmd.Context(), opts, http.MethodPost, t.path(""), q)
			if err != nil {
				return err
			}
			return out.write(cmd.OutOrStdout(), res, raw)
		},
	}
	cmd.Flags().StringVar(&pageType, "page-type", "", "type of the object whose page the operator is on")
	cmd.Flags().Int64Var(&pageID, "page-id", 0, "id of the object whose page the operator is on")
	out.bind(cmd)
	return cmd
}
