package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"blackout/api/internal/game"
)

type sessionView struct {
	State   game.State `json:"state"`
	Version int64      `json:"version"`
}

func opContext(cmd *cobra.Command, cfg *Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), cfg.timeout)
}

func sessionPath(code string) string {
	return "/api/admin/sessions/" + strings.ToUpper(code)
}

func newMessageCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "message <code> <text>...",
		Short: "Broadcast an operator message to every player in a session.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			ctx, cancel := opContext(cmd, cfg)
			defer cancel()

			var view sessionView
			body := map[string]string{"type": game.AdminMessage, "payload": strings.Join(args[1:], " ")}
			if err := newAdminClient(cfg).do(ctx, http.MethodPost, sessionPath(args[0])+"/command", body, &view); err != nil {
				return err
			}
			fmt.Printf("message delivered to %s (command #%d)\n", view.State.Code, view.State.Admin.ID)
			return nil
		},
	}
}

func newGlitchCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "glitch <code> [effect]",
		Short: "Trigger a visual glitch effect on every client.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			ctx, cancel := opContext(cmd, cfg)
			defer cancel()

			payload := ""
			if len(args) > 1 {
				payload = args[1]
			}
			var view sessionView
			body := map[string]string{"type": game.AdminGlitch, "payload": payload}
			if err := newAdminClient(cfg).do(ctx, http.MethodPost, sessionPath(args[0])+"/command", body, &view); err != nil {
				return err
			}
			fmt.Printf("glitch sent to %s (command #%d)\n", view.State.Code, view.State.Admin.ID)
			return nil
		},
	}
}

func newSkipCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <code>",
		Short: "Force-complete the current step, bypassing the ready vote.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			ctx, cancel := opContext(cmd, cfg)
			defer cancel()

			var view sessionView
			if err := newAdminClient(cfg).do(ctx, http.MethodPost, sessionPath(args[0])+"/skip", nil, &view); err != nil {
				return err
			}
			fmt.Printf("%s advanced to step %d/%d\n", view.State.Code, view.State.Step, view.State.FinalStep)
			return nil
		},
	}
}

func newResetCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <code>",
		Short: "Reset a session to step zero, keeping the roster.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			ctx, cancel := opContext(cmd, cfg)
			defer cancel()

			var view sessionView
			if err := newAdminClient(cfg).do(ctx, http.MethodPost, sessionPath(args[0])+"/reset", nil, &view); err != nil {
				return err
			}
			fmt.Printf("%s reset (%d players kept)\n", view.State.Code, len(view.State.Players))
			return nil
		},
	}
}

func newDeleteCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code>",
		Short: "Archive and remove a session.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			ctx, cancel := opContext(cmd, cfg)
			defer cancel()

			if err := newAdminClient(cfg).do(ctx, http.MethodDelete, sessionPath(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Printf("%s archived and deleted\n", strings.ToUpper(args[0]))
			return nil
		},
	}
}

func newListCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live sessions.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			ctx, cancel := opContext(cmd, cfg)
			defer cancel()

			var resp struct {
				Sessions []struct {
					Code       string `json:"code"`
					Step       int    `json:"step"`
					FinalStep  int    `json:"finalStep"`
					Players    int    `json:"players"`
					Completed  bool   `json:"completed"`
					LastUpdate int64  `json:"lastUpdate"`
				} `json:"sessions"`
			}
			if err := newAdminClient(cfg).do(ctx, http.MethodGet, "/api/admin/sessions", nil, &resp); err != nil {
				return err
			}
			if len(resp.Sessions) == 0 {
				fmt.Println("no live sessions")
				return nil
			}
			fmt.Printf("%-8s %-8s %-8s %-10s %s\n", "CODE", "STEP", "PLAYERS", "STATE", "LAST UPDATE")
			for _, s := range resp.Sessions {
				state := "running"
				if s.Completed {
					state = "complete"
				}
				fmt.Printf("%-8s %d/%-6d %-8d %-10s %s\n",
					s.Code, s.Step, s.FinalStep, s.Players, state,
					time.UnixMilli(s.LastUpdate).Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newArchiveCmd(cfg *Config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "archive [query]",
		Short: "Search archived sessions.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			ctx, cancel := opContext(cmd, cfg)
			defer cancel()

			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			var resp struct {
				Results []struct {
					Code            string `json:"code"`
					Steps           int    `json:"steps"`
					DurationSeconds int64  `json:"durationSeconds"`
					MVP             string `json:"mvp"`
					Reason          string `json:"reason"`
				} `json:"results"`
			}
			params := url.Values{}
			params.Set("query", query)
			params.Set("limit", strconv.Itoa(limit))
			path := "/api/admin/archive?" + params.Encode()
			if err := newAdminClient(cfg).do(ctx, http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			if len(resp.Results) == 0 {
				fmt.Println("no archived sessions matched")
				return nil
			}
			fmt.Printf("%-8s %-6s %-10s %-12s %s\n", "CODE", "STEPS", "DURATION", "REASON", "MVP")
			for _, r := range resp.Results {
				fmt.Printf("%-8s %-6d %-10s %-12s %s\n",
					r.Code, r.Steps, (time.Duration(r.DurationSeconds) * time.Second).String(), r.Reason, r.MVP)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results (env: GAMECTL_LIMIT)")
	return cmd
}

func newDebriefCmd(cfg *Config) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "debrief <code>",
		Short: "Download the mission debrief for a session.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			code := strings.ToUpper(args[0])
			data, _, err := newAdminClient(cfg).download(ctx, sessionPath(code)+"/debrief?format="+format)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("debrief-%s.%s", code, format)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "pdf", "debrief format, pdf or json (env: GAMECTL_FORMAT)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default debrief-<code>.<format>)")
	return cmd
}
