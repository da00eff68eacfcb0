package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/msomdec/workville/internal/client"
	"github.com/msomdec/workville/internal/domain"
)

const defaultServer = "http://localhost:8080"

// tokenPath is where `workville login` stores the session token.
func tokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "workville", "token"), nil
}

func loadToken(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("WORKVILLE_TOKEN"); v != "" {
		return v, nil
	}
	path, err := tokenPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errors.New("not logged in: run `workville login` first")
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func newLoginCmd() *cobra.Command {
	var server, email, password string
	cmd := &cobra.Command{
		Use:   "login --email <email>",
		Short: "Log in and store a session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("--email is required")
			}
			if password == "" {
				password = os.Getenv("WORKVILLE_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("--password or WORKVILLE_PASSWORD is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), client.DefaultRequestTimeout)
			defer cancel()
			token, err := client.Login(ctx, http.DefaultClient, server, email, password)
			if err != nil {
				return err
			}

			path, err := tokenPath()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("create token dir: %w", err)
			}
			if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
				return fmt.Errorf("write token: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", envOrDefault("WORKVILLE_SERVER", defaultServer), "server base URL")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or WORKVILLE_PASSWORD)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var server, token string
	status := &cobra.Command{Use: "status", Short: "Show or change your presence status"}
	status.PersistentFlags().StringVar(&server, "server", envOrDefault("WORKVILLE_SERVER", defaultServer), "server base URL")
	status.PersistentFlags().StringVar(&token, "token", "", "session token (defaults to the stored login)")

	newController := func() (*client.Controller, error) {
		tok, err := loadToken(token)
		if err != nil {
			return nil, err
		}
		return client.NewController(client.NewHTTPStatusAPI(server, tok, nil)), nil
	}

	status.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show your current status and today's sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := newController()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), client.DefaultRequestTimeout)
			defer cancel()
			if err := ctrl.Load(ctx); err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), ctrl.State())
			return nil
		},
	})

	var workLog string
	set := &cobra.Command{
		Use:       "set <working|break|home>",
		Short:     "Change your status",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.StatusWorking), string(domain.StatusBreak), string(domain.StatusHome)},
		RunE: func(cmd *cobra.Command, args []string) error {
			requested, err := domain.ParseStatus(args[0])
			if err != nil {
				return err
			}
			ctrl, err := newController()
			if err != nil {
				return err
			}
			defer ctrl.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), client.DefaultRequestTimeout)
			defer cancel()
			if err := ctrl.Load(ctx); err != nil {
				return err
			}
			if !ctrl.Request(requested, workLog) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "already %s\n", requested)
				return nil
			}
			ctrl.Wait()

			st := ctrl.State()
			if st.Err != nil {
				return fmt.Errorf("status change to %s failed, still %s: %w", requested, st.Status, st.Err)
			}
			printState(cmd.OutOrStdout(), st)
			return nil
		},
	}
	set.Flags().StringVar(&workLog, "log", "", "work log snapshot sent with a check-out")
	status.AddCommand(set)
	return status
}

func printState(w io.Writer, st client.State) {
	_, _ = fmt.Fprintf(w, "status: %s\n", st.Status)
	snap := st.Snapshot
	if snap == nil {
		return
	}
	if snap.LastUpdated != nil {
		_, _ = fmt.Fprintf(w, "since: %s\n", snap.LastUpdated.Local().Format(time.DateTime))
	}
	_, _ = fmt.Fprintf(w, "today: %dh %02dm across %d session(s)\n",
		snap.TotalDurationMinutes/60, snap.TotalDurationMinutes%60, len(snap.TodaySessions))
	for _, s := range snap.TodaySessions {
		out := "open"
		if s.CheckOutTime != nil {
			out = s.CheckOutTime.Local().Format("15:04")
		}
		_, _ = fmt.Fprintf(w, "  %s  %s - %s\n", s.Date, s.CheckInTime.Local().Format("15:04"), out)
	}
}
