package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/fragmede/threadview/internal/auth"
	"github.com/fragmede/threadview/internal/config"
)

// passwordEnv supplies the password to login without a prompt.
const passwordEnv = "THREADVIEW_PASSWORD"

func newLoginCmd(cfgPath *string) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to Hacker News and save the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if !cfg.Cache.Enabled {
				return errors.New("login needs the cache to store the session")
			}
			if username == "" {
				return errors.New("--user is required")
			}
			password := os.Getenv(passwordEnv)
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			e, err := newEnv(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			session := auth.NewSession(cfg.API.SiteURL, logger)
			if err := session.Login(ctx, username, password); err != nil {
				return err
			}
			if err := session.Save(ctx, e.db); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}
			logger.Info("session saved", "user", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "HN username")
	return cmd
}
