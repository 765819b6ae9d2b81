package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/atelierhq/studioops/internal/db"
	"github.com/atelierhq/studioops/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// settingKeys maps the token names accepted on the command line to their
// settings table keys.
var settingKeys = map[string]string{
	"monday":     models.SettingMondayToken,
	"accounting": models.SettingAccountingToken,
}

func newTokenCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "token <monday|accounting>",
		Short: "Store an API token",
		Long: `Stores an API token in the settings table. The token is read from a
hidden terminal prompt, or from stdin when input is piped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to StudioOps config file")
	return cmd
}

func runToken(cmd *cobra.Command, configPath, name string) error {
	key, ok := settingKeys[name]
	if !ok {
		return fmt.Errorf("unknown token %q (expected monday or accounting)", name)
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	token, err := readToken(cmd, name)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("empty token")
	}

	if err := db.SetSetting(gormDB, key, token); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s token (%d chars)\n", name, len(token))
	return nil
}

// readToken reads the token without echoing when stdin is a terminal, and
// falls back to a plain line read for piped input and tests.
func readToken(cmd *cobra.Command, name string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(cmd.OutOrStdout(), "Enter %s token: ", name)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return "", fmt.Errorf("no token on stdin")
	}
	return strings.TrimSpace(scanner.Text()), nil
}
