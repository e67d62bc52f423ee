package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/estatebot/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("estatebot setup")
		fmt.Println("Press Enter to keep the value shown in brackets.")
		fmt.Println()

		cfg.Analytics.BaseURL = prompt(scanner, "Analytics service URL", cfg.Analytics.BaseURL)
		cfg.Analytics.TimeoutSeconds = promptInt(scanner, "Request timeout in seconds (0 = none)", cfg.Analytics.TimeoutSeconds)
		cfg.Web.Listen = prompt(scanner, "Web listen address", cfg.Web.Listen)
		cfg.Export.Format = prompt(scanner, "Export format (csv or xlsx)", cfg.Export.Format)
		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

func promptInt(scanner *bufio.Scanner, label string, defaultVal int) int {
	s := prompt(scanner, label, strconv.Itoa(defaultVal))
	n, err := strconv.Atoi(s)
	if err != nil {
		fmt.Printf("  not a number, keeping %d\n", defaultVal)
		return defaultVal
	}
	return n
}
