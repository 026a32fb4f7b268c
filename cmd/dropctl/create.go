package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"ghost.drop/internal/client"
	"ghost.drop/internal/crypto"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	createFile      string
	createBurnTimer int
)

var createCmd = &cobra.Command{
	Use:   "create [message]",
	Short: "Encrypt a secret locally and upload the ciphertext",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plaintext, err := readSecret(args)
		if err != nil {
			return err
		}

		keyMaterial, err := crypto.GenerateKeyMaterial()
		if err != nil {
			return err
		}

		env, err := crypto.Encrypt(plaintext, keyMaterial)
		if err != nil {
			return fmt.Errorf("encrypting secret: %w", err)
		}

		c := client.New(serverURL)
		res, err := c.Upload(cmd.Context(), env, createBurnTimer)
		if err != nil {
			return fmt.Errorf("uploading drop: %w", err)
		}

		green := color.New(color.FgGreen, color.Bold)
		faint := color.New(color.Faint)

		green.Fprintln(cmd.OutOrStdout(), "Drop created.")
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), client.ShareURL(serverURL, res.ID, keyMaterial))
		fmt.Fprintln(cmd.OutOrStdout())
		faint.Fprintf(cmd.OutOrStdout(), "Valid for %s, one view only. The part after '#' is the key; the server never sees it.\n",
			formatSeconds(res.ExpiresIn))
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "read the secret from a file instead of the argument")
	createCmd.Flags().IntVar(&createBurnTimer, "burn-timer", 0, "seconds the recipient gets before the viewed secret self-destructs (0-300)")
}

func readSecret(args []string) ([]byte, error) {
	if createFile != "" {
		data, err := os.ReadFile(createFile)
		if err != nil {
			return nil, fmt.Errorf("reading secret file: %w", err)
		}
		return data, nil
	}

	if len(args) == 1 && args[0] != "-" {
		return []byte(args[0]), nil
	}

	// No argument: read from stdin so secrets stay out of shell history.
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("nothing to encrypt")
	}
	return data, nil
}

func formatSeconds(s int) string {
	switch {
	case s >= 3600:
		return fmt.Sprintf("%dh", s/3600)
	case s >= 60:
		return fmt.Sprintf("%dm", s/60)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
