package main

import (
	"errors"
	"fmt"

	"ghost.drop/internal/client"
	"ghost.drop/internal/crypto"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var openKey string

var openCmd = &cobra.Command{
	Use:   "open <share-url|id>",
	Short: "Fetch a drop and decrypt it locally",
	Long: `Fetches the ciphertext for a drop and decrypts it on this machine.

Opening a drop consumes its single view on the server even if
decryption fails afterwards; a failed decryption is reported so the
server can destroy the drop after repeated bad keys.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, keyMaterial, err := client.ParseShareURL(args[0])
		if err != nil {
			return err
		}
		if openKey != "" {
			keyMaterial = openKey
		}
		if keyMaterial == "" {
			return errors.New("no key material: pass a full share URL or --key")
		}

		c := client.New(serverURL)
		env, burnTimer, err := c.Retrieve(cmd.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, client.ErrNotFound):
				return errors.New("drop not found: it may have expired or already been viewed")
			case errors.Is(err, client.ErrGone):
				return errors.New("drop was permanently destroyed after repeated failed decryption attempts")
			}
			return err
		}

		plaintext, err := crypto.Decrypt(env, keyMaterial)
		if err != nil {
			// The view is already spent; let the server count the
			// failure so a guessing attacker burns the drop.
			if rep, reportErr := c.ReportFailedDecrypt(cmd.Context(), id); reportErr == nil && rep.Deleted {
				return errors.New("decryption failed; the drop has been destroyed by policy")
			}
			return fmt.Errorf("decryption failed: wrong key or corrupted data")
		}

		fmt.Fprint(cmd.OutOrStdout(), string(plaintext))
		if burnTimer > 0 {
			color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(),
				"\nThis secret was set to burn %d seconds after viewing. It is already gone from the server.\n", burnTimer)
		}
		return nil
	},
}

func init() {
	openCmd.Flags().StringVarP(&openKey, "key", "k", "", "key material, if not embedded in the share URL fragment")
}
