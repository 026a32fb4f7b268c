package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "dropctl",
	Short: "Share end-to-end encrypted, self-destructing secrets",
	Long: `dropctl encrypts secrets on your machine and uploads only the
ciphertext. The server can never read them: the decryption key is
carried in the share URL fragment, which is never transmitted.

Every drop self-destructs after a single view, after 24 hours, or
after three failed decryption attempts, whichever comes first.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	_ = godotenv.Load()

	defaultServer := os.Getenv("DROP_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServer, "drop server base URL (env DROP_SERVER)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(burnCmd)
}
