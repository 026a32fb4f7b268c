// dropctl is the command-line counterpart of the drop server: it
// performs all encryption and decryption locally and exchanges only
// ciphertext with the server. The key material it prints as a URL
// fragment never goes over the wire.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
