package models

// SchemaVersion tags every persisted drop so the stored JSON layout can
// evolve independently of the client crypto scheme version.
const SchemaVersion = 1

// Drop is the server-held record of a single encrypted secret. The
// server only ever sees the AEAD output and its public parameters; the
// decryption key travels in the share URL fragment and never reaches
// this struct.
type Drop struct {
	Schema         int    `json:"schema"`
	EncryptedData  string `json:"encryptedData"`
	IV             string `json:"iv"`
	Salt           string `json:"salt"`
	Version        string `json:"version"`
	CreatedAt      int64  `json:"createdAt"`
	RemainingViews int    `json:"remainingViews"`
	FailedAttempts int    `json:"failedAttempts"`
	BurnTimer      int    `json:"burnTimer,omitempty"`
}
