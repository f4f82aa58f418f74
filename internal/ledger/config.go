package ledger

// Defaults applied to zero-valued Config fields.
const (
	DefaultPath          = "data/governance_ledger.jsonl"
	DefaultPreviewLength = 256

	// DevSecret is the insecure development signing secret. Production
	// deployments must configure their own.
	DevSecret = "governance-ledger-dev-secret"
)

// Config holds the ledger settings a process resolves at startup.
// NewFileLedger takes the whole Config. The memory and Postgres backends take
// only Secret, and PreviewLength is passed to NewRecorder.
type Config struct {
	// Path is the JSONL file used by FileLedger.
	Path string

	// Secret is fingerprinted into every entry hash. A chain only verifies
	// with the secret that wrote it.
	Secret string

	// PreviewLength is how many characters of model output a Recorder keeps.
	PreviewLength int
}

// DefaultConfig returns a Config populated with development defaults.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Secret == "" {
		c.Secret = DevSecret
	}
	if c.PreviewLength <= 0 {
		c.PreviewLength = DefaultPreviewLength
	}
	return c
}
