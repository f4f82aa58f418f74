package ledger

// Reasons reported by a failed verification.
const (
	ReasonMalformedEntry      = "malformed_entry"
	ReasonIndexMismatch       = "index_mismatch"
	ReasonPrevHashMismatch    = "prev_hash_mismatch"
	ReasonHashMismatch        = "hash_mismatch"
	ReasonTimestampRegression = "timestamp_regression"
)

// Verification is the outcome of replaying a chain.
type Verification struct {
	Valid    bool   `json:"valid"`
	Entries  int    `json:"entries"`
	BadIndex int    `json:"bad_index"`
	Reason   string `json:"reason,omitempty"`
	Head     *Head  `json:"head,omitempty"`
}

// OK reports whether the chain verified.
func (v *Verification) OK() bool { return v != nil && v.Valid }

// verifier replays entries one at a time. It holds no reference to the store,
// so every backend feeds it the same way.
type verifier struct {
	fingerprint   string
	expectedIndex int
	prevHash      string
	lastTimestamp string
	head          *Head
	failed        *Verification
}

func newVerifier(fingerprint string) *verifier {
	return &verifier{fingerprint: fingerprint, prevHash: GenesisHash}
}

// malformed records that the entry at the expected position could not be parsed.
func (v *verifier) malformed() {
	v.fail(ReasonMalformedEntry)
}

// check validates e against the running state and advances it. It returns
// false once the chain is known to be broken.
func (v *verifier) check(e *Entry) bool {
	if v.failed != nil {
		return false
	}
	if e.Index != v.expectedIndex {
		v.fail(ReasonIndexMismatch)
		return false
	}
	if e.PrevHash != v.prevHash && !(v.expectedIndex == 0 && e.PrevHash == "") {
		v.fail(ReasonPrevHashMismatch)
		return false
	}
	h, err := hashEntry(e, v.fingerprint)
	if err != nil || h != e.Hash {
		v.fail(ReasonHashMismatch)
		return false
	}
	if v.lastTimestamp != "" && e.Timestamp < v.lastTimestamp {
		v.fail(ReasonTimestampRegression)
		return false
	}

	v.expectedIndex++
	v.prevHash = e.Hash
	v.lastTimestamp = e.Timestamp
	v.head = e.head()
	return true
}

func (v *verifier) fail(reason string) {
	if v.failed != nil {
		return
	}
	v.failed = &Verification{
		Valid:    false,
		Entries:  v.expectedIndex,
		BadIndex: v.expectedIndex,
		Reason:   reason,
		Head:     v.head,
	}
}

// result returns the final verification.
func (v *verifier) result() *Verification {
	if v.failed != nil {
		return v.failed
	}
	return &Verification{Valid: true, Entries: v.expectedIndex, BadIndex: -1, Head: v.head}
}
