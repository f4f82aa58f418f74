package ledger_test

import (
	"path/filepath"
	"testing"

	"github.com/jmerrifield20/governance-ledger/internal/ledger"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

// TestChainProperties checks that any sequence of appends verifies, and that
// rewriting one stored body afterwards is reported at or before that entry.
func TestChainProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("appended chains verify", prop.ForAll(
		func(values []string) bool {
			l := ledger.NewMemoryLedger(testSecret)
			for i, v := range values {
				if _, err := l.AppendEntry(ctx, "request", map[string]any{"v": v, "i": i}, v); err != nil {
					return false
				}
			}
			res, err := l.VerifyChain(ctx)
			return err == nil && res.OK() && res.Entries == len(values)
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.Property("body tampering is detected", prop.ForAll(
		func(values []string, pick int) bool {
			path := filepath.Join(t.TempDir(), "ledger.jsonl")
			l := ledger.NewFileLedger(ledger.Config{Path: path, Secret: testSecret}, zap.NewNop())
			for _, v := range values {
				if _, err := l.AppendEntry(ctx, "decision", map[string]any{"v": v}, "p"); err != nil {
					return false
				}
			}

			target := pick % len(values)
			lines := readLines(t, path)
			e := decodeLine(t, lines[target])
			e["body"] = map[string]any{"v": values[target] + "!"}
			lines[target] = encodeLine(t, e)
			writeLines(t, path, lines)

			res, err := l.VerifyChain(ctx)
			return err == nil && !res.OK() && res.BadIndex == target
		},
		gen.SliceOfN(5, gen.AlphaString()).SuchThat(func(v []string) bool { return len(v) > 0 }),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
