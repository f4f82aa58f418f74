package ledger_test

import (
	"testing"

	"github.com/jmerrifield20/governance-ledger/internal/ledger"
)

func TestCanonical_sortsKeys(t *testing.T) {
	input := map[string]any{
		"z": map[string]any{"y": "foo", "x": "bar"},
		"a": 1,
	}
	want := `{"a":1,"z":{"x":"bar","y":"foo"}}`

	b, err := ledger.Canonical(input)
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestCanonical_noHTMLEscaping(t *testing.T) {
	b, err := ledger.Canonical(map[string]string{"html": "<b>x</b> &"})
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	if want := `{"html":"<b>x</b> &"}`; string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestCanonical_unicodeUnescaped(t *testing.T) {
	b, err := ledger.Canonical(map[string]string{"s": "Café 日本"})
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	if want := `{"s":"Café 日本"}`; string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestCanonical_numbers(t *testing.T) {
	b, err := ledger.Canonical(map[string]any{"i": 10, "f": 1.5, "e": 1e21, "z": 0.0})
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	if want := `{"e":1e+21,"f":1.5,"i":10,"z":0}`; string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestCanonical_keyOrderIndependent(t *testing.T) {
	a := map[string]any{"kind": "request", "body": map[string]any{"x": 1, "y": 2}}
	b := map[string]any{"body": map[string]any{"y": 2, "x": 1}, "kind": "request"}

	ha, err := ledger.SHA256JSON(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := ledger.SHA256JSON(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Errorf("hash depends on key order: %s vs %s", ha, hb)
	}
}

func TestSHA256Text_knownValue(t *testing.T) {
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := ledger.SHA256Text("hello"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestComputeHash_dependsOnSecret(t *testing.T) {
	args := func(fp string) (string, error) {
		return ledger.ComputeHash(ledger.GenesisHash, "request", "2026-01-01T00:00:00.000000+00:00", "t", nil, fp)
	}
	h1, err := args(ledger.Fingerprint("one"))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := args(ledger.Fingerprint("two"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("hashes under different secrets must differ")
	}

	again, _ := args(ledger.Fingerprint("one"))
	if again != h1 {
		t.Error("ComputeHash is not deterministic")
	}
}

func TestComputeHash_nilBodyEqualsEmpty(t *testing.T) {
	fp := ledger.Fingerprint(testSecret)
	ts := "2026-01-01T00:00:00.000000+00:00"
	h1, err := ledger.ComputeHash(ledger.GenesisHash, "request", ts, "", nil, fp)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ledger.ComputeHash(ledger.GenesisHash, "request", ts, "", map[string]any{}, fp)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Error("nil body and empty body must hash the same")
	}
}
