package chain

import "testing"

func TestParseTxHashAddsPrefix(t *testing.T) {
	raw := "5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
	withPrefix, err := ParseTxHash("0x" + raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	without, err := ParseTxHash(raw)
	if err != nil {
		t.Fatalf("parse without prefix: %v", err)
	}
	if withPrefix != without {
		t.Fatalf("hash mismatch: %s != %s", withPrefix.Hex(), without.Hex())
	}
}

func TestParseTxHashInvalid(t *testing.T) {
	for _, input := range []string{"", "0x1234", "zz"} {
		if _, err := ParseTxHash(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestSameAccount(t *testing.T) {
	if !SameAccount("0xD504D75D5ebfaBEfF8d35658e85bbc52CC66d880", "0xd504d75d5ebfabeff8d35658e85bbc52cc66d880") {
		t.Fatalf("account comparison must ignore case")
	}
	if SameAccount("0x1111111111111111111111111111111111111111", "0x2222222222222222222222222222222222222222") {
		t.Fatalf("distinct accounts compared equal")
	}
}

func TestParseAddress(t *testing.T) {
	if _, err := ParseAddress("not-an-address"); err == nil {
		t.Fatalf("expected error")
	}
	addr, err := ParseAddress(" 0xD504D75D5ebfaBEfF8d35658e85bbc52CC66d880 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !SameAccount(addr.Hex(), "0xd504d75d5ebfabeff8d35658e85bbc52cc66d880") {
		t.Fatalf("address mismatch: %s", addr.Hex())
	}
}
