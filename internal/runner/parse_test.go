package runner

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{" 0x1111111111111111111111111111111111111111 ", ""})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0] != common.HexToAddress("0x1111111111111111111111111111111111111111") {
		t.Fatalf("unexpected %v", got)
	}
	if _, err := ParseAddresses([]string{"0x12"}); err == nil {
		t.Fatalf("expected error for short address")
	}
}

func TestParseTopic0(t *testing.T) {
	topic := "0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000"
	got, err := ParseTopic0([]string{topic})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0][0] != 0xab {
		t.Fatalf("unexpected %v", got)
	}
	if _, err := ParseTopic0([]string{"0xabcd"}); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestResolveAccount(t *testing.T) {
	alice, err := ResolveAccount("alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	again, _ := ResolveAccount(" alice ")
	bob, _ := ResolveAccount("bob")
	if alice != again || alice == bob || alice == (common.Address{}) {
		t.Fatalf("names must map to stable distinct addresses: %s %s %s", alice.Hex(), again.Hex(), bob.Hex())
	}

	hex := "0x2222222222222222222222222222222222222222"
	if got, _ := ResolveAccount(hex); got != common.HexToAddress(hex) {
		t.Fatalf("hex passthrough mismatch: %s", got.Hex())
	}
	for _, bad := range []string{"", "0x1234"} {
		if _, err := ResolveAccount(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
