package crypto

import (
	"bytes"
	"encoding/json"
	"testing"
)

func makeAddress(fill byte) Address {
	raw := bytes.Repeat([]byte{fill}, 20)
	return NewAddress(AccountPrefix, raw)
}

func TestAddressRoundTrip(t *testing.T) {
	addr := makeAddress(0x11)
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: got %s want %s", decoded, addr)
	}
	if err := decoded.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestAddressValidateRejectsForeignPrefix(t *testing.T) {
	addr := NewAddress(AddressPrefix("other"), bytes.Repeat([]byte{0x01}, 20))
	if err := addr.Validate(); err == nil {
		t.Fatalf("expected foreign prefix to be rejected")
	}
	if err := (Address{}).Validate(); err == nil {
		t.Fatalf("expected zero address to be rejected")
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-an-address"); err == nil {
		t.Fatalf("expected decode failure")
	}
}

func TestAddressJSON(t *testing.T) {
	type wrapper struct {
		Owner Address `json:"owner"`
		Empty Address `json:"empty"`
	}
	in := wrapper{Owner: makeAddress(0x22)}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out wrapper
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Owner.Equal(in.Owner) {
		t.Fatalf("owner mismatch: got %s want %s", out.Owner, in.Owner)
	}
	if !out.Empty.IsZero() {
		t.Fatalf("expected empty address to decode as zero")
	}
}

func TestGeneratedKeyAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	if err := addr.Validate(); err != nil {
		t.Fatalf("derived address invalid: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore key: %v", err)
	}
	if !restored.PubKey().Address().Equal(addr) {
		t.Fatalf("restored key derived a different address")
	}
}
