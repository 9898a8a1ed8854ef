package types

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAccount is returned when an account identifier cannot be parsed.
var ErrInvalidAccount = errors.New("carbon: invalid account")

// accountLen is the size of an account address in bytes.
const accountLen = 32

// AccountID is a 32-byte account address in canonical form:
// "0x" followed by 64 lowercase hex digits.
type AccountID string

// Blackhole is the reserved all-zero account that sinks retired balance.
// It can receive but never send.
const Blackhole AccountID = "0x0000000000000000000000000000000000000000000000000000000000000000"

// ParseAccountID parses a hex address with or without the "0x" prefix and
// returns it in canonical form.
func ParseAccountID(s string) (AccountID, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidAccount, s, err)
	}
	if len(b) != accountLen {
		return "", fmt.Errorf("%w: %q: want %d bytes, got %d", ErrInvalidAccount, s, accountLen, len(b))
	}
	return AccountFromBytes(b), nil
}

// MustParseAccountID is like ParseAccountID but panics on error.
func MustParseAccountID(s string) AccountID {
	a, err := ParseAccountID(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AccountFromBytes encodes a raw address. The caller guarantees the length.
func AccountFromBytes(b []byte) AccountID {
	return AccountID("0x" + hex.EncodeToString(b))
}

// String returns the canonical address.
func (a AccountID) String() string { return string(a) }

// IsZero reports whether the account is unset.
func (a AccountID) IsZero() bool { return a == "" }

// IsBlackhole reports whether a is the retirement sink.
func (a AccountID) IsBlackhole() bool { return a == Blackhole }

// MarshalText implements encoding.TextMarshaler.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = ""
		return nil
	}
	parsed, err := ParseAccountID(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer.
func (a AccountID) Value() (driver.Value, error) {
	return string(a), nil
}

// Scan implements sql.Scanner.
func (a *AccountID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = ""
		return nil
	case string:
		*a = AccountID(v)
		return nil
	case []byte:
		*a = AccountID(v)
		return nil
	default:
		return fmt.Errorf("types: cannot scan %T into AccountID", src)
	}
}
