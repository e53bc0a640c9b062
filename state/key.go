package state

import (
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AuthType names the digest algorithm of a key.
type AuthType uint8

const (
	AuthSHA256 AuthType = iota + 1
	AuthBLAKE2s128
)

// MaxHMACSize is the largest digest produced by any supported algorithm.
const MaxHMACSize = 32

func (t AuthType) String() string {
	switch t {
	case AuthSHA256:
		return "hmac-sha256"
	case AuthBLAKE2s128:
		return "blake2s128"
	}
	return fmt.Sprintf("AuthType(%d)", uint8(t))
}

func (t AuthType) Valid() bool {
	return t == AuthSHA256 || t == AuthBLAKE2s128
}

// DigestSize is the number of authenticator bytes carried on the wire.
func (t AuthType) DigestSize() int {
	switch t {
	case AuthSHA256:
		return 32
	case AuthBLAKE2s128:
		return 16
	}
	panic(fmt.Sprintf("unknown auth type %d", uint8(t)))
}

// MaxKeySize is the longest secret accepted for the algorithm.
func (t AuthType) MaxKeySize() int {
	switch t {
	case AuthSHA256:
		return 64
	case AuthBLAKE2s128:
		return 32
	}
	panic(fmt.Sprintf("unknown auth type %d", uint8(t)))
}

func ParseAuthType(s string) (AuthType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hmac-sha256", "sha256-hmac", "sha256":
		return AuthSHA256, nil
	case "blake2s128", "blake2s128-keyed", "blake2s":
		return AuthBLAKE2s128, nil
	}
	return 0, fmt.Errorf("unknown key type %q", s)
}

func (t AuthType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown auth type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *AuthType) UnmarshalText(text []byte) error {
	v, err := ParseAuthType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Secret is key material, hex encoded in configuration files.
type Secret []byte

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(s)), nil
}

func (s *Secret) UnmarshalText(text []byte) error {
	data, err := hex.DecodeString(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid key value: %w", err)
	}
	*s = data
	return nil
}

// Key is a shared authentication key. Every holder (ring, interface) owns one reference.
type Key struct {
	Id    string
	Type  AuthType
	Value Secret
	refs  int
	dead  bool
}

func NewKey(id string, typ AuthType, value []byte) *Key {
	return &Key{Id: id, Type: typ, Value: slices.Clone(value)}
}

func (k *Key) Retain() *Key {
	if k.dead {
		panic(fmt.Sprintf("retain of destroyed key %s", k.Id))
	}
	k.refs++
	return k
}

// Release drops a reference and reports whether the key was destroyed. The secret is wiped on destruction.
func (k *Key) Release() bool {
	if k.refs <= 0 {
		panic(fmt.Sprintf("release of unreferenced key %s", k.Id))
	}
	k.refs--
	if k.refs > 0 {
		return false
	}
	clear(k.Value)
	k.Value = nil
	k.dead = true
	return true
}

func (k *Key) Refs() int {
	return k.refs
}

func (k *Key) Destroyed() bool {
	return k.dead
}

// KeyRing is the registry of configured keys, indexed by id.
type KeyRing struct {
	keys map[string]*Key
}

func NewKeyRing() *KeyRing {
	return &KeyRing{keys: make(map[string]*Key)}
}

// Add registers k and takes the ring's reference on it.
func (r *KeyRing) Add(k *Key) error {
	if _, ok := r.keys[k.Id]; ok {
		return fmt.Errorf("duplicate key id %s", k.Id)
	}
	r.keys[k.Id] = k.Retain()
	return nil
}

func (r *KeyRing) Get(id string) *Key {
	return r.keys[id]
}

// Remove unregisters the key and drops the ring's reference. Interfaces that still hold it keep it alive.
func (r *KeyRing) Remove(id string) bool {
	k, ok := r.keys[id]
	if !ok {
		return false
	}
	delete(r.keys, id)
	k.Release()
	return true
}

func (r *KeyRing) Len() int {
	return len(r.keys)
}

func (r *KeyRing) Ids() []string {
	return slices.Sorted(maps.Keys(r.keys))
}

// Interface is a network interface and the keys packets on it are signed and checked with.
type Interface struct {
	Name string
	Keys []*Key
}

func (i *Interface) AttachKey(k *Key) {
	if slices.Contains(i.Keys, k) {
		return
	}
	i.Keys = append(i.Keys, k.Retain())
}

func (i *Interface) DetachKey(id string) bool {
	idx := slices.IndexFunc(i.Keys, func(k *Key) bool {
		return k.Id == id
	})
	if idx == -1 {
		return false
	}
	k := i.Keys[idx]
	i.Keys = slices.Delete(i.Keys, idx, idx+1)
	k.Release()
	return true
}

func (i *Interface) DetachAll() {
	for _, k := range i.Keys {
		k.Release()
	}
	i.Keys = nil
}
