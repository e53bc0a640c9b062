package state

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func KeyValidator(k KeyCfg) error {
	err := NameValidator(k.Id)
	if err != nil {
		return fmt.Errorf("key id: %w", err)
	}
	if !k.Type.Valid() {
		return fmt.Errorf("key %s has no valid type", k.Id)
	}
	if len(k.Value) == 0 {
		return fmt.Errorf("key %s has an empty value", k.Id)
	}
	if len(k.Value) > k.Type.MaxKeySize() {
		return fmt.Errorf("key %s is %d bytes long, %s accepts at most %d", k.Id, len(k.Value), k.Type, k.Type.MaxKeySize())
	}
	return nil
}

func ConfigValidator(cfg *Config) error {
	err := NameValidator(cfg.Id)
	if err != nil {
		return err
	}
	if cfg.LogPath != "" {
		err = PathValidator(cfg.LogPath)
		if err != nil {
			return err
		}
	}
	keys := make(map[string]struct{})
	for _, k := range cfg.Keys {
		err = KeyValidator(k)
		if err != nil {
			return err
		}
		if _, ok := keys[k.Id]; ok {
			return fmt.Errorf("duplicate key id %s", k.Id)
		}
		keys[k.Id] = struct{}{}
	}
	ifaces := make(map[string]struct{})
	for _, iface := range cfg.Interfaces {
		err = NameValidator(iface.Name)
		if err != nil {
			return fmt.Errorf("interface name: %w", err)
		}
		if _, ok := ifaces[iface.Name]; ok {
			return fmt.Errorf("duplicate interface %s", iface.Name)
		}
		ifaces[iface.Name] = struct{}{}
		for _, id := range iface.Keys {
			if _, ok := keys[id]; !ok {
				return fmt.Errorf("interface %s references unknown key %s", iface.Name, id)
			}
		}
	}
	for _, p := range slices.Concat(cfg.Export.Include, cfg.Export.Exclude) {
		if !p.IsValid() {
			return fmt.Errorf("invalid export prefix %v", p)
		}
	}
	return nil
}
