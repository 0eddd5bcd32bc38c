package matrix

import (
	"fmt"
	"strings"
)

// Toggle enables or disables one on-disk feature. Disabled toggles are written
// with a leading caret, the way mke2fs spells them.
type Toggle struct {
	Name   string
	Enable bool
}

func ParseToggle(s string) (Toggle, error) {
	s = strings.TrimSpace(s)
	enable := !strings.HasPrefix(s, "^")
	name := strings.TrimPrefix(s, "^")

	if name == "" {
		return Toggle{}, fmt.Errorf("%w: %q", ErrInvalidFeature, s)
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return Toggle{}, fmt.Errorf("%w: %q", ErrInvalidFeature, s)
		}
	}

	return Toggle{Name: name, Enable: enable}, nil
}

func (t Toggle) String() string {
	if t.Enable {
		return t.Name
	}
	return "^" + t.Name
}

// Features is an ordered set of toggles. A feature appears at most once.
type Features []Toggle

// ParseFeatures keeps the first occurrence of every toggle; repeating a toggle
// is a no-op, flipping it is an error.
func ParseFeatures(list []string) (Features, error) {
	var features Features
	seen := make(map[string]bool, len(list))

	for _, s := range list {
		toggle, err := ParseToggle(s)
		if err != nil {
			return nil, err
		}

		enable, ok := seen[toggle.Name]
		if !ok {
			seen[toggle.Name] = toggle.Enable
			features = append(features, toggle)
			continue
		}
		if enable != toggle.Enable {
			return nil, fmt.Errorf("%w: %s", ErrContradictoryFeature, toggle.Name)
		}
	}

	return features, nil
}

func (f Features) Enabled(name string) bool {
	for _, t := range f {
		if t.Name == name {
			return t.Enable
		}
	}
	return false
}

func (f Features) Disabled(name string) bool {
	for _, t := range f {
		if t.Name == name {
			return !t.Enable
		}
	}
	return false
}

// Strings returns the toggles in mke2fs -O notation.
func (f Features) Strings() []string {
	out := make([]string, len(f))
	for i, t := range f {
		out[i] = t.String()
	}
	return out
}
