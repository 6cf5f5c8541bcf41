package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
)

// DedupeKey selects how leads are considered duplicates.
type DedupeKey string

const (
	// DedupeByPhone keys leads by phone number. Every lead without a phone
	// shares the "Not available" key, so only the last of them survives.
	DedupeByPhone DedupeKey = "phone"
	// DedupeByNamePhone keys leads by name and phone together.
	DedupeByNamePhone DedupeKey = "name_phone"
	// DedupeSkipSentinel keys leads by phone but keeps every lead without one.
	DedupeSkipSentinel DedupeKey = "skip_sentinel"
)

// ParseDedupeKey validates a configured dedupe mode.
func ParseDedupeKey(s string) (DedupeKey, error) {
	switch k := DedupeKey(s); k {
	case DedupeByPhone, DedupeByNamePhone, DedupeSkipSentinel:
		return k, nil
	case "":
		return DedupeByPhone, nil
	default:
		return "", eris.Errorf("pipeline: unknown dedupe key %q", s)
	}
}

// Dedupe keeps the last lead seen for each key. The output is ordered by the
// position of each key's last occurrence in leads. It is idempotent and never
// returns more leads than there are distinct keys.
func Dedupe(leads []model.Lead, key DedupeKey) []model.Lead {
	keys := make([]string, len(leads))
	exempt := make([]bool, len(leads))
	last := make(map[string]int, len(leads))
	for i, l := range leads {
		k, ok := dedupeKey(l, key)
		if !ok {
			exempt[i] = true
			continue
		}
		keys[i] = k
		last[k] = i
	}

	out := make([]model.Lead, 0, len(leads))
	for i, l := range leads {
		if exempt[i] || last[keys[i]] == i {
			out = append(out, l)
		}
	}
	return out
}

// dedupeKey returns the key of l, or false when l is exempt from
// deduplication.
func dedupeKey(l model.Lead, key DedupeKey) (string, bool) {
	phone := l.PhoneNumber
	if phone == "" {
		phone = model.PhoneNotAvailable
	}
	switch key {
	case DedupeByNamePhone:
		return "np\x00" + l.Name + "\x00" + phone, true
	case DedupeSkipSentinel:
		if !l.HasPhone() {
			return "", false
		}
		return "p\x00" + phone, true
	default:
		return "p\x00" + phone, true
	}
}
