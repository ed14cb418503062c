package sanitize

import (
	"fmt"
	"net/netip"
	"strings"
	"unicode"
)

// MaskType names a value format with its own masking rule.
type MaskType string

// Supported mask types.
const (
	MaskSSN   MaskType = "ssn"   // 123-45-6789 -> ***-**-6789
	MaskEmail MaskType = "email" // alice@example.com -> a***@example.com
	MaskPhone MaskType = "phone" // (555) 123-4567 -> (***) ***-4567
	MaskCard  MaskType = "card"  // 4111111111111111 -> ************1111
	MaskIP    MaskType = "ip"    // 192.168.1.100 -> 192.168.xxx.xxx
	MaskUUID  MaskType = "uuid"  // 550e8400-e29b-... -> 550e8400-****-****-****-************
	MaskIBAN  MaskType = "iban"  // GB82WEST12345698765432 -> GB82**************5432
	MaskName  MaskType = "name"  // John Smith -> J*** S****
)

// Masker hides part of a value while keeping it recognizable.
// Values that do not look like the format are starred out entirely.
type Masker func(value string) string

var maskers = map[MaskType]Masker{
	MaskSSN:   maskSSN,
	MaskEmail: maskEmail,
	MaskPhone: maskPhone,
	MaskCard:  maskCard,
	MaskIP:    maskIP,
	MaskUUID:  maskUUID,
	MaskIBAN:  maskIBAN,
	MaskName:  maskName,
}

// MaskerFor returns the masker for t.
func MaskerFor(t MaskType) (Masker, error) {
	m, ok := maskers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMaskType, t)
	}
	return m, nil
}

func stars(n int) string {
	return strings.Repeat("*", n)
}

func digitsOf(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// lastDigits returns the final four digits of s, or false when s has fewer.
func lastDigits(s string) (string, int, bool) {
	d := digitsOf(s)
	if len(d) < 4 {
		return "", len(d), false
	}
	return d[len(d)-4:], len(d), true
}

func maskSSN(v string) string {
	last, _, ok := lastDigits(v)
	if !ok {
		return stars(len(v))
	}
	return "***-**-" + last
}

func maskEmail(v string) string {
	at := strings.LastIndexByte(v, '@')
	if at < 1 {
		return stars(len(v))
	}
	return v[:1] + "***" + v[at:]
}

func maskPhone(v string) string {
	last, n, ok := lastDigits(v)
	switch {
	case !ok:
		return stars(len(v))
	case n >= 10 && strings.HasPrefix(v, "("):
		return "(***) ***-" + last
	case n >= 10:
		return "***-***-" + last
	}
	return "***-" + last
}

func maskCard(v string) string {
	last, n, ok := lastDigits(v)
	if !ok {
		return stars(len(v))
	}
	sep := ""
	switch {
	case strings.ContainsRune(v, ' '):
		sep = " "
	case strings.ContainsRune(v, '-'):
		sep = "-"
	default:
		return stars(n-4) + last
	}
	groups := make([]string, 0, (n-4+3)/4+1)
	for range (n - 4 + 3) / 4 {
		groups = append(groups, "****")
	}
	return strings.Join(append(groups, last), sep)
}

// maskIP keeps the network half of an address: two octets of IPv4, the
// first four groups of IPv6 written in full form.
func maskIP(v string) string {
	if parts := strings.Split(v, "."); len(parts) == 4 {
		return parts[0] + "." + parts[1] + ".xxx.xxx"
	}
	addr, err := netip.ParseAddr(v)
	if err != nil || !addr.Is6() {
		return stars(len(v))
	}
	b := addr.As16()
	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x:%02x%02x:xxxx:xxxx:xxxx:xxxx",
		b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7])
}

func maskUUID(v string) string {
	parts := strings.Split(v, "-")
	if len(parts) != 5 {
		return stars(len(v))
	}
	return parts[0] + "-****-****-****-************"
}

func maskIBAN(v string) string {
	if len(v) <= 8 {
		return stars(len(v))
	}
	return v[:4] + stars(len(v)-8) + v[len(v)-4:]
}

func maskName(v string) string {
	words := strings.Fields(v)
	for i, w := range words {
		r := []rune(w)
		words[i] = string(r[0]) + stars(len(r)-1)
	}
	return strings.Join(words, " ")
}
