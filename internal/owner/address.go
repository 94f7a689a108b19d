package owner

import (
	"regexp"
	"strings"
)

var houseNumber = regexp.MustCompile(`\d+`)

// Address is a property address split into mailing columns.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// ExtractPropertyAddress drops any owner name prefix from an extract address
// by returning everything from the first run of digits onward. Strings without
// digits are returned trimmed.
func ExtractPropertyAddress(full string) string {
	full = strings.TrimSpace(full)
	if full == "" || full == "N/A" {
		return ""
	}
	loc := houseNumber.FindStringIndex(full)
	if loc == nil {
		return full
	}
	return strings.TrimSpace(full[loc[0]:])
}

// SplitAddress splits "STREET, CITY, ST ZIP" or "STREET, CITY ST ZIP" into
// columns. Anything else is returned as the street.
func SplitAddress(addr string) Address {
	addr = strings.TrimSpace(addr)
	if addr == "" || addr == "N/A" {
		return Address{}
	}
	parts := strings.Split(addr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch {
	case len(parts) >= 3:
		out := Address{Street: parts[0], City: parts[1]}
		stateZip := strings.Fields(parts[2])
		if len(stateZip) > 0 {
			out.State = stateZip[0]
		}
		if len(stateZip) > 1 {
			out.Zip = stateZip[1]
		}
		return out
	case len(parts) == 2:
		out := Address{Street: parts[0]}
		rest := strings.Fields(parts[1])
		switch {
		case len(rest) >= 3:
			out.City = strings.Join(rest[:len(rest)-2], " ")
			out.State = rest[len(rest)-2]
			out.Zip = rest[len(rest)-1]
		case len(rest) == 2:
			out.State, out.Zip = rest[0], rest[1]
		default:
			out.City = parts[1]
		}
		return out
	default:
		return Address{Street: addr}
	}
}
