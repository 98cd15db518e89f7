package ml

import (
	"strconv"
	"strings"
)

//ParseVarTypeSpec parses descriptions like "ord[0-2,4]cat[3]" into one type per variable.
//Variables not mentioned are ordered; a variable listed in both groups is an error.
func ParseVarTypeSpec(spec string, nvars int) ([]VarType, error) {
	types := make([]VarType, nvars)
	assigned := make([]bool, nvars)

	rest := strings.TrimSpace(spec)
	for rest != "" {
		var t VarType
		switch {
		case strings.HasPrefix(rest, "ord["):
			t, rest = VarOrdered, rest[len("ord["):]
		case strings.HasPrefix(rest, "cat["):
			t, rest = VarCategorical, rest[len("cat["):]
		default:
			return nil, InvalidArgf("var type spec %q: expected ord[ or cat[ at %q", spec, rest)
		}

		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, InvalidArgf("var type spec %q: missing ]", spec)
		}
		body := rest[:end]
		rest = strings.TrimSpace(rest[end+1:])

		for _, item := range strings.Split(body, ",") {
			lo, hi, err := parseIndexRange(strings.TrimSpace(item))
			if err != nil {
				return nil, InvalidArgf("var type spec %q: %v", spec, err)
			}
			if lo < 0 || hi >= nvars || lo > hi {
				return nil, InvalidArgf("var type spec %q: range %d-%d outside [0, %d)", spec, lo, hi, nvars)
			}
			for vi := lo; vi <= hi; vi++ {
				if assigned[vi] && types[vi] != t {
					return nil, InvalidArgf("var type spec %q: variable %d is both ordered and categorical", spec, vi)
				}
				types[vi] = t
				assigned[vi] = true
			}
		}
	}
	return types, nil
}

func parseIndexRange(item string) (int, int, error) {
	if lo, hi, ok := strings.Cut(item, "-"); ok {
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return 0, 0, err
		}
		b, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return 0, 0, err
		}
		return a, b, nil
	}
	a, err := strconv.Atoi(item)
	return a, a, err
}
