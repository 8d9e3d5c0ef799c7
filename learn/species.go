package learn

import (
	"fmt"
	"sort"
	"strconv"
)

// SpeciesCode is the canonical integer identifier for an atomic species.
// String element labels are translated to codes once, at the configuration
// parsing boundary; everything inside the control loop keys on SpeciesCode.
type SpeciesCode int

// elementCodes maps element symbols to atomic numbers for the elements a
// force-field training run is likely to see. Unknown symbols fall through to
// numeric parsing so bare atomic numbers are accepted too.
var elementCodes = map[string]SpeciesCode{
	"H": 1, "He": 2, "Li": 3, "Be": 4, "B": 5, "C": 6, "N": 7, "O": 8,
	"F": 9, "Ne": 10, "Na": 11, "Mg": 12, "Al": 13, "Si": 14, "P": 15,
	"S": 16, "Cl": 17, "Ar": 18, "K": 19, "Ca": 20, "Sc": 21, "Ti": 22,
	"V": 23, "Cr": 24, "Mn": 25, "Fe": 26, "Co": 27, "Ni": 28, "Cu": 29,
	"Zn": 30, "Ga": 31, "Ge": 32, "As": 33, "Se": 34, "Br": 35, "Kr": 36,
	"Rb": 37, "Sr": 38, "Y": 39, "Zr": 40, "Nb": 41, "Mo": 42, "Tc": 43,
	"Ru": 44, "Rh": 45, "Pd": 46, "Ag": 47, "Cd": 48, "In": 49, "Sn": 50,
	"Sb": 51, "Te": 52, "I": 53, "Xe": 54, "Cs": 55, "Ba": 56, "La": 57,
	"Hf": 72, "Ta": 73, "W": 74, "Re": 75, "Os": 76, "Ir": 77, "Pt": 78,
	"Au": 79, "Hg": 80, "Tl": 81, "Pb": 82, "Bi": 83,
}

var codeLabels = func() map[SpeciesCode]string {
	m := make(map[SpeciesCode]string, len(elementCodes))
	for label, code := range elementCodes {
		m[code] = label
	}
	return m
}()

// ParseSpecies translates an element symbol or a decimal atomic number into
// a SpeciesCode. Returns an error for anything unrecognized.
func ParseSpecies(label string) (SpeciesCode, error) {
	if code, ok := elementCodes[label]; ok {
		return code, nil
	}
	n, err := strconv.Atoi(label)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unknown species label %q", label)
	}
	return SpeciesCode(n), nil
}

// SpeciesLabel returns the element symbol for a code, or the decimal code
// itself when no symbol is known.
func SpeciesLabel(code SpeciesCode) string {
	if label, ok := codeLabels[code]; ok {
		return label
	}
	return strconv.Itoa(int(code))
}

// DistinctSpecies returns the species present in the slice, ascending.
func DistinctSpecies(species []SpeciesCode) []SpeciesCode {
	seen := make(map[SpeciesCode]bool, len(species))
	var out []SpeciesCode
	for _, s := range species {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
