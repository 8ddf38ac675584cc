package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind identifies what a converter output file contains.
type Kind int

const (
	KindOther Kind = iota
	KindObservation
	KindNavigation
)

// Classify identifies a product kind across the naming styles the
// converters emit: RINEX v3 long names, compression-driven extensions,
// convbin's default per-system extensions, and RINEX v2 short names.
func Classify(name string) Kind {
	lower := strings.ToLower(name)

	if strings.Contains(lower, "_mn.") {
		return KindNavigation
	}
	if strings.Contains(lower, "_mo.") {
		return KindObservation
	}

	if strings.HasSuffix(lower, ".crx") || strings.HasSuffix(lower, ".crx.gz") {
		return KindObservation
	}
	if strings.HasSuffix(lower, ".rnx") || strings.HasSuffix(lower, ".rnx.gz") {
		// Ambiguous; treating it as observation avoids false validation failures.
		return KindObservation
	}

	trimmed := strings.TrimSuffix(lower, ".gz")
	switch filepath.Ext(trimmed) {
	case ".obs":
		return KindObservation
	case ".nav", ".gnav", ".hnav", ".qnav", ".lnav", ".cnav", ".inav", ".sbs":
		// convbin writes <input>.nav, <input>.gnav and friends by default.
		return KindNavigation
	}

	return classifyShortName(trimmed)
}

// classifyShortName handles RINEX v2 names like "njit0680.26o". The trailing
// extension letter carries the kind.
func classifyShortName(trimmed string) Kind {
	dot := strings.LastIndexByte(trimmed, '.')
	if dot < 0 || dot == len(trimmed)-1 {
		return KindOther
	}
	switch trimmed[len(trimmed)-1] {
	case 'o', 'd':
		return KindObservation
	case 'n', 'g', 'l', 'p', 'q':
		return KindNavigation
	}
	return KindOther
}

// IsProduct reports whether a file name is one of the archivable products.
func IsProduct(name string) bool {
	return Classify(name) != KindOther
}

// CollectProducts lists product files in a directory, sorted by name.
func CollectProducts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read workspace %s: %w", dir, err)
	}

	var products []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if IsProduct(entry.Name()) {
			products = append(products, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(products)
	return products, nil
}

// ValidateProducts checks the product set covers what the hour must
// produce: a non-empty observation file always, a non-empty navigation file
// unless navigation was skipped.
func ValidateProducts(paths []string, skipNav bool) error {
	var hasObs, hasNav bool
	names := make([]string, 0, len(paths))

	for _, path := range paths {
		name := filepath.Base(path)
		names = append(names, name)

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat product %s: %w", path, err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("product %s is empty", path)
		}

		switch Classify(name) {
		case KindObservation:
			hasObs = true
		case KindNavigation:
			hasNav = true
		}
	}

	if !hasObs {
		return fmt.Errorf("no observation product generated; collected outputs: %s", strings.Join(names, ", "))
	}
	if !skipNav && !hasNav {
		return fmt.Errorf("no navigation product generated; collected outputs: %s", strings.Join(names, ", "))
	}
	return nil
}

// ValidateNavProducts checks a fallback conversion produced at least one
// non-empty navigation file.
func ValidateNavProducts(paths []string) error {
	for _, path := range paths {
		if Classify(filepath.Base(path)) != KindNavigation {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat product %s: %w", path, err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("product %s is empty", path)
		}
		return nil
	}
	return fmt.Errorf("no navigation product generated")
}
