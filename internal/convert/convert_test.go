package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedCall struct {
	name string
	args []string
}

type fakeExecutor struct {
	calls []recordedCall
	err   error
}

func (f *fakeExecutor) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, recordedCall{name: name, args: args})
	return f.err
}

func TestClassify(t *testing.T) {
	cases := map[string]Kind{
		"NJIT00USA_R_20260680000_01H_01S_MO.crx.gz": KindObservation,
		"NJIT00USA_R_20260680000_01H_MN.rnx.gz":     KindNavigation,
		"output.crx":               KindObservation,
		"output.rnx":               KindObservation,
		"njit0680.26o":             KindObservation,
		"njit0680.26d.gz":          KindObservation,
		"njit0680.26n":             KindNavigation,
		"njit0680.26g.gz":          KindNavigation,
		"njit0680.26p":             KindNavigation,
		"20260309_130000.obs":      KindObservation,
		"20260309_130000.nav":      KindNavigation,
		"20260309_130000.gnav":     KindNavigation,
		"20260309_130000.qnav.gz":  KindNavigation,
		"20260309_130000.sbs":      KindNavigation,
		"capture.ubx":              KindOther,
		"notes.txt":                KindOther,
		"queue.db":                 KindOther,
	}
	for name, want := range cases {
		if got := Classify(name); got != want {
			t.Errorf("Classify(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestUbx2RinexArgs(t *testing.T) {
	fake := &fakeExecutor{}
	conv := NewUbx2Rinex(Ubx2RinexOptions{
		BinaryPath:   "/nonexistent/ubx2rinex",
		Station:      "NJIT",
		Country:      "USA",
		ReceiverType: "u-blox ZED-F9P",
		AntennaType:  "ANN-MB-00",
		Observer:     "observer",
		Crinex:       true,
		Gzip:         true,
		Exec:         fake,
	})

	req := Request{
		SourceFiles: []string{"/data/20260309_130000.ubx", "/data/20260309_133000.ubx"},
		OutputDir:   "/data/.convert-work/20260309_13-abc",
	}
	if err := conv.Convert(context.Background(), req); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(fake.calls))
	}
	call := fake.calls[0]
	if call.name != "ubx2rinex" {
		t.Fatalf("program = %q, want PATH fallback name", call.name)
	}

	joined := strings.Join(call.args, " ")
	for _, want := range []string{
		"--file /data/20260309_130000.ubx",
		"--file /data/20260309_133000.ubx",
		"--name NJIT00",
		"-c USA",
		"--long",
		"--period 1 h",
		"--sampling 1 s",
		"--crx",
		"--gzip",
		"--prefix /data/.convert-work/20260309_13-abc",
		"--model u-blox ZED-F9P",
		"--antenna ANN-MB-00",
		"--observer observer",
		"--nav",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestUbx2RinexSkipNavOmitsFlag(t *testing.T) {
	fake := &fakeExecutor{}
	conv := NewUbx2Rinex(Ubx2RinexOptions{Station: "NJIT", SkipNav: true, Exec: fake})

	err := conv.Convert(context.Background(), Request{
		SourceFiles: []string{"/data/a.ubx"},
		OutputDir:   "/work",
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	for _, arg := range fake.calls[0].args {
		if arg == "--nav" {
			t.Fatal("--nav passed despite skip_nav")
		}
	}
}

func TestUbx2RinexAvailableWrapsSentinel(t *testing.T) {
	fake := &fakeExecutor{err: errors.New("exec: not found")}
	conv := NewUbx2Rinex(Ubx2RinexOptions{Exec: fake})

	err := conv.Available(context.Background())
	if !errors.Is(err, ErrConverterUnavailable) {
		t.Fatalf("err = %v, want ErrConverterUnavailable", err)
	}
	if fake.calls[0].args[0] != "--version" {
		t.Fatalf("probe args = %v", fake.calls[0].args)
	}
}

func TestConvbinRunsPerSource(t *testing.T) {
	fake := &fakeExecutor{}
	conv := NewConvbin("", fake)

	err := conv.Convert(context.Background(), Request{
		SourceFiles: []string{"/data/a.ubx", "/data/b.ubx"},
		OutputDir:   "/work",
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("calls = %d, want one per source", len(fake.calls))
	}
	first := strings.Join(fake.calls[0].args, " ")
	if first != "-r ubx -n -d /work /data/a.ubx" {
		t.Fatalf("args = %q", first)
	}
}

func writeProduct(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCollectProducts(t *testing.T) {
	dir := t.TempDir()
	obs := writeProduct(t, dir, "NJIT00USA_R_20260680000_01H_01S_MO.crx.gz", "obs")
	nav := writeProduct(t, dir, "NJIT00USA_R_20260680000_01H_MN.rnx.gz", "nav")
	writeProduct(t, dir, "20260309_130000.ubx", "raw")
	writeProduct(t, dir, "scratch.tmp", "x")

	products, err := CollectProducts(dir)
	if err != nil {
		t.Fatalf("CollectProducts: %v", err)
	}
	if len(products) != 2 || products[0] != obs || products[1] != nav {
		t.Fatalf("products = %v", products)
	}
}

func TestValidateProducts(t *testing.T) {
	dir := t.TempDir()
	obs := writeProduct(t, dir, "a_MO.crx", "obs")
	nav := writeProduct(t, dir, "a_MN.rnx", "nav")
	empty := writeProduct(t, dir, "b_MO.crx", "")

	if err := ValidateProducts([]string{obs, nav}, false); err != nil {
		t.Errorf("full product set rejected: %v", err)
	}
	if err := ValidateProducts([]string{obs}, true); err != nil {
		t.Errorf("skip-nav set rejected: %v", err)
	}
	if err := ValidateProducts([]string{obs}, false); err == nil {
		t.Error("missing nav accepted")
	}
	if err := ValidateProducts([]string{nav}, false); err == nil {
		t.Error("missing obs accepted")
	}
	if err := ValidateProducts([]string{empty, nav}, false); err == nil {
		t.Error("empty obs accepted")
	}
}

func TestValidateNavProducts(t *testing.T) {
	dir := t.TempDir()
	nav := writeProduct(t, dir, "a_MN.rnx", "nav")
	obs := writeProduct(t, dir, "a_MO.crx", "obs")

	if err := ValidateNavProducts([]string{obs, nav}); err != nil {
		t.Errorf("nav set rejected: %v", err)
	}
	if err := ValidateNavProducts([]string{obs}); err == nil {
		t.Error("missing nav accepted")
	}
}

func TestConvbinDefaultOutputsValidate(t *testing.T) {
	dir := t.TempDir()
	writeProduct(t, dir, "20260309_130000.nav", "gps nav")
	writeProduct(t, dir, "20260309_130000.gnav", "glonass nav")
	writeProduct(t, dir, "20260309_130000.ubx", "raw")

	products, err := CollectProducts(dir)
	if err != nil {
		t.Fatalf("CollectProducts: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("products = %v, want the two nav files", products)
	}
	if err := ValidateNavProducts(products); err != nil {
		t.Fatalf("ValidateNavProducts: %v", err)
	}
}
