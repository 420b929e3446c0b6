package entities

// BuildProfile holds the toolchain-facing knobs of the build driver
type BuildProfile struct {
	Host        string
	BuildTriple string
	Target      string
	StaticFlag  string

	// Packages installed by the provisioner after the system upgrade
	Packages []string

	Make       string
	CompileEnv map[string]string

	// CompileRewrites patch generated build files before compiling
	CompileRewrites []Rewrite
	// HarnessRewrites relax test-harness checks that misbehave on the target
	HarnessRewrites []Rewrite

	// Tests is the allow-list of upstream test cases, run in order
	Tests       []string
	TestCommand string // {make} and {test} are substituted

	BinDir string
}

// Rewrite is an in-place literal substitution inside a source tree file
type Rewrite struct {
	File string
	Old  string
	New  string
}

// DefaultBuildProfile returns the profile for a static x86_64 mingw-w64 build
func DefaultBuildProfile() BuildProfile {
	return BuildProfile{
		Host:        "x86_64-w64-mingw32",
		BuildTriple: "x86_64-w64-mingw32",
		Target:      "x86_64-w64-mingw32",
		StaticFlag:  "LDFLAGS=-static",
		Make:        "make",
		CompileEnv:  map[string]string{"MSYS": "noacl"},
		TestCommand: "{make} check TESTS={test}",
		BinDir:      "bin",
	}
}

// WithDefaults fills every empty field from DefaultBuildProfile
func (p BuildProfile) WithDefaults() BuildProfile {
	return p.Over(DefaultBuildProfile())
}

// Over fills every empty field of p from base. Empty lists count as unset,
// so an override cannot clear the base's allow-list or rewrites; a nil
// CompileEnv is unset, an empty one is kept.
func (p BuildProfile) Over(base BuildProfile) BuildProfile {
	p.Host = orString(p.Host, base.Host)
	p.BuildTriple = orString(p.BuildTriple, base.BuildTriple)
	p.Target = orString(p.Target, base.Target)
	p.StaticFlag = orString(p.StaticFlag, base.StaticFlag)
	p.Make = orString(p.Make, base.Make)
	p.TestCommand = orString(p.TestCommand, base.TestCommand)
	p.BinDir = orString(p.BinDir, base.BinDir)

	if len(p.Packages) == 0 {
		p.Packages = base.Packages
	}
	if p.CompileEnv == nil {
		p.CompileEnv = base.CompileEnv
	}
	if len(p.CompileRewrites) == 0 {
		p.CompileRewrites = base.CompileRewrites
	}
	if len(p.HarnessRewrites) == 0 {
		p.HarnessRewrites = base.HarnessRewrites
	}
	if len(p.Tests) == 0 {
		p.Tests = base.Tests
	}
	return p
}

func orString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
