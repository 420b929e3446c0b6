package gateways

import (
	"debug/pe"
	"fmt"
	"sort"
	"strings"

	"github.com/ochairo/kiln/internal/domain/entities"
)

// systemDLLs ship with every supported Windows release
var systemDLLs = map[string]bool{
	"advapi32.dll": true,
	"bcrypt.dll":   true,
	"crypt32.dll":  true,
	"gdi32.dll":    true,
	"kernel32.dll": true,
	"msvcrt.dll":   true,
	"ntdll.dll":    true,
	"ole32.dll":    true,
	"shell32.dll":  true,
	"ucrtbase.dll": true,
	"user32.dll":   true,
	"ws2_32.dll":   true,
}

// LinkageInspector reads the import table of PE binaries to confirm they were
// linked statically against the toolchain runtime
type LinkageInspector struct {
	allowed map[string]bool
}

// NewLinkageInspector creates an inspector; extra names DLLs to accept besides the system set
func NewLinkageInspector(extra ...string) *LinkageInspector {
	allowed := make(map[string]bool, len(systemDLLs)+len(extra))
	for name := range systemDLLs {
		allowed[name] = true
	}
	for _, name := range extra {
		allowed[strings.ToLower(name)] = true
	}
	return &LinkageInspector{allowed: allowed}
}

// Inspect opens binaryPath as a PE file and classifies its imports
func (i *LinkageInspector) Inspect(binaryPath string) (*entities.BinaryLinkage, error) {
	f, err := pe.Open(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PE file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	// ImportedLibraries is not implemented for PE; symbols carry "name:dll"
	symbols, err := f.ImportedSymbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read import table: %w", err)
	}

	imports := importedDLLs(symbols)
	return &entities.BinaryLinkage{
		Path:    binaryPath,
		Machine: machineName(f.Machine),
		Imports: imports,
		Foreign: i.foreign(imports),
	}, nil
}

func (i *LinkageInspector) foreign(imports []string) []string {
	var out []string
	for _, dll := range imports {
		// UCRT forwarders are part of the OS since Windows 10
		if i.allowed[dll] || strings.HasPrefix(dll, "api-ms-win-") {
			continue
		}
		out = append(out, dll)
	}
	return out
}

func importedDLLs(symbols []string) []string {
	seen := make(map[string]bool)
	for _, sym := range symbols {
		_, dll, ok := strings.Cut(sym, ":")
		if !ok || dll == "" {
			continue
		}
		seen[strings.ToLower(dll)] = true
	}

	out := make([]string, 0, len(seen))
	for dll := range seen {
		out = append(out, dll)
	}
	sort.Strings(out)
	return out
}

func machineName(m uint16) string {
	switch m {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return "x86_64"
	case pe.IMAGE_FILE_MACHINE_I386:
		return "i686"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return "aarch64"
	default:
		return fmt.Sprintf("unknown(%#x)", m)
	}
}
