package entities

// BinaryLinkage describes the runtime DLL dependencies of an installed binary
type BinaryLinkage struct {
	Path    string
	Machine string

	// Imports lists every DLL named in the import table, lowercased and sorted
	Imports []string
	// Foreign lists imports that are not part of the operating system
	Foreign []string
}

// Static reports whether the binary runs without any non-system DLL
func (l BinaryLinkage) Static() bool {
	return len(l.Foreign) == 0
}
