package interfaces

// Reporter prints operator-facing progress lines (downloads, unpacking,
// patches, test names, checksums). It is separate from Logger so the console
// stays readable when structured logs go elsewhere.
type Reporter interface {
	Step(format string, args ...any)
	Detail(format string, args ...any)
	Success(format string, args ...any)
}

// NoOpReporter discards everything
type NoOpReporter struct{}

// Step does nothing
func (NoOpReporter) Step(string, ...any) {}

// Detail does nothing
func (NoOpReporter) Detail(string, ...any) {}

// Success does nothing
func (NoOpReporter) Success(string, ...any) {}
