package domain

import "fmt"

// RetentionModule names a record collection governed by its own retention
// settings. This is a domain primitive that enforces validity at parse time.
type RetentionModule string

// Modules with retention-governed collections.
const (
	ModulePANKYC     RetentionModule = "panKyc"
	ModuleBankKYC    RetentionModule = "bankKyc"
	ModuleRecordLink RetentionModule = "recordLink"
)

var knownModules = map[RetentionModule]struct{}{
	ModulePANKYC:     {},
	ModuleBankKYC:    {},
	ModuleRecordLink: {},
}

// ParseRetentionModule validates and returns a RetentionModule.
// Returns an error if the module is unknown.
func ParseRetentionModule(s string) (RetentionModule, error) {
	m := RetentionModule(s)
	if _, ok := knownModules[m]; !ok {
		return "", fmt.Errorf("unknown retention module: %s", s)
	}
	return m, nil
}

// String returns the string representation of the module.
func (m RetentionModule) String() string { return string(m) }

// IsNil returns true if the module is empty.
func (m RetentionModule) IsNil() bool { return m == "" }

// KnownModules returns all retention-governed modules in stable order.
func KnownModules() []RetentionModule {
	return []RetentionModule{ModulePANKYC, ModuleBankKYC, ModuleRecordLink}
}
