package params

// Contract type values stored under the TypeKey metadata field.
const (
	ContractTypeUser = "user"
	ContractTypeSys  = "sys"
)

// ReservedMetadataFields returns the set of field names owned by the driver
// itself rather than by contract state, in the order they are written by
// SetContract. GetContractKeys does not use it: its enumeration includes
// these metadata keys alongside the contract's state keys.
func (c *Config) ReservedMetadataFields() []string {
	return []string{c.CodeKey, c.AuthorKey, c.TypeKey, c.CompiledKey}
}
