package document

// Schema declares, per sequence name, which element field carries the
// stable identity used to match elements across document revisions.
// The sequence name is the map key under which the array appears.
// Sequences without a declaration use the default key.
type Schema struct {
	identityKeys map[string]string
	defaultKey   string
}

// DefaultIdentityKey is used for sequences with no declaration.
const DefaultIdentityKey = "id"

// DefaultSchema returns a schema that resolves every sequence to the
// default identity key.
func DefaultSchema() *Schema {
	return &Schema{defaultKey: DefaultIdentityKey}
}

// NewSchema builds a schema from explicit sequence-name declarations.
func NewSchema(identityKeys map[string]string) *Schema {
	keys := make(map[string]string, len(identityKeys))
	for k, v := range identityKeys {
		keys[k] = v
	}
	return &Schema{identityKeys: keys, defaultKey: DefaultIdentityKey}
}

// IdentityKey returns the identity field for a sequence name.
func (s *Schema) IdentityKey(sequence string) string {
	if key, ok := s.identityKeys[sequence]; ok {
		return key
	}
	return s.defaultKey
}

// Declare registers an identity key for a sequence name.
func (s *Schema) Declare(sequence, field string) {
	if s.identityKeys == nil {
		s.identityKeys = make(map[string]string)
	}
	s.identityKeys[sequence] = field
}
