package schema

// Definition is the resolved-name ingestion contract produced by an external
// schema parser (or loaded by the schemafile package). Import turns it into
// an immutable Schema.
type Definition struct {
	Types     []TypeDef     `toml:"types" yaml:"types" json:"types"`
	Protocols []ProtocolDef `toml:"protocols" yaml:"protocols" json:"protocols"`
}

type TypeDef struct {
	Name   string     `toml:"name" yaml:"name" json:"name"`
	Fields []FieldDef `toml:"fields" yaml:"fields" json:"fields"`
}

// FieldDef declares one tagged field. Type is a builtin name (integer,
// boolean, string, binary, double) or the name of another TypeDef.
type FieldDef struct {
	Name  string `toml:"name" yaml:"name" json:"name"`
	Tag   int    `toml:"tag" yaml:"tag" json:"tag"`
	Type  string `toml:"type" yaml:"type" json:"type"`
	Array bool   `toml:"array" yaml:"array" json:"array"`
	Map   bool   `toml:"map" yaml:"map" json:"map"`
	// Key names a field of the element type; the array is then exposed as a
	// mapping from that field's value to the element.
	Key string `toml:"key" yaml:"key" json:"key"`
	// Decimal is the number of fixed-point decimal places for integers.
	Decimal *int `toml:"decimal" yaml:"decimal" json:"decimal"`
	Binary  bool `toml:"binary" yaml:"binary" json:"binary"`
}

type ProtocolDef struct {
	Name     string `toml:"name" yaml:"name" json:"name"`
	Tag      int    `toml:"tag" yaml:"tag" json:"tag"`
	Request  string `toml:"request" yaml:"request" json:"request"`
	Response string `toml:"response" yaml:"response" json:"response"`
	// Confirm declares a response that carries no payload.
	Confirm bool `toml:"confirm" yaml:"confirm" json:"confirm"`
}
