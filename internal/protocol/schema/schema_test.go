package schema

import (
	"errors"
	"testing"

	"github.com/danmuck/sproto/internal/protocol"
	"github.com/danmuck/sproto/internal/testutil/testlog"
)

func intp(v int) *int { return &v }

func addressBook() Definition {
	return Definition{
		Types: []TypeDef{
			{Name: "Person", Fields: []FieldDef{
				{Name: "phone", Tag: 3, Type: "PhoneNumber", Array: true},
				{Name: "name", Tag: 0, Type: "string"},
				{Name: "id", Tag: 1, Type: "integer"},
				{Name: "email", Tag: 2, Type: "string"},
				{Name: "balance", Tag: 5, Type: "integer", Decimal: intp(2)},
				{Name: "avatar", Tag: 6, Type: "binary"},
			}},
			{Name: "PhoneNumber", Fields: []FieldDef{
				{Name: "number", Tag: 0, Type: "string"},
				{Name: "type", Tag: 1, Type: "integer"},
			}},
			{Name: "AddressBook", Fields: []FieldDef{
				{Name: "person", Tag: 0, Type: "Person", Array: true, Key: "id"},
				{Name: "numbers", Tag: 1, Type: "PhoneNumber", Array: true, Map: true},
			}},
		},
		Protocols: []ProtocolDef{
			{Name: "lookup", Tag: 1, Request: "Person", Response: "AddressBook"},
			{Name: "ping", Tag: 2, Confirm: true},
			{Name: "notify", Tag: 3, Request: "PhoneNumber"},
		},
	}
}

func TestImportSortsFieldsAndSizesTable(t *testing.T) {
	testlog.Start(t)
	s, err := Import(addressBook())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	person := s.Type("Person")
	if person == nil {
		t.Fatalf("missing Person")
	}
	if person.MaxN() != 7 {
		t.Fatalf("maxn: got %d want 7", person.MaxN())
	}
	last := -1
	for _, f := range person.Fields() {
		if f.Tag <= last {
			t.Fatalf("fields not in ascending tag order: %d after %d", f.Tag, last)
		}
		last = f.Tag
	}
	phone := person.FieldByName("phone")
	if phone.Kind != KindStruct || phone.Struct != s.Type("PhoneNumber") || phone.Shape != ShapeArray {
		t.Fatalf("phone field not resolved: %+v", phone)
	}
	if f := person.FieldByName("balance"); f.Scale != 100 || f.Decimal != 2 {
		t.Fatalf("balance scale: %+v", f)
	}
	if f := person.FieldByTag(6); f == nil || !f.Binary || f.Kind != KindString {
		t.Fatalf("avatar not binary string: %+v", f)
	}
	if person.FieldByTag(4) != nil {
		t.Fatalf("unexpected field at unused tag")
	}
}

func TestImportResolvesMapShapes(t *testing.T) {
	testlog.Start(t)
	s, err := Import(addressBook())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	book := s.Type("AddressBook")
	keyed := book.FieldByName("person")
	if keyed.Shape != ShapeKeyedMap || keyed.Key.Name != "id" {
		t.Fatalf("keyed map not resolved: %+v", keyed)
	}
	pair := book.FieldByName("numbers")
	if pair.Shape != ShapePairMap || pair.Key.Name != "number" || pair.Value.Name != "type" {
		t.Fatalf("pair map not resolved: %+v", pair)
	}
	if !pair.Shape.IsMap() || !pair.Shape.IsArray() || ShapeScalar.IsArray() {
		t.Fatalf("shape predicates wrong")
	}
}

func TestImportIndexesProtocolsByNameAndTag(t *testing.T) {
	testlog.Start(t)
	s, err := Import(addressBook())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	for _, p := range s.Protocols() {
		if s.Protocol(p.Name) != s.ProtocolByTag(p.Tag) {
			t.Fatalf("lookups disagree for %s", p.Name)
		}
	}
	ping := s.Protocol("ping")
	if !ping.Confirm || ping.Response != nil || !ping.HasResponse() {
		t.Fatalf("ping should be confirm-only: %+v", ping)
	}
	if s.Protocol("notify").HasResponse() {
		t.Fatalf("notify should not expect a response")
	}
	if got := s.Protocols(); len(got) != 3 || got[0].Name != "lookup" || got[2].Name != "notify" {
		t.Fatalf("protocols not ordered by tag: %+v", got)
	}
}

func TestImportRejectsBadDefinitions(t *testing.T) {
	testlog.Start(t)
	cases := map[string]func(d *Definition){
		"unresolved field type": func(d *Definition) {
			d.Types[0].Fields[0].Type = "Missing"
		},
		"duplicate tag": func(d *Definition) {
			d.Types[1].Fields[1].Tag = 0
		},
		"duplicate field name": func(d *Definition) {
			d.Types[1].Fields[1].Name = "number"
		},
		"negative tag": func(d *Definition) {
			d.Types[1].Fields[1].Tag = -1
		},
		"tag too large": func(d *Definition) {
			d.Types[1].Fields[1].Tag = MaxTag + 1
		},
		"duplicate type": func(d *Definition) {
			d.Types[1].Name = "Person"
		},
		"map without array": func(d *Definition) {
			d.Types[2].Fields[1].Array = false
		},
		"map over three fields": func(d *Definition) {
			d.Types[2].Fields[1].Type = "Person"
		},
		"unknown key": func(d *Definition) {
			d.Types[2].Fields[0].Key = "nope"
		},
		"binary key": func(d *Definition) {
			d.Types[2].Fields[0].Key = "avatar"
		},
		"binary pair key": func(d *Definition) {
			d.Types[1].Fields[0].Binary = true
		},
		"key on array field": func(d *Definition) {
			d.Types[2].Fields[0].Key = "phone"
		},
		"decimal on string": func(d *Definition) {
			d.Types[0].Fields[1].Decimal = intp(2)
		},
		"decimal out of range": func(d *Definition) {
			d.Types[0].Fields[4].Decimal = intp(19)
		},
		"binary on integer": func(d *Definition) {
			d.Types[0].Fields[2].Binary = true
		},
		"unresolved request": func(d *Definition) {
			d.Protocols[0].Request = "Nope"
		},
		"duplicate protocol tag": func(d *Definition) {
			d.Protocols[1].Tag = 1
		},
		"duplicate protocol name": func(d *Definition) {
			d.Protocols[1].Name = "lookup"
		},
		"confirm with response": func(d *Definition) {
			d.Protocols[0].Confirm = true
		},
		"builtin shadow": func(d *Definition) {
			d.Types[1].Name = "string"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			def := addressBook()
			mutate(&def)
			s, err := Import(def)
			if err == nil {
				t.Fatalf("expected schema error")
			}
			if s != nil {
				t.Fatalf("partial schema returned")
			}
			if !errors.Is(err, protocol.ErrSchema) {
				t.Fatalf("expected ErrSchema, got %v", err)
			}
			var se protocol.SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("expected SchemaError, got %T", err)
			}
		})
	}
}

func TestImportEmptyType(t *testing.T) {
	testlog.Start(t)
	s, err := Import(Definition{Types: []TypeDef{{Name: "Empty"}}})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if s.Type("Empty").MaxN() != 0 || len(s.Type("Empty").Fields()) != 0 {
		t.Fatalf("empty type should have no table")
	}
}

func TestMaxNCountsGapSlots(t *testing.T) {
	testlog.Start(t)
	s, err := Import(Definition{Types: []TypeDef{
		{Name: "Sparse", Fields: []FieldDef{
			{Name: "last", Tag: 900, Type: "integer"},
			{Name: "mid", Tag: 40, Type: "integer"},
			{Name: "first", Tag: 0, Type: "integer"},
		}},
		{Name: "Late", Fields: []FieldDef{
			{Name: "only", Tag: 3, Type: "string"},
		}},
	}})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got := s.Type("Sparse").MaxN(); got != 5 {
		t.Fatalf("Sparse maxn: got %d want 5", got)
	}
	if got := s.Type("Late").MaxN(); got != 2 {
		t.Fatalf("Late maxn: got %d want 2", got)
	}
}
