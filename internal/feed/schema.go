package feed

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// FieldMap holds the per-document element names for the roles whose names
// vary between weekly feeds. An empty role means the feed has no such field.
type FieldMap struct {
	AidName   string
	AidType   string
	Latitude  string
	Longitude string
}

// Schema is what ResolveSchema discovers from a weekly document's XSD.
type Schema struct {
	Collection string
	Fields     []string
	FieldMap   FieldMap
}

type fieldRule struct {
	pattern *regexp.Regexp
	assign  func(m *FieldMap, name string)
}

// Rules are tried in order and the first match claims the name.
var fieldRules = []fieldRule{
	{regexp.MustCompile(`(?i)aid.*name`), func(m *FieldMap, n string) { m.AidName = n }},
	{regexp.MustCompile(`(?i)aid.*type`), func(m *FieldMap, n string) { m.AidType = n }},
	{regexp.MustCompile(`(?i)latitude`), func(m *FieldMap, n string) { m.Latitude = n }},
	{regexp.MustCompile(`(?i)longitude`), func(m *FieldMap, n string) { m.Longitude = n }},
}

// MatchFields assigns field names to roles. Each name goes to the first rule
// it matches; when several names match the same role the last one wins.
func MatchFields(names []string) FieldMap {
	var m FieldMap
	for _, name := range names {
		for _, r := range fieldRules {
			if r.pattern.MatchString(name) {
				r.assign(&m, name)
				break
			}
		}
	}
	return m
}

// ResolveSchema reads the collection name and field descriptions from the
// xsd:schema element that precedes the dataroot in a weekly document.
func ResolveSchema(root *Node) (Schema, error) {
	schemaNode := root.Child("schema")
	if schemaNode == nil {
		return Schema{}, eris.New("feed: weekly document has no schema")
	}

	elements := schemaNode.All("element")
	if len(elements) < 2 {
		return Schema{}, eris.Errorf("feed: schema has %d top-level elements, want at least 2", len(elements))
	}

	refNode := elements[0].Path("complexType", "sequence", "element")
	ref := refNode.Attr("ref")
	if ref == "" {
		return Schema{}, eris.New("feed: schema has no collection ref")
	}
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		ref = ref[i+1:]
	}

	seq := elements[1].Path("complexType", "sequence")
	if seq == nil {
		return Schema{}, eris.Errorf("feed: schema has no field sequence for %s", ref)
	}
	var fields []string
	for _, el := range seq.All("element") {
		if name := el.Attr("name"); name != "" {
			fields = append(fields, name)
		}
	}

	return Schema{
		Collection: ref,
		Fields:     fields,
		FieldMap:   MatchFields(fields),
	}, nil
}
