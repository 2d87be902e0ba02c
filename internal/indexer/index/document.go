package index

// Field is one named value of a document.
type Field struct {
	Name      string
	Value     string
	Indexed   bool
	Tokenized bool
	Stored    bool
}

// TextField is indexed through the analyzer and stored.
func TextField(name, value string) Field {
	return Field{Name: name, Value: value, Indexed: true, Tokenized: true, Stored: true}
}

// StringField is indexed verbatim as a single term and stored.
func StringField(name, value string) Field {
	return Field{Name: name, Value: value, Indexed: true, Stored: true}
}

// StoredField is kept for retrieval only.
func StoredField(name, value string) Field {
	return Field{Name: name, Value: value, Stored: true}
}

// Document is an ordered list of fields. A name may repeat.
type Document struct {
	Fields []Field
}

func (d *Document) Add(f Field) {
	d.Fields = append(d.Fields, f)
}

// Get returns the first value stored under name.
func (d Document) Get(name string) string {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// StoredDocument holds the stored values of a document keyed by field name.
type StoredDocument map[string][]string

// Get returns the first value of name, or "".
func (s StoredDocument) Get(name string) string {
	if v := s[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Stored extracts the stored values of d.
func (d Document) Stored() StoredDocument {
	out := make(StoredDocument)
	for _, f := range d.Fields {
		if f.Stored {
			out[f.Name] = append(out[f.Name], f.Value)
		}
	}
	return out
}
