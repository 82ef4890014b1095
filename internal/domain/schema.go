package domain

// ColumnKind describes how a column value is stored and coerced.
type ColumnKind int

const (
	KindInteger ColumnKind = iota
	KindText
	// KindSecret values are hashed before they reach the store and never leave it.
	KindSecret
	KindTime
)

// Column is a single persisted field of a collection.
type Column struct {
	Name     string
	Kind     ColumnKind
	Required bool
	Unique   bool
	// ReadOnly columns cannot be supplied by clients.
	ReadOnly bool
	// StampOnCreate columns are set to the creation time.
	StampOnCreate bool
}

// Collection is the fixed schema of one record table.
type Collection struct {
	Name       string
	Table      string
	PrimaryKey string
	Columns    []Column
}

// Column looks up a non-key column by name.
func (c Collection) Column(name string) (Column, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Record is a row of a collection keyed by column name.
type Record map[string]any

var Users = Collection{
	Name:       "users",
	Table:      "users",
	PrimaryKey: "id",
	Columns: []Column{
		{Name: "login", Kind: KindText, Required: true, Unique: true},
		{Name: "password", Kind: KindSecret, Required: true},
		{Name: "name", Kind: KindText},
		{Name: "surname", Kind: KindText},
		{Name: "accessLevel", Kind: KindInteger},
		{Name: "email", Kind: KindText, Required: true},
		{Name: "dateCreate", Kind: KindTime, ReadOnly: true, StampOnCreate: true},
		{Name: "icon", Kind: KindText},
	},
}

var Recipes = Collection{
	Name:       "recipes",
	Table:      "recipe",
	PrimaryKey: "idrecipe",
	Columns: []Column{
		{Name: "name", Kind: KindText},
		{Name: "tempgrain", Kind: KindInteger},
		{Name: "tempgrainmax", Kind: KindInteger},
		{Name: "tempgraincritical", Kind: KindInteger},
		{Name: "tempagent", Kind: KindInteger},
		{Name: "tempagentcritical", Kind: KindInteger},
		{Name: "maxfanasprate", Kind: KindInteger},
		{Name: "maxfanrecrate", Kind: KindInteger},
		{Name: "timeunload", Kind: KindInteger},
		{Name: "timeunloaddelay", Kind: KindInteger},
		{Name: "weight", Kind: KindInteger},
	},
}

var Messages = Collection{
	Name:       "messages",
	Table:      "messages",
	PrimaryKey: "id",
	Columns: []Column{
		{Name: "text", Kind: KindText, Required: true},
		{Name: "user", Kind: KindText},
	},
}
