package queryir

// Statement is a write against a single table.
type Statement interface {
	statementNode()
}

// Predicate selects the rows an Update or Delete touches.
type Predicate interface {
	predicateNode()
}

// Insert writes Fields into Table.
//
//	INSERT INTO <table> (<fields>) VALUES (?, ...)
type Insert struct {
	Table  string
	Fields []string
}

// Update sets Set on the rows of Table matching Where.
//
//	UPDATE <table> SET <f> = ?, ... WHERE <where>
type Update struct {
	Table string
	Set   []string
	Where Predicate
}

// Delete removes the rows of Table matching Where.
//
//	DELETE FROM <table> WHERE <where>
type Delete struct {
	Table string
	Where Predicate
}

func (Insert) statementNode() {}
func (Update) statementNode() {}
func (Delete) statementNode() {}

// KeyEquals binds Column to the row field of the same name.
type KeyEquals struct {
	Column string
}

// And requires all Predicates to hold.
type And struct {
	Predicates []Predicate
}

func (KeyEquals) predicateNode() {}
func (And) predicateNode()       {}

// KeyMatch builds the predicate addressing a row by its key columns.
// A single key yields a bare KeyEquals.
func KeyMatch(keys []string) Predicate {
	if len(keys) == 1 {
		return KeyEquals{Column: keys[0]}
	}
	preds := make([]Predicate, len(keys))
	for i, k := range keys {
		preds[i] = KeyEquals{Column: k}
	}
	return And{Predicates: preds}
}
