package class

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Builtin native classes installed in every table.
const (
	NameObject           = "Object"
	NamePackage          = "Package"
	NameActor            = "Actor"
	NameUserWidget       = "UserWidget"
	NameGameInstance     = "GameInstance"
	NameWorld            = "World"
	NameSingletonManager = "SingletonManager"
)

// Table is the class metadata table. Classes are never removed.
type Table struct {
	byName map[string]*Class
	byPath map[string]*Class

	object  *Class
	actor   *Class
	widget  *Class
	manager *Class
}

// NewTable returns a table holding the builtin native classes.
func NewTable() *Table {
	t := &Table{
		byName: make(map[string]*Class, 64),
		byPath: make(map[string]*Class, 64),
	}
	t.object = t.mustDefine(NameObject, "", KindNative)
	t.mustDefine(NamePackage, NameObject, KindNative)
	t.actor = t.mustDefine(NameActor, NameObject, KindNative)
	t.widget = t.mustDefine(NameUserWidget, NameObject, KindNative)
	t.mustDefine(NameGameInstance, NameObject, KindNative)
	t.mustDefine(NameWorld, NameObject, KindNative)
	t.manager = t.mustDefine(NameSingletonManager, NameObject, KindNative)
	return t
}

func (t *Table) mustDefine(name, super string, kind Kind) *Class {
	c, err := t.Define(name, super, kind, "")
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultPath builds the soft path used when a definition omits one.
func DefaultPath(name string, kind Kind) string {
	if kind == KindDynamic {
		return fmt.Sprintf("/Game/%s.%s_C", name, name)
	}
	return "/Script/Engine." + name
}

// Define adds a class. super must already exist unless name is the root.
//
// Names and paths are stored in Unicode NFC. Lookup and ByPath normalize
// their argument the same way.
func (t *Table) Define(name, super string, kind Kind, path string) (*Class, error) {
	name, super, path = norm.NFC.String(name), norm.NFC.String(super), norm.NFC.String(path)
	if name == "" {
		return nil, ErrEmptyName
	}
	if _, ok := t.byName[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateClass, name)
	}
	if kind != KindNative && kind != KindDynamic {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	var parent *Class
	if super != "" {
		parent = t.byName[super]
		if parent == nil {
			return nil, fmt.Errorf("%w: %s (for %s)", ErrUnknownSuper, super, name)
		}
	} else if t.object != nil {
		// Only the root may omit a super.
		parent = t.object
	}
	if path == "" {
		path = DefaultPath(name, kind)
	}
	if _, ok := t.byPath[path]; ok {
		return nil, fmt.Errorf("%w: path %s", ErrDuplicateClass, path)
	}
	c := &Class{name: name, path: path, super: parent, kind: kind}
	if parent != nil {
		c.depth = parent.depth + 1
	}
	t.byName[name] = c
	t.byPath[path] = c
	return c, nil
}

func (t *Table) Lookup(name string) *Class  { return t.byName[norm.NFC.String(name)] }
func (t *Table) ByPath(path string) *Class  { return t.byPath[norm.NFC.String(path)] }
func (t *Table) Len() int                   { return len(t.byName) }
func (t *Table) Object() *Class             { return t.object }
func (t *Table) Actor() *Class              { return t.actor }
func (t *Table) UserWidget() *Class         { return t.widget }
func (t *Table) SingletonManager() *Class   { return t.manager }
func (t *Table) IsActorClass(c *Class) bool { return c.IsChildOf(t.actor) }

// Each calls fn for every class in name order.
func (t *Table) Each(fn func(*Class)) {
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fn(t.byName[n])
	}
}

// Entry is one class definition in a class list file.
type Entry struct {
	Name  string `yaml:"name"`
	Super string `yaml:"super"`
	Kind  string `yaml:"kind"` // "native" (default) or "dynamic"
	Path  string `yaml:"path"`
}

// LoadTable reads a class list and defines its entries in file order on
// top of the builtins.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class list: %w", err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse class list: %w", err)
	}
	t := NewTable()
	if err := t.DefineAll(entries); err != nil {
		return nil, fmt.Errorf("class list %s: %w", path, err)
	}
	return t, nil
}

// DefineAll defines entries in order, stopping at the first error.
func (t *Table) DefineAll(entries []Entry) error {
	for _, e := range entries {
		kind, err := ParseKind(e.Kind)
		if err != nil {
			return fmt.Errorf("class %s: %w", e.Name, err)
		}
		super := e.Super
		if super == "" {
			super = NameObject
		}
		if _, err := t.Define(e.Name, super, kind, e.Path); err != nil {
			return err
		}
	}
	return nil
}
