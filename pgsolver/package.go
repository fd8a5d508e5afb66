package pgsolver

// PackageID is a dense, non-negative integer interned from an
// (author, name) pair. ID 0 is reserved for the synthetic root package.
type PackageID int

// RootID is the synthetic package representing the project being solved.
const RootID PackageID = 0

// RootVersion is the single synthetic version of the root package.
var RootVersion = Version{1, 0, 0}

// PackageName identifies an Elm package by its registry coordinates.
type PackageName struct {
	Author, Name string
}

func (p PackageName) String() string { return p.Author + "/" + p.Name }

// Interner assigns dense PackageIDs to (author, name) pairs in insertion
// order, with ID 0 always reserved for the synthetic root.
type Interner struct {
	byName map[PackageName]PackageID
	byID   []PackageName
}

// NewInterner returns an Interner with slot 0 pre-bound to root.
func NewInterner() *Interner {
	in := &Interner{
		byName: make(map[PackageName]PackageID),
		byID:   []PackageName{{}},
	}
	return in
}

// Intern returns the PackageID for name, assigning a new one if necessary.
func (in *Interner) Intern(name PackageName) PackageID {
	if id, ok := in.byName[name]; ok {
		return id
	}
	id := PackageID(len(in.byID))
	in.byID = append(in.byID, name)
	in.byName[name] = id
	return id
}

// Lookup reverses Intern. It panics on an ID it never issued.
func (in *Interner) Lookup(id PackageID) PackageName {
	if id == RootID {
		return PackageName{Author: "", Name: "(root)"}
	}
	return in.byID[id]
}

// Len reports how many non-root packages have been interned.
func (in *Interner) Len() int { return len(in.byID) - 1 }
