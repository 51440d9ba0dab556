// Package fixture provides test data for table-driven test programs: the
// standard Greek tree, scratch repositories that store revisions of a tree in
// SQLite, and lookup of checked-in data below --srcdir.
package fixture
