// Package graph computes step dependency sets and topological levels.
//
// A step's dependencies are the other steps its input references; its
// level is 0 when it has none, otherwise one more than the highest level
// among its dependencies. Steps sharing a level are independent and run
// concurrently.
package graph
