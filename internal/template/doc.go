// Package template implements reference resolution for step inputs.
//
// Step input templates embed @name and @name.dotted.path tokens that are
// resolved against workflow input and prior step outputs. The same
// tokenizer feeds dependency extraction for the scheduler, so a step's
// execution level always reflects exactly the references its input
// mentions. Template-kind steps additionally run through a Go template
// engine with the sprig function map.
package template
