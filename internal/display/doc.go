// Package display formats user-facing warnings for the templatecheck CLI.
//
// A Warning is rendered in yellow when colour is enabled:
//
//	w := display.Warning{
//	    Title:      "Stale fixtures",
//	    Files:      stale,
//	    Suggestion: "Run 'templatecheck clean' or delete them by hand",
//	}
//	w.Display(os.Stderr, useColor)
//
// FindStaleFixtures lists fixture directories that no longer belong to any
// template in the templates file.
package display
