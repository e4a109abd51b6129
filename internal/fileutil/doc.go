// Package fileutil enumerates directory trees and probes paths for the
// structural and build checks.
//
// Tree walks a root directory and returns every file and directory below it
// as a models.FileSet of slash-separated relative paths:
//
//	dist/
//	  index.html
//	  _astro/
//	    index.4f2a.css
//
// yields {"index.html", "_astro", "_astro/index.4f2a.css"}. The root itself
// is never a member. Symlinks are reported but not followed.
package fileutil
