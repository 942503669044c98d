// Package wiki provides the shared record types for the wikisync engine.
//
// This package contains type definitions, sentinel errors and the page content
// hash only. All other internal packages import wiki; wiki imports nothing
// internal.
//
// Key design constraints:
//   - Page paths are the portable identity of a page; numeric IDs are not
//     portable across environments
//   - Image IDs are assigned by the target store and never written by importers
//   - Version numbers start at 1 and are unique per page; gaps are tolerated
//   - All JSON tags use snake_case
package wiki
