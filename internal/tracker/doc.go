// Package tracker holds the per-page state of the bus map: the markers built
// from the latest bus list, the legend of route numbers, the raw-data panel,
// the refresh countdown and the cycling cursor used when a legend entry is
// clicked.
//
// A Session is the controller for one page. It is rebuilt in full by every
// Refresh, except for the legend and the cycle cursors, which live as long as
// the session does.
package tracker
