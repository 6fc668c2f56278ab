// Package aggregate rolls up decision records stored in UTC day partitions.
//
// Both views walk partitions the same way: list each day prefix page by page,
// fetch the page's objects concurrently, then fold them in listing order.
// Objects that cannot be read or parsed are skipped and counted; a listing
// failure fails the whole request so results are never silently truncated.
package aggregate
