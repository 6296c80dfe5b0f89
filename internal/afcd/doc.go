// Package afcd owns the AFC device-under-test commands.
//
// Ownership boundary:
// - configuration state shared across requests
//
// - configure/operate/info/version handlers
//
// - geo-area parsing and validation
//
// Configure stages every value from the request and commits to State only
// after all mandatory checks pass. A rejected configure leaves State as it was.
//
// Operate does not read State. Device-side effects go through vendor.Invoker.
package afcd
