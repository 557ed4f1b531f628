// Package capability provides the automation surfaces the UI and mobile
// executors run against.
//
// A Browser or MobileDriver is either a stub, which logs and returns
// neutral values, or an MCP-backed session that maps every call onto a
// browser_* or mobile_* tool of an automation MCP server. The choice is
// made once by NewProvider from configuration.
//
// Sessions are not safe for concurrent use. SessionPool checks them out to
// one test case at a time.
package capability
